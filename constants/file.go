package constants

import "strings"

// FormatKind is the recognized category of an input document.
type FormatKind string

const (
	PDF         FormatKind = "pdf"
	IMAGE       FormatKind = "image"
	SPREADSHEET FormatKind = "spreadsheet"
	DELIMITED   FormatKind = "delimited-text"
	WORD        FormatKind = "word-document"
	PLAINTEXT   FormatKind = "plain-text"
	UNKNOWN     FormatKind = "unknown"
)

// FormatKinds holds every supported kind, in registry order.
var FormatKinds = []FormatKind{PDF, IMAGE, SPREADSHEET, DELIMITED, WORD, PLAINTEXT}

var extToFormat = map[string]FormatKind{
	"pdf":  PDF,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"png":  IMAGE,
	"gif":  IMAGE,
	"heic": IMAGE,
	"heif": IMAGE,
	"xlsx": SPREADSHEET,
	"xlsm": SPREADSHEET,
	"csv":  DELIMITED,
	"tsv":  DELIMITED,
	"docx": WORD,
	"txt":  PLAINTEXT,
	"text": PLAINTEXT,
}

// AllowedExtensions holds the default allowed file extensions for ingestion.
var AllowedExtensions = func() map[string]struct{} {
	m := make(map[string]struct{}, len(extToFormat))
	for ext := range extToFormat {
		m[ext] = struct{}{}
	}
	return m
}()

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the FormatKind for an extension, UNKNOWN if none.
func MapExtToFormat(ext string) FormatKind {
	if f, ok := extToFormat[NormalizeExt(ext)]; ok {
		return f
	}
	return UNKNOWN
}

// IsHEICExt reports whether ext names a HEIC/HEIF image.
func IsHEICExt(ext string) bool {
	ext = NormalizeExt(ext)
	return ext == "heic" || ext == "heif"
}
