package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

var mimeToFormat = []struct {
	mime string
	kind constants.FormatKind
}{
	{"application/pdf", constants.PDF},
	{"image/png", constants.IMAGE},
	{"image/jpeg", constants.IMAGE},
	{"image/gif", constants.IMAGE},
	{"image/heic", constants.IMAGE},
	{"image/heif", constants.IMAGE},
	{"image/heic-sequence", constants.IMAGE},
	{"image/heif-sequence", constants.IMAGE},
	{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", constants.SPREADSHEET},
	{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", constants.WORD},
}

// Classify decides a document's FormatKind from its bytes, using the file
// extension to break ties within text and zip containers and for bytes the
// sniffer cannot name. Unrecognized binaries are UNKNOWN.
func Classify(content []byte, filename string) constants.FormatKind {
	byExt := constants.MapExtToFormat(filepath.Ext(filename))
	mt := mimetype.Detect(content)

	for _, m := range mimeToFormat {
		if mt.Is(m.mime) {
			return m.kind
		}
	}

	switch {
	case strings.HasPrefix(mt.String(), "text/"):
		if byExt == constants.DELIMITED || byExt == constants.PLAINTEXT {
			return byExt
		}
		if mt.Is("text/csv") || mt.Is("text/tab-separated-values") {
			return constants.DELIMITED
		}
		return constants.PLAINTEXT
	case mt.Is("application/zip"):
		if byExt == constants.SPREADSHEET || byExt == constants.WORD {
			return byExt
		}
		return constants.UNKNOWN
	case mt.Is("application/octet-stream"):
		// Let the loader for the claimed type report the bytes as corrupt.
		if byExt != constants.PLAINTEXT && byExt != constants.DELIMITED {
			return byExt
		}
	}
	return constants.UNKNOWN
}
