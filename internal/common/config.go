package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Loader LoaderConfig
	OCR    OCRConfig
	Parser ParserConfig
	Batch  BatchConfig
	Store  StoreConfig
}

// LoaderConfig holds per-format loader limits.
type LoaderConfig struct {
	MaxBytes        int64
	MaxPages        int
	Pdftotext       string
	MinPDFTextChars int
}

// OCRConfig holds OCR engine configuration
type OCRConfig struct {
	Engines         []string // order is preference order for ties
	Tesseract       string
	TesseractLang   string
	TessdataDir     string
	PSM             int
	OEM             int
	Python          string
	EasyOCRScript   string
	PaddleOCRScript string
	EngineTimeout   time.Duration
	DPI             int
	Scorer          string // "alnum" | "artifact"
}

// ParserConfig holds structural parser tuning.
type ParserConfig struct {
	MinFieldRatio float64
	RulesFile     string
}

// BatchConfig holds document-level worker settings.
type BatchConfig struct {
	Workers     int
	QueueSize   int
	DocTimeout  time.Duration
	SkipHidden  bool
	WatchSettle time.Duration
}

// StoreConfig holds persistence locations.
type StoreConfig struct {
	DBPath    string
	CachePath string
	OutDir    string
}

// Known engine names.
const (
	EngineTesseract = "tesseract"
	EngineEasyOCR   = "easyocr"
	EnginePaddleOCR = "paddleocr"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Loader: LoaderConfig{
			MaxBytes:        getEnvAsInt64("MAX_DOCUMENT_BYTES", 50<<20),
			MaxPages:        getEnvAsInt("MAX_PDF_PAGES", 50),
			Pdftotext:       getEnv("PDFTOTEXT_BIN", "pdftotext"),
			MinPDFTextChars: getEnvAsInt("MIN_PDF_TEXT_CHARS", 20),
		},
		OCR: OCRConfig{
			Engines:         getEnvAsList("OCR_ENGINES", []string{EngineTesseract, EngineEasyOCR, EnginePaddleOCR}),
			Tesseract:       getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang:   getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:     getEnv("TESSDATA_PREFIX", ""),
			PSM:             getEnvAsInt("TESSERACT_PSM", 6),
			OEM:             getEnvAsInt("TESSERACT_OEM", 0),
			Python:          getEnv("PYTHON_BIN", "python3"),
			EasyOCRScript:   getEnv("EASYOCR_SCRIPT", "scripts/easy_ocr_extractor.py"),
			PaddleOCRScript: getEnv("PADDLEOCR_SCRIPT", "scripts/paddle_ocr_extractor.py"),
			EngineTimeout:   getEnvAsDuration("OCR_ENGINE_TIMEOUT", 60*time.Second),
			DPI:             getEnvAsInt("OCR_DPI", 300),
			Scorer:          getEnv("OCR_SCORER", "alnum"),
		},
		Parser: ParserConfig{
			MinFieldRatio: getEnvAsFloat64("MIN_FIELD_RATIO", 0.7),
			RulesFile:     getEnv("RULES_FILE", ""),
		},
		Batch: BatchConfig{
			Workers:     getEnvAsInt("BATCH_WORKERS", 4),
			QueueSize:   getEnvAsInt("BATCH_QUEUE_SIZE", 256),
			DocTimeout:  getEnvAsDuration("DOCUMENT_TIMEOUT", 3*time.Minute),
			SkipHidden:  getEnvAsBool("SKIP_HIDDEN", true),
			WatchSettle: getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Store: StoreConfig{
			DBPath:    getEnv("DB_PATH", "invoices.db"),
			CachePath: getEnv("CACHE_PATH", ""),
			OutDir:    getEnv("OUT_DIR", "./out"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// comma-separated, blanks dropped
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("MAX_DOCUMENT_BYTES", c.Loader.MaxBytes, Positive).
		Field("OCR_ENGINES", c.OCR.Engines, Required, EachOneOf(EngineTesseract, EngineEasyOCR, EnginePaddleOCR)).
		Field("OCR_ENGINE_TIMEOUT", c.OCR.EngineTimeout, Positive).
		Field("OCR_DPI", c.OCR.DPI, Positive).
		Field("MIN_FIELD_RATIO", c.Parser.MinFieldRatio, Positive, Between(0, 1)).
		Field("BATCH_WORKERS", c.Batch.Workers, Positive).
		Field("DOCUMENT_TIMEOUT", c.Batch.DocTimeout, Positive)
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
