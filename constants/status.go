package constants

// ResultStatus is the canonical outcome of one document extraction.
type ResultStatus string

// Stable values (stored as-is in the documents table).
const (
	StatusStructured   ResultStatus = "STRUCTURED"   // at least one record
	StatusUnstructured ResultStatus = "UNSTRUCTURED" // degraded: raw text only
	StatusFailed       ResultStatus = "FAILED"       // terminal per-document failure
)

// Extraction methods recorded on a result.
const (
	MethodTable     = "table"
	MethodHeuristic = "heuristic"
	MethodNone      = "none"
)
