package httpx

import "net/http"

// Machine-readable error codes surfaced to clients.
const (
	CodeFilesRequired      = "FILES_REQUIRED"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeAnalysisInProgress = "ANALYSIS_IN_PROGRESS"
	CodeAnalysisFailed     = "ANALYSIS_FAILED"
	CodeReportNotFound     = "REPORT_NOT_FOUND"
	CodeUpstream           = "UPSTREAM_UNAVAILABLE"
	CodeValidation         = "VALIDATION_FAILED"
)

// ErrorBody is the machine-readable error payload.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// Error sends a coded error response.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, errorEnvelope{Error: ErrorBody{Code: code, Message: message}})
}
