package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"echo-trivia/internal/domain"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// answerBody wraps every answer result so duplicate submissions are visible to clients.
type answerBody struct {
	Status string `json:"status"`
	Result any    `json:"result"`
}

const statusAnswered = "ANSWERED"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAnswer replies 200 both for fresh and repeated answers; a repeat carries the stored verdict.
func writeAnswer(w http.ResponseWriter, v domain.Verdict, result any) {
	status := statusAnswered
	if v.AlreadyAnswered {
		status = domain.CodeAlreadyAnswered
	}
	writeJSON(w, http.StatusOK, answerBody{Status: status, Result: result})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.Code(err)
	status := statusFor(err, code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func statusFor(err error, code string) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeUnauthorized:
		if errors.Is(err, domain.ErrSignInRequired) {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case domain.CodeInvalidState:
		return http.StatusConflict
	case domain.CodeGenerationFailed:
		return http.StatusBadGateway
	case domain.CodeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.Validationf("invalid request body: %v", err)
	}
	return nil
}
