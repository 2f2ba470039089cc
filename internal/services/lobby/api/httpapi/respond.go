package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/louisbranch/ensemble.live/internal/platform/errors"
	errorsi18n "github.com/louisbranch/ensemble.live/internal/platform/errors/i18n"
	"github.com/louisbranch/ensemble.live/internal/platform/requestctx"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps a domain error to its HTTP status and renders the message
// in the request locale. Unclassified errors log at error level; they carry
// internals the player should not see.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	if code == apperrors.CodeUnknown {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	locale := ""
	if tag, ok := requestctx.LocaleFromContext(r.Context()); ok {
		locale = tag.String()
	}
	message := errorsi18n.GetCatalog(locale).Format(string(code), apperrors.GetMetadata(err))
	writeJSON(w, code.HTTPStatus(), errorResponse{Code: string(code), Message: message})
}

// decode parses the request body into target, answering a malformed-request
// body itself. Returns false when the request is already handled.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.CodeMalformedRequest, "decode request body", err))
		return false
	}
	return true
}
