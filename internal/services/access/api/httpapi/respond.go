package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	apperrors "github.com/louisbranch/roadwork/internal/platform/errors"
	"github.com/louisbranch/roadwork/internal/platform/requestctx"
	"go.uber.org/zap"
)

const unauthorizedMessage = "invalid credentials"

type errorResponse struct {
	Error    string            `json:"error"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// writeUnauthorized sends the same body for every credential failure so
// callers cannot tell unknown users from wrong secrets.
func (h *Handler) writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="roadwork"`)
	writeJSONError(w, http.StatusUnauthorized, string(apperrors.CodeCredentialInvalid), unauthorizedMessage)
}

// writeError maps a service error to its HTTP status. Internal failures are
// logged and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", requestctx.RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.String("username", requestctx.UsernameFromContext(r.Context())),
			zap.Error(err),
		)
		writeJSONError(w, status, string(code), "internal error")
		return
	}
	resp := errorResponse{Error: string(code), Message: err.Error()}
	var appErr *apperrors.Error
	if stderrors.As(err, &appErr) && len(appErr.Metadata) > 0 {
		resp.Metadata = appErr.Metadata
	}
	writeJSON(w, status, resp)
}

func writeJSONError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
