package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/harvesthub/internal/common"
	"github.com/dmitrijs2005/harvesthub/internal/server/passwords"
	"github.com/dmitrijs2005/harvesthub/internal/server/services"
	"github.com/dmitrijs2005/harvesthub/internal/server/validation"
)

// maxReadBytes bounds request bodies.
const maxReadBytes = 1 * 1024 * 1024

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Kind    common.Kind             `json:"kind"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
	Hints   []string                `json:"hints,omitempty"`
}

var statusByKind = map[common.Kind]int{
	common.KindBadRequest:     http.StatusBadRequest,
	common.KindValidation:     http.StatusBadRequest,
	common.KindWeakPassword:   http.StatusBadRequest,
	common.KindCaptcha:        http.StatusBadRequest,
	common.KindInvalidToken:   http.StatusBadRequest,
	common.KindAuthToken:      http.StatusUnauthorized,
	common.KindForbidden:      http.StatusForbidden,
	common.KindDuplicateEmail: http.StatusConflict,
	common.KindRateLimited:    http.StatusTooManyRequests,
	common.KindInfrastructure: http.StatusInternalServerError,
}

var defaultMessages = map[common.Kind]string{
	common.KindBadRequest:     "Bad request",
	common.KindValidation:     "Validation failed",
	common.KindWeakPassword:   "Password is too weak",
	common.KindInfrastructure: "Internal server error",
}

// StatusOf maps err to its HTTP status code.
func StatusOf(err error) int {
	return statusByKind[common.KindOf(err)]
}

func newErrorResponse(err error) errorResponse {
	kind := common.KindOf(err)
	resp := errorResponse{Kind: kind, Message: defaultMessages[kind]}

	var svcErr *services.Error
	if errors.As(err, &svcErr) && kind != common.KindInfrastructure {
		resp.Message = svcErr.Message
	}

	var verr *validation.Errors
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}

	var werr *passwords.WeakPasswordError
	if errors.As(err, &werr) {
		resp.Hints = werr.Hints
	}

	if resp.Message == "" {
		resp.Message = err.Error()
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusOf(err), newErrorResponse(err))
}

// decode reads a JSON body of at most maxReadBytes. Unknown fields are ignored.
func decode(r io.Reader, v any) error {
	if err := json.NewDecoder(io.LimitReader(r, maxReadBytes)).Decode(v); err != nil {
		return errBadBody
	}
	return nil
}

var errBadBody = &services.Error{Err: common.ErrBadRequest, Message: "Invalid request body"}
