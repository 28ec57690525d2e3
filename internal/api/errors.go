package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/pkg/response"
	"github.com/locolive/proconnect/pkg/validator"
)

const pageSize = 20

// writeError maps a service error onto the response codes clients rely on
func writeError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, domain.ErrSelfRequest):
		response.SelfRequest(w, "you cannot do that to yourself")
	case errors.As(err, &verrs):
		response.Validation(w, verrs.Error())
	case errors.Is(err, domain.ErrValidation):
		response.Validation(w, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "not found")
	case errors.Is(err, domain.ErrAlreadyRelated):
		response.Conflict(w, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		response.Unauthorized(w, "not authenticated")
	default:
		logger.Error("failed to "+action, zap.Error(err))
		response.InternalError(w, "failed to "+action)
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func idParam(r *http.Request, name string) (domain.ID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return domain.ID(id), true
}
