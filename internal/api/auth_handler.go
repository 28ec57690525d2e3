package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/auth"
	"github.com/locolive/proconnect/internal/backend"
	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/middleware"
	"github.com/locolive/proconnect/pkg/response"
)

// AuthHandler issues development tokens and serves the user directory
type AuthHandler struct {
	service    *backend.Service
	jwtManager *auth.JWTManager
	logger     *zap.Logger
}

func NewAuthHandler(service *backend.Service, jwtManager *auth.JWTManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service:    service,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// Token handles POST /auth/token. There are no passwords: any existing user id gets a token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID domain.UserID `json:"user_id"`
	}
	if err := decode(r, &req); err != nil || req.UserID <= 0 {
		response.BadRequest(w, "user_id is required")
		return
	}

	user, err := h.service.User(r.Context(), req.UserID)
	if err != nil {
		writeError(w, h.logger, err, "issue token")
		return
	}

	tok, err := h.jwtManager.GenerateAccessToken(user)
	if err != nil {
		h.logger.Error("failed to sign token", zap.Error(err))
		response.InternalError(w, "failed to issue token")
		return
	}
	response.OK(w, tok)
}

// Me handles GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	user, err := h.service.User(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "get user")
		return
	}
	response.OK(w, user)
}

// ListUsers handles GET /users?search=
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Users(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, h.logger, err, "list users")
		return
	}
	response.OK(w, response.Paginate(r, users, response.PageParam(r), pageSize))
}
