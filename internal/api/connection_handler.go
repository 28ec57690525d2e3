package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/backend"
	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/middleware"
	"github.com/locolive/proconnect/pkg/response"
)

type ConnectionHandler struct {
	service *backend.Service
	logger  *zap.Logger
}

func NewConnectionHandler(service *backend.Service, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		service: service,
		logger:  logger,
	}
}

// SendRequest handles POST /connections/requests
func (h *ConnectionHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	var params domain.SendRequestParams
	if err := decode(r, &params); err != nil {
		response.BadRequest(w, "invalid request")
		return
	}

	req, err := h.service.SendRequest(r.Context(), userID, params)
	if err != nil {
		writeError(w, h.logger, err, "send request")
		return
	}
	response.Created(w, req)
}

// RespondRequest handles POST /connections/requests/{id}/respond
func (h *ConnectionHandler) RespondRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	id, ok := idParam(r, "id")
	if !ok {
		response.NotFound(w, "connection request not found")
		return
	}
	var params domain.RespondParams
	if err := decode(r, &params); err != nil {
		response.BadRequest(w, "invalid request")
		return
	}

	req, err := h.service.Respond(r.Context(), userID, id, params)
	if err != nil {
		writeError(w, h.logger, err, "respond to request")
		return
	}
	response.OK(w, req)
}

// WithdrawRequest handles DELETE /connections/requests/{id}
func (h *ConnectionHandler) WithdrawRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	id, ok := idParam(r, "id")
	if !ok {
		response.NotFound(w, "connection request not found")
		return
	}
	if err := h.service.Withdraw(r.Context(), userID, id); err != nil {
		writeError(w, h.logger, err, "withdraw request")
		return
	}
	response.NoContent(w)
}

// GetRequests handles GET /connections/requests, both directions
func (h *ConnectionHandler) GetRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	reqs, err := h.service.Requests(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "get requests")
		return
	}
	response.OK(w, response.Paginate(r, reqs, response.PageParam(r), pageSize))
}

// GetConnections handles GET /connections/connections
func (h *ConnectionHandler) GetConnections(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	conns, err := h.service.Connections(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "get connections")
		return
	}
	response.OK(w, response.Paginate(r, conns, response.PageParam(r), pageSize))
}

// RemoveConnection handles DELETE /connections/connections/{id}
func (h *ConnectionHandler) RemoveConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	id, ok := idParam(r, "id")
	if !ok {
		response.NotFound(w, "connection not found")
		return
	}
	if err := h.service.RemoveConnection(r.Context(), userID, id); err != nil {
		writeError(w, h.logger, err, "remove connection")
		return
	}
	response.NoContent(w)
}

// GetFollowing handles GET /connections/follows
func (h *ConnectionHandler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	follows, err := h.service.Following(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "get follows")
		return
	}
	response.OK(w, response.Paginate(r, follows, response.PageParam(r), pageSize))
}

// GetFollowers handles GET /connections/follows/followers
func (h *ConnectionHandler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	follows, err := h.service.Followers(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "get followers")
		return
	}
	response.OK(w, response.Paginate(r, follows, response.PageParam(r), pageSize))
}

// Follow handles POST /connections/follows
func (h *ConnectionHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	var params domain.FollowParams
	if err := decode(r, &params); err != nil {
		response.BadRequest(w, "invalid request")
		return
	}

	f, err := h.service.Follow(r.Context(), userID, params)
	if err != nil {
		writeError(w, h.logger, err, "follow")
		return
	}
	response.Created(w, f)
}

// Unfollow handles DELETE /connections/follows/{user_id}
func (h *ConnectionHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	target, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		response.NotFound(w, "not following this user")
		return
	}
	if err := h.service.Unfollow(r.Context(), userID, domain.UserID(target)); err != nil {
		writeError(w, h.logger, err, "unfollow")
		return
	}
	response.NoContent(w)
}
