package api

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/backend"
	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/middleware"
	"github.com/locolive/proconnect/pkg/response"
)

// FeedHandler serves posts, reactions and comments
type FeedHandler struct {
	service *backend.Service
	logger  *zap.Logger
}

func NewFeedHandler(service *backend.Service, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		service: service,
		logger:  logger,
	}
}

// ListPosts handles GET /posts
func (h *FeedHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	posts, err := h.service.Posts(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "list posts")
		return
	}
	response.OK(w, response.Paginate(r, posts, response.PageParam(r), pageSize))
}

// CreatePost handles POST /posts
func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	var params domain.PostParams
	if err := decode(r, &params); err != nil {
		response.BadRequest(w, "invalid request")
		return
	}

	post, err := h.service.CreatePost(r.Context(), userID, params)
	if err != nil {
		writeError(w, h.logger, err, "create post")
		return
	}
	response.Created(w, post)
}

// Like handles POST /posts/{id}/like
func (h *FeedHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	id, ok := idParam(r, "id")
	if !ok {
		response.NotFound(w, "post not found")
		return
	}
	var params domain.LikeParams
	if err := decode(r, &params); err != nil {
		response.BadRequest(w, "invalid request")
		return
	}

	res, err := h.service.ToggleLike(r.Context(), userID, id, params)
	if err != nil {
		writeError(w, h.logger, err, "like post")
		return
	}
	response.OK(w, res)
}

// ListComments handles GET /comments?post=
func (h *FeedHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(r.URL.Query().Get("post"), 10, 64)
	if err != nil {
		response.Validation(w, "post: must be a post id")
		return
	}

	comments, err := h.service.Comments(r.Context(), domain.ID(postID))
	if err != nil {
		writeError(w, h.logger, err, "list comments")
		return
	}
	response.OK(w, response.Paginate(r, comments, response.PageParam(r), pageSize))
}

// CreateComment handles POST /comments
func (h *FeedHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	var params domain.CommentParams
	if err := decode(r, &params); err != nil {
		response.BadRequest(w, "invalid request")
		return
	}

	res, err := h.service.CreateComment(r.Context(), userID, params)
	if err != nil {
		writeError(w, h.logger, err, "create comment")
		return
	}
	response.Created(w, res)
}

// UpdateComment handles PATCH /comments/{id}
func (h *FeedHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	id, ok := idParam(r, "id")
	if !ok {
		response.NotFound(w, "comment not found")
		return
	}
	var params domain.CommentParams
	if err := decode(r, &params); err != nil {
		response.BadRequest(w, "invalid request")
		return
	}

	res, err := h.service.UpdateComment(r.Context(), userID, id, params)
	if err != nil {
		writeError(w, h.logger, err, "update comment")
		return
	}
	response.OK(w, res)
}

// DeleteComment handles DELETE /comments/{id}
func (h *FeedHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	id, ok := idParam(r, "id")
	if !ok {
		response.NotFound(w, "comment not found")
		return
	}

	res, err := h.service.DeleteComment(r.Context(), userID, id)
	if err != nil {
		writeError(w, h.logger, err, "delete comment")
		return
	}
	response.OK(w, res)
}
