package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/backend"
	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/middleware"
	"github.com/locolive/proconnect/pkg/response"
)

type NotificationHandler struct {
	service *backend.Service
	logger  *zap.Logger
}

func NewNotificationHandler(service *backend.Service, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger,
	}
}

// GetNotifications handles GET /notifications
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	notifs, err := h.service.Notifications(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "fetch notifications")
		return
	}
	response.OK(w, response.Paginate(r, notifs, response.PageParam(r), pageSize))
}

// UnreadCount handles GET /notifications/unread_count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "count notifications")
		return
	}
	response.OK(w, domain.UnreadCount{UnreadCount: count})
}

// MarkRead handles PATCH /notifications/{id}/mark_read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	id, ok := idParam(r, "id")
	if !ok {
		response.NotFound(w, "notification not found")
		return
	}
	if err := h.service.MarkRead(r.Context(), userID, id); err != nil {
		writeError(w, h.logger, err, "mark read")
		return
	}
	response.NoContent(w)
}

// MarkAllRead handles POST /notifications/mark_all_read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	count, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err, "mark all read")
		return
	}
	h.logger.Debug("marked notifications read", zap.Stringer("user_id", userID), zap.Int("count", count))
	response.NoContent(w)
}
