package domain

import (
	"time"
)

type NotificationKind string

const (
	NotificationLike              NotificationKind = "like"
	NotificationComment           NotificationKind = "comment"
	NotificationShare             NotificationKind = "share"
	NotificationFollow            NotificationKind = "follow"
	NotificationMention           NotificationKind = "mention"
	NotificationJobApplication    NotificationKind = "job_application"
	NotificationConnectionRequest NotificationKind = "connection_request"
	NotificationPostApproved      NotificationKind = "post_approved"
	NotificationSystem            NotificationKind = "system"
)

type Notification struct {
	ID        ID               `json:"id"`
	Recipient UserID           `json:"recipient"`
	Sender    *UserRef         `json:"sender,omitempty"`
	Kind      NotificationKind `json:"notification_type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	ActionURL string           `json:"action_url,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
}

// UnreadCount is the body of GET /notifications/unread_count
type UnreadCount struct {
	UnreadCount int `json:"unread_count"`
}
