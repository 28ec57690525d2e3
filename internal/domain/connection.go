package domain

import (
	"time"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusDeclined  RequestStatus = "declined"
	RequestStatusWithdrawn RequestStatus = "withdrawn"
)

// Terminal reports whether no further transition is possible for this request instance
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusAccepted || s == RequestStatusDeclined || s == RequestStatusWithdrawn
}

// RespondAction is the receiver's answer to a pending request
type RespondAction string

const (
	ActionAccept  RespondAction = "accept"
	ActionDecline RespondAction = "decline"
)

func (a RespondAction) Valid() bool {
	return a == ActionAccept || a == ActionDecline
}

// ConnectionRequest is a directed proposal to form a Connection
type ConnectionRequest struct {
	ID          ID            `json:"id"`
	Sender      UserRef       `json:"sender"`
	Receiver    UserRef       `json:"receiver"`
	Message     string        `json:"message,omitempty"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	RespondedAt *time.Time    `json:"responded_at,omitempty"`

	// Set only on the response to an accepted respond call
	Connection *Connection `json:"connection,omitempty"`
}

// Involves reports whether the user is the sender or the receiver
func (r *ConnectionRequest) Involves(userID UserID) bool {
	return r.Sender.ID == userID || r.Receiver.ID == userID
}

// Connection is an accepted, undirected link between two users
type Connection struct {
	ID               ID         `json:"id"`
	UserA            UserRef    `json:"user_a"`
	UserB            UserRef    `json:"user_b"`
	RequestID        ID         `json:"request_id,omitempty"`
	ConnectedAt      time.Time  `json:"connected_at"`
	InteractionCount int        `json:"interaction_count"`
	LastInteraction  *time.Time `json:"last_interaction,omitempty"`
}

// Involves reports whether the user is one of the two parties
func (c *Connection) Involves(userID UserID) bool {
	return c.UserA.ID == userID || c.UserB.ID == userID
}

// Other returns the party that is not userID
func (c *Connection) Other(userID UserID) UserRef {
	if c.UserA.ID == userID {
		return c.UserB
	}
	return c.UserA
}

// Follow is a one-directional subscription, independent of connections
type Follow struct {
	ID        ID        `json:"id"`
	Follower  UserRef   `json:"follower"`
	Following UserRef   `json:"following"`
	CreatedAt time.Time `json:"created_at"`
}

// RelationshipStatus is the derived relation of an ordered pair (viewer, other)
type RelationshipStatus string

const (
	StatusNone            RelationshipStatus = "none"
	StatusPendingSent     RelationshipStatus = "pending-sent"
	StatusPendingReceived RelationshipStatus = "pending-received"
	StatusConnected       RelationshipStatus = "connected"
)

// SendRequestParams is the body of POST /connections/requests
type SendRequestParams struct {
	ReceiverID UserID `json:"receiver_id" validate:"gt=0"`
	Message    string `json:"message,omitempty" validate:"max=500"`
}

// RespondParams is the body of POST /connections/requests/{id}/respond
type RespondParams struct {
	Action RespondAction `json:"action" validate:"oneof=accept decline"`
}

// FollowParams is the body of POST /connections/follows
type FollowParams struct {
	UserID UserID `json:"user_id" validate:"gt=0"`
}
