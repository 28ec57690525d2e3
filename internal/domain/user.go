package domain

import (
	"strconv"
	"time"
)

// UserID identifies a member of the network
type UserID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ID identifies any server-side record (request, connection, post, comment, notification).
// Values <= 0 are provisional ids assigned by the client to optimistic inserts.
type ID int64

// Provisional reports whether the id was assigned locally and not yet confirmed by the server
func (id ID) Provisional() bool {
	return id <= 0
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// UserRef is an immutable snapshot of a user as shown next to relationship data.
// It never owns relationship data itself.
type UserRef struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"display_name"`
	Headline    string `json:"headline,omitempty"`
}

// TokenResponse is returned by the development login endpoint
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
