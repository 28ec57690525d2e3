package domain

import "time"

type ReactionType string

const (
	ReactionLike      ReactionType = "like"
	ReactionLove      ReactionType = "love"
	ReactionLaugh     ReactionType = "laugh"
	ReactionWow       ReactionType = "wow"
	ReactionSad       ReactionType = "sad"
	ReactionAngry     ReactionType = "angry"
	ReactionCelebrate ReactionType = "celebrate"
	ReactionSupport   ReactionType = "support"
)

var reactionTypes = map[ReactionType]struct{}{
	ReactionLike: {}, ReactionLove: {}, ReactionLaugh: {}, ReactionWow: {},
	ReactionSad: {}, ReactionAngry: {}, ReactionCelebrate: {}, ReactionSupport: {},
}

func (r ReactionType) Valid() bool {
	_, ok := reactionTypes[r]
	return ok
}

// EngagementState is the per-post engagement the viewer sees
type EngagementState struct {
	PostID       ID           `json:"post_id"`
	LikeCount    int          `json:"like_count"`
	UserHasLiked bool         `json:"user_has_liked"`
	Reaction     ReactionType `json:"reaction_type,omitempty"`
	CommentCount int          `json:"comments_count"`
}

// Post is a feed item as listed by GET /posts
type Post struct {
	ID           ID           `json:"id"`
	Author       UserRef      `json:"author"`
	Content      string       `json:"content"`
	LikeCount    int          `json:"like_count"`
	UserHasLiked bool         `json:"user_has_liked"`
	Reaction     ReactionType `json:"reaction_type,omitempty"`
	CommentCount int          `json:"comments_count"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Engagement extracts the engagement part of a post
func (p *Post) Engagement() EngagementState {
	return EngagementState{
		PostID:       p.ID,
		LikeCount:    p.LikeCount,
		UserHasLiked: p.UserHasLiked,
		Reaction:     p.Reaction,
		CommentCount: p.CommentCount,
	}
}

// LikeResult is the authoritative answer of POST /posts/{id}/like
type LikeResult struct {
	LikeCount    int          `json:"like_count"`
	UserHasLiked bool         `json:"user_has_liked"`
	Reaction     ReactionType `json:"reaction_type,omitempty"`
}

type Comment struct {
	ID        ID         `json:"id"`
	PostID    ID         `json:"post"`
	Author    UserRef    `json:"author"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// CommentResult carries the authoritative comment and the parent post's comment count
type CommentResult struct {
	Comment       *Comment `json:"comment,omitempty"`
	CommentsCount int      `json:"comments_count"`
}

// LikeParams is the body of POST /posts/{id}/like. An empty reaction means ReactionLike.
type LikeParams struct {
	Reaction ReactionType `json:"reaction_type,omitempty" validate:"omitempty,oneof=like love laugh wow sad angry celebrate support"`
}

// CommentParams is the body of POST /comments and PATCH /comments/{id}
type CommentParams struct {
	PostID  ID     `json:"post,omitempty"`
	Content string `json:"content" validate:"notblank,max=1000"`
}

// PostParams is the body of POST /posts
type PostParams struct {
	Content string `json:"content" validate:"notblank,max=3000"`
}
