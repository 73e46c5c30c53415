package api

import (
	"time"

	"github.com/companionchat/companion-api/emotion"
	"github.com/companionchat/companion-api/feed"
)

// A Turn represents a persisted conversation turn: the user's message and
// the AI companion's parsed reply. Turns are append-only.
type Turn struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	UserEmail     string          `json:"user_email"`
	UserName      string          `json:"user_name"`
	UserMessage   string          `json:"user_message"`
	AIResponse    string          `json:"ai_response"`
	Emotion       emotion.Emotion `json:"emotion"`
	RawEmotion    string          `json:"raw_emotion"`
	HadEmotionTag bool            `json:"had_emotion_tag"`
	CreatedAt     time.Time       `json:"created_at"`
}

// A FeedMessage is a socially visible message in the global feed, carrying
// its vote counters. Score is maintained as likes minus dislikes by the vote
// reconciliation deltas.
type FeedMessage struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	UserID     string          `json:"user_id"`
	UserName   string          `json:"user_name"`
	UserAvatar string          `json:"user_avatar"`
	Emotion    emotion.Emotion `json:"emotion"`
	Likes      int             `json:"likes"`
	Dislikes   int             `json:"dislikes"`
	Score      int             `json:"score"`
	CreatedAt  time.Time       `json:"created_at"`
}

// UserPoints is a user's accumulated social standing. One record per user.
type UserPoints struct {
	UserID        string    `json:"user_id"`
	UserName      string    `json:"user_name"`
	UserAvatar    string    `json:"user_avatar"`
	TotalPoints   int       `json:"total_points"`
	TotalLikes    int       `json:"total_likes"`
	TotalMessages int       `json:"total_messages"`
	LastUpdated   time.Time `json:"last_updated"`
}

// A VoteResult reports the counters after a vote was applied, together with
// the voter's resulting vote state.
type VoteResult struct {
	MessageID string    `json:"message_id"`
	Likes     int       `json:"likes"`
	Dislikes  int       `json:"dislikes"`
	Score     int       `json:"score"`
	UserVote  feed.Vote `json:"user_vote"`
}
