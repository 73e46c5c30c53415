package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/companionchat/companion-api/api"
	"github.com/companionchat/companion-api/emotion"
)

// A chatMessage represents a persisted conversation turn in the database.
type chatMessage struct {
	bun.BaseModel `bun:"table:chat_messages"`

	ID            string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	UserID        string    `bun:",notnull"`
	UserEmail     string    `bun:""`
	UserName      string    `bun:""`
	UserMessage   string    `bun:"user_message,notnull"`
	AIResponse    string    `bun:"ai_response,notnull"`
	Emotion       string    `bun:",notnull"`
	RawEmotion    string    `bun:""`
	HadEmotionTag bool      `bun:",notnull,default:false"`
	CreatedAt     time.Time `bun:",nullzero,default:now()"`
}

// A feedMessage represents a message in the global feed with its vote
// counters. The counters are only ever moved by relative updates.
type feedMessage struct {
	bun.BaseModel `bun:"table:feed_messages"`

	ID          string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	MessageText string    `bun:"message_text,notnull"`
	UserID      string    `bun:",notnull"`
	UserName    string    `bun:""`
	UserAvatar  string    `bun:""`
	Emotion     string    `bun:",notnull"`
	Likes       int       `bun:",notnull,default:0"`
	Dislikes    int       `bun:",notnull,default:0"`
	Score       int       `bun:",notnull,default:0"`
	CreatedAt   time.Time `bun:",nullzero,default:now()"`
}

// A feedVote is a user's current vote on one feed message: at most one row
// per (message, user).
type feedVote struct {
	bun.BaseModel `bun:"table:feed_votes"`

	MessageID string    `bun:",pk,type:uuid"`
	UserID    string    `bun:",pk"`
	Vote      string    `bun:",notnull"`
	CreatedAt time.Time `bun:",nullzero,default:now()"`
}

// userPoints is the per-user points record behind the leaderboard.
type userPoints struct {
	bun.BaseModel `bun:"table:user_points"`

	UserID        string    `bun:",pk"`
	UserName      string    `bun:""`
	UserAvatar    string    `bun:""`
	TotalPoints   int       `bun:",notnull,default:0"`
	TotalLikes    int       `bun:",notnull,default:0"`
	TotalMessages int       `bun:",notnull,default:0"`
	LastUpdated   time.Time `bun:",nullzero,default:now()"`
}

// A legacyMessage is a pre-feed per-user message, kept only as the source
// for the one-time feed migration.
type legacyMessage struct {
	bun.BaseModel `bun:"table:user_messages"`

	ID          string    `bun:",pk,type:uuid"`
	UserID      string    `bun:",notnull"`
	MessageText string    `bun:"message_text,notnull"`
	Emotion     string    `bun:""`
	CreatedAt   time.Time `bun:",nullzero,default:now()"`
}

func (m chatMessage) APITurn() api.Turn {
	return api.Turn{
		ID:            m.ID,
		UserID:        m.UserID,
		UserEmail:     m.UserEmail,
		UserName:      m.UserName,
		UserMessage:   m.UserMessage,
		AIResponse:    m.AIResponse,
		Emotion:       emotion.Emotion(m.Emotion),
		RawEmotion:    m.RawEmotion,
		HadEmotionTag: m.HadEmotionTag,
		CreatedAt:     m.CreatedAt,
	}
}

func (m feedMessage) APIFeedMessage() api.FeedMessage {
	return api.FeedMessage{
		ID:         m.ID,
		Text:       m.MessageText,
		UserID:     m.UserID,
		UserName:   m.UserName,
		UserAvatar: m.UserAvatar,
		Emotion:    emotion.Emotion(m.Emotion),
		Likes:      m.Likes,
		Dislikes:   m.Dislikes,
		Score:      m.Score,
		CreatedAt:  m.CreatedAt,
	}
}

func (p userPoints) APIUserPoints() api.UserPoints {
	return api.UserPoints{
		UserID:        p.UserID,
		UserName:      p.UserName,
		UserAvatar:    p.UserAvatar,
		TotalPoints:   p.TotalPoints,
		TotalLikes:    p.TotalLikes,
		TotalMessages: p.TotalMessages,
		LastUpdated:   p.LastUpdated,
	}
}
