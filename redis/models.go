package redis

import (
	"time"

	"github.com/companionchat/companion-api/api"
	"github.com/companionchat/companion-api/emotion"
)

// A feedMessage represents a cached global-feed message. The vote counters
// live in the same hash so they can be moved with HIncrBy.
type feedMessage struct {
	ID         string    `redis:"id"`
	Text       string    `redis:"text"`
	UserID     string    `redis:"user_id"`
	UserName   string    `redis:"user_name"`
	UserAvatar string    `redis:"user_avatar"`
	Emotion    string    `redis:"emotion"`
	Likes      int       `redis:"likes"`
	Dislikes   int       `redis:"dislikes"`
	Score      int       `redis:"score"`
	CreatedAt  time.Time `redis:"created_at"`
}

func (m feedMessage) APIFeedMessage() api.FeedMessage {
	return api.FeedMessage{
		ID:         m.ID,
		Text:       m.Text,
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
