package postgres

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/companionchat/companion-api/api"
	"github.com/companionchat/companion-api/feed"
)

// Postgres provides storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and ping the DB to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

// InsertTurn inserts a conversation turn into the database. The returned
// turn holds auto generated fields, such as the row id.
func (pg *Postgres) InsertTurn(ctx context.Context, turn api.Turn) (api.Turn, error) {
	m := &chatMessage{
		UserID:        turn.UserID,
		UserEmail:     turn.UserEmail,
		UserName:      turn.UserName,
		UserMessage:   turn.UserMessage,
		AIResponse:    turn.AIResponse,
		Emotion:       string(turn.Emotion),
		RawEmotion:    turn.RawEmotion,
		HadEmotionTag: turn.HadEmotionTag,
	}
	if _, err := pg.bun.NewInsert().Model(m).Exec(ctx); err != nil {
		return api.Turn{}, fmt.Errorf("insert: %w", err)
	}
	return m.APITurn(), nil
}

// ListUserTurns returns all of one user's conversation turns, newest first.
func (pg *Postgres) ListUserTurns(ctx context.Context, userID string) ([]api.Turn, error) {
	var msgs []chatMessage
	err := pg.bun.NewSelect().
		Model(&msgs).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]api.Turn, len(msgs))
	for i, m := range msgs {
		out[i] = m.APITurn()
	}
	return out, nil
}

// ListTurns returns every conversation turn, newest first.
func (pg *Postgres) ListTurns(ctx context.Context) ([]api.Turn, error) {
	var msgs []chatMessage
	err := pg.bun.NewSelect().
		Model(&msgs).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]api.Turn, len(msgs))
	for i, m := range msgs {
		out[i] = m.APITurn()
	}
	return out, nil
}

// InsertFeedMessage inserts a message into the global feed with zeroed vote
// counters.
func (pg *Postgres) InsertFeedMessage(ctx context.Context, msg api.FeedMessage) (api.FeedMessage, error) {
	m := &feedMessage{
		MessageText: msg.Text,
		UserID:      msg.UserID,
		UserName:    msg.UserName,
		UserAvatar:  msg.UserAvatar,
		Emotion:     string(msg.Emotion),
	}
	if _, err := pg.bun.NewInsert().Model(m).Exec(ctx); err != nil {
		return api.FeedMessage{}, fmt.Errorf("insert: %w", err)
	}
	return m.APIFeedMessage(), nil
}

// A cursor is the keyset position of the last message on a page. The hot
// sort compares (score, created_at, id); the recent sort ignores Score.
type cursor struct {
	Score     int       `json:"s"`
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

func encodeCursor(m feedMessage) string {
	b, _ := json.Marshal(cursor{Score: m.Score, CreatedAt: m.CreatedAt, ID: m.ID})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(s string) (cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	var c cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	return c, nil
}

// ListFeed returns one page of the global feed in the requested sort order
// together with the cursor for the next page. When the composite hot sort
// cannot be served, the page degrades to the recency sort re-sorted by score
// in memory.
func (pg *Postgres) ListFeed(ctx context.Context, sortBy, cur string, limit int, excludeMsgIDs ...string) ([]api.FeedMessage, string, error) {
	msgs, err := pg.listFeedPage(ctx, sortBy, cur, limit, excludeMsgIDs)
	if err != nil && sortBy == api.SortHot {
		msgs, err = pg.listFeedPage(ctx, api.SortRecent, cur, limit, excludeMsgIDs)
		if err == nil {
			sort.SliceStable(msgs, func(i, j int) bool {
				if msgs[i].Score != msgs[j].Score {
					return msgs[i].Score > msgs[j].Score
				}
				return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
			})
		}
	}
	if err != nil {
		return nil, "", err
	}

	var next string
	if len(msgs) == limit {
		next = encodeCursor(msgs[len(msgs)-1])
	}

	out := make([]api.FeedMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m.APIFeedMessage()
	}
	return out, next, nil
}

func (pg *Postgres) listFeedPage(ctx context.Context, sortBy, cur string, limit int, excludeMsgIDs []string) ([]feedMessage, error) {
	var msgs []feedMessage
	q := pg.bun.NewSelect().
		Model(&msgs).
		Limit(limit)

	switch sortBy {
	case api.SortHot:
		q = q.OrderExpr("score DESC, created_at DESC, id DESC")
	default:
		q = q.OrderExpr("created_at DESC, id DESC")
	}

	if cur != "" {
		c, err := decodeCursor(cur)
		if err != nil {
			return nil, err
		}
		if sortBy == api.SortHot {
			q = q.Where("(score, created_at, id) < (?, ?, ?)", c.Score, c.CreatedAt, c.ID)
		} else {
			q = q.Where("(created_at, id) < (?, ?)", c.CreatedAt, c.ID)
		}
	}

	if len(excludeMsgIDs) > 0 {
		q = q.Where("id NOT IN (?)", bun.In(excludeMsgIDs))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return msgs, nil
}

// ApplyVote applies one user's vote to a feed message inside a transaction.
// The current vote row decides the transition; all counters move by relative
// increments so concurrent voters converge, and points accrue to the message
// author. The returned change is the delta set that was applied, for cache
// propagation.
func (pg *Postgres) ApplyVote(ctx context.Context, messageID, userID string, requested feed.Vote) (api.VoteResult, feed.Change, error) {
	var (
		result api.VoteResult
		change feed.Change
	)

	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var msg feedMessage
		err := tx.NewSelect().
			Model(&msg).
			Where("id = ?", messageID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("message %s: %w", messageID, api.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("select message: %w", err)
		}

		current := feed.VoteNone
		var row feedVote
		err = tx.NewSelect().
			Model(&row).
			Where("message_id = ? AND user_id = ?", messageID, userID).
			Scan(ctx)
		switch {
		case err == nil:
			current = feed.Vote(row.Vote)
		case errors.Is(err, sql.ErrNoRows):
		default:
			return fmt.Errorf("select vote: %w", err)
		}

		change = feed.Reconcile(current, requested)

		_, err = tx.NewUpdate().
			Model((*feedMessage)(nil)).
			Set("likes = likes + ?", change.Likes).
			Set("dislikes = dislikes + ?", change.Dislikes).
			Set("score = score + ?", change.Score).
			Where("id = ?", messageID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update counters: %w", err)
		}

		if change.NewVote == feed.VoteNone {
			_, err = tx.NewDelete().
				Model((*feedVote)(nil)).
				Where("message_id = ? AND user_id = ?", messageID, userID).
				Exec(ctx)
		} else {
			_, err = tx.NewInsert().
				Model(&feedVote{
					MessageID: messageID,
					UserID:    userID,
					Vote:      string(change.NewVote),
				}).
				On("CONFLICT (message_id, user_id) DO UPDATE").
				Set("vote = EXCLUDED.vote").
				Exec(ctx)
		}
		if err != nil {
			return fmt.Errorf("update vote row: %w", err)
		}

		if change.Points != 0 || change.Likes != 0 {
			_, err = tx.NewUpdate().
				Model((*userPoints)(nil)).
				Set("total_points = total_points + ?", change.Points).
				Set("total_likes = total_likes + ?", change.Likes).
				Set("last_updated = now()").
				Where("user_id = ?", msg.UserID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update points: %w", err)
			}
		}

		result = api.VoteResult{
			MessageID: messageID,
			Likes:     msg.Likes + change.Likes,
			Dislikes:  msg.Dislikes + change.Dislikes,
			Score:     msg.Score + change.Score,
			UserVote:  change.NewVote,
		}
		return nil
	})
	if err != nil {
		return api.VoteResult{}, feed.Change{}, err
	}
	return result, change, nil
}

// TopUsers returns the leaderboard: up to limit users by total points,
// descending.
func (pg *Postgres) TopUsers(ctx context.Context, limit int) ([]api.UserPoints, error) {
	var rows []userPoints
	err := pg.bun.NewSelect().
		Model(&rows).
		Order("total_points DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]api.UserPoints, len(rows))
	for i, row := range rows {
		out[i] = row.APIUserPoints()
	}
	return out, nil
}

// AddMessageCredit counts one sent message toward the user's points record,
// creating the record on first contact.
func (pg *Postgres) AddMessageCredit(ctx context.Context, userID, userName, userAvatar string) error {
	_, err := pg.bun.NewInsert().
		Model(&userPoints{
			UserID:        userID,
			UserName:      userName,
			UserAvatar:    userAvatar,
			TotalMessages: 1,
			LastUpdated:   time.Now(),
		}).
		On("CONFLICT (user_id) DO UPDATE").
		Set("total_messages = user_points.total_messages + 1").
		Set("last_updated = EXCLUDED.last_updated").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// MigrateLegacyMessages copies a user's legacy per-user messages into the
// global feed with zeroed counters and records the message count on the
// points record. The migration is a no-op when the user already has feed
// entries.
func (pg *Postgres) MigrateLegacyMessages(ctx context.Context, userID, userName, userAvatar string) (int, error) {
	migrated := 0
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := tx.NewSelect().
			Model((*feedMessage)(nil)).
			Where("user_id = ?", userID).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count feed messages: %w", err)
		}
		if existing > 0 {
			return nil
		}

		var legacy []legacyMessage
		err = tx.NewSelect().
			Model(&legacy).
			Where("user_id = ?", userID).
			Order("created_at ASC").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("scan legacy messages: %w", err)
		}
		if len(legacy) == 0 {
			return nil
		}

		msgs := make([]feedMessage, len(legacy))
		for i, m := range legacy {
			msgs[i] = feedMessage{
				ID:          m.ID,
				MessageText: m.MessageText,
				UserID:      userID,
				UserName:    userName,
				UserAvatar:  userAvatar,
				Emotion:     m.Emotion,
				CreatedAt:   m.CreatedAt,
			}
			if msgs[i].Emotion == "" {
				msgs[i].Emotion = "neutral"
			}
		}
		if _, err := tx.NewInsert().Model(&msgs).Exec(ctx); err != nil {
			return fmt.Errorf("insert feed messages: %w", err)
		}

		_, err = tx.NewInsert().
			Model(&userPoints{
				UserID:        userID,
				UserName:      userName,
				UserAvatar:    userAvatar,
				TotalMessages: len(legacy),
				LastUpdated:   time.Now(),
			}).
			On("CONFLICT (user_id) DO UPDATE").
			Set("total_messages = EXCLUDED.total_messages").
			Set("user_name = EXCLUDED.user_name").
			Set("last_updated = EXCLUDED.last_updated").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert points: %w", err)
		}

		migrated = len(legacy)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return migrated, nil
}
