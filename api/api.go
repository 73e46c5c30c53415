package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/companionchat/companion-api/ai"
	"github.com/companionchat/companion-api/emotion"
	"github.com/companionchat/companion-api/feed"
)

// Feed sort orders.
const (
	SortHot    = "hot"    // score desc, then recency
	SortRecent = "recent" // recency only
)

// ErrNotFound is returned by storage when the requested record does not
// exist.
var ErrNotFound = errors.New("not found")

// A DB provides the storage layer that persists turns, the global feed and
// user points.
type DB interface {
	InsertTurn(ctx context.Context, turn Turn) (Turn, error)
	ListUserTurns(ctx context.Context, userID string) ([]Turn, error)
	ListTurns(ctx context.Context) ([]Turn, error)
	InsertFeedMessage(ctx context.Context, msg FeedMessage) (FeedMessage, error)
	ListFeed(ctx context.Context, sort, cursor string, limit int, excludeMsgIDs ...string) ([]FeedMessage, string, error)
	ApplyVote(ctx context.Context, messageID, userID string, requested feed.Vote) (VoteResult, feed.Change, error)
	TopUsers(ctx context.Context, limit int) ([]UserPoints, error)
	AddMessageCredit(ctx context.Context, userID, userName, userAvatar string) error
	MigrateLegacyMessages(ctx context.Context, userID, userName, userAvatar string) (int, error)
}

// A Cache provides a storage layer that caches the recent feed page.
type Cache interface {
	ListFeed(ctx context.Context) ([]FeedMessage, error)
	InsertFeedMessage(ctx context.Context, msg FeedMessage) error
	ApplyVote(ctx context.Context, messageID string, change feed.Change) error
}

// An AI dispatches a chat turn to the configured providers. It never fails:
// provider exhaustion degrades into a fallback reply.
type AI interface {
	SendMessage(ctx context.Context, text string, history []ai.Turn) ai.Reply
}

// A Limiter gates how often a user may start a chat turn.
type Limiter interface {
	Allow(userID string) bool
}

// API provides the REST endpoints for the application.
type API struct {
	Logger  *slog.Logger
	DB      DB
	Cache   Cache
	AI      AI
	Limiter Limiter
	Val     *Validator

	once sync.Once
	mux  *http.ServeMux
}

// pageSize defines the number of feed messages returned per page.
var pageSize = 20

const defaultLeaderboardSize = 10

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", a.createChat)
	mux.HandleFunc("GET /feed", a.listFeed)
	mux.HandleFunc("POST /feed/{messageID}/votes", a.createVote)
	mux.HandleFunc("GET /leaderboard", a.listLeaderboard)
	mux.HandleFunc("GET /users/{userID}/stats", a.userStats)
	mux.HandleFunc("GET /stats/users", a.allUserStats)
	mux.HandleFunc("POST /users/{userID}/migrate", a.migrateUser)

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	a.mux.ServeHTTP(w, r)
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

func (a *API) validateBody(w http.ResponseWriter, s interface{}) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}

var errRateLimited = errors.New("rate limit exceeded")

// createChat runs one conversation turn: rate-limit gate, AI dispatch,
// persistence. Only the rate limiter may block the turn; AI failure has
// already degraded into a fallback reply by the time the dispatcher returns,
// and persistence failures are logged and swallowed so the reply still
// reaches the user.
func (a *API) createChat(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			UserID     string    `json:"user_id" validate:"required"`
			UserName   string    `json:"user_name"`
			UserEmail  string    `json:"user_email"`
			UserAvatar string    `json:"user_avatar"`
			Text       string    `json:"text" validate:"required,max=200"`
			History    []ai.Turn `json:"history"`
		}
		response struct {
			ID          string          `json:"id"`
			Text        string          `json:"text"`
			Emotion     emotion.Emotion `json:"emotion"`
			User        string          `json:"user"`
			UserMessage string          `json:"user_message"`
			Provider    string          `json:"provider"`
			IsFallback  bool            `json:"is_fallback"`
			CreatedAt   string          `json:"created_at"`
		}
	)

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}

	if valid := a.validateBody(w, &body); !valid {
		return
	}

	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return
	}

	if !a.Limiter.Allow(body.UserID) {
		a.respondError(w, http.StatusTooManyRequests, errRateLimited,
			"Rate limit exceeded. Please wait a moment before sending another message.")
		return
	}

	reply := a.AI.SendMessage(r.Context(), body.Text, body.History)

	now := time.Now()
	if _, err := a.DB.InsertTurn(r.Context(), Turn{
		UserID:        body.UserID,
		UserEmail:     body.UserEmail,
		UserName:      body.UserName,
		UserMessage:   body.Text,
		AIResponse:    reply.Text,
		Emotion:       reply.Emotion,
		RawEmotion:    reply.RawEmotion,
		HadEmotionTag: reply.HadTag,
		CreatedAt:     now,
	}); err != nil {
		a.Logger.Error("Could not persist chat turn", "error", err.Error())
	}

	msg, err := a.DB.InsertFeedMessage(r.Context(), FeedMessage{
		Text:       body.Text,
		UserID:     body.UserID,
		UserName:   body.UserName,
		UserAvatar: body.UserAvatar,
		Emotion:    reply.Emotion,
		CreatedAt:  now,
	})
	if err != nil {
		a.Logger.Error("Could not add message to global feed", "error", err.Error())
	} else {
		if err := a.DB.AddMessageCredit(r.Context(), body.UserID, body.UserName, body.UserAvatar); err != nil {
			a.Logger.Error("Could not update message credit", "error", err.Error())
		}
		if err := a.Cache.InsertFeedMessage(r.Context(), msg); err != nil {
			a.Logger.Error("Could not cache feed message", "error", err.Error())
		}
	}

	a.respond(w, http.StatusOK, response{
		ID:          uuid.NewString(),
		Text:        reply.Text,
		Emotion:     reply.Emotion,
		User:        "AI Companion",
		UserMessage: body.Text,
		Provider:    reply.Provider,
		IsFallback:  reply.Fallback,
		CreatedAt:   now.Format(time.RFC3339),
	})
}

func (a *API) listFeed(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Messages   []FeedMessage `json:"messages"`
		NextCursor string        `json:"next_cursor,omitempty"`
	}

	sort := r.URL.Query().Get("sort")
	if sort == "" {
		sort = SortHot
	}
	if sort != SortHot && sort != SortRecent {
		a.respondError(w, http.StatusBadRequest, fmt.Errorf("unknown sort %q", sort), "Unknown sort order")
		return
	}
	cursor := r.URL.Query().Get("cursor")

	var msgs []FeedMessage

	// The first page of the recent sort is served cache-first, with the
	// remainder filled from the DB.
	if sort == SortRecent && cursor == "" {
		cached, err := a.Cache.ListFeed(r.Context())
		if err != nil {
			a.respondError(w, http.StatusInternalServerError, err, "Could not list feed")
			return
		}
		a.Logger.Info("Got feed messages from cache", "count", len(cached))
		msgs = cached
	}

	msgIDs := make([]string, len(msgs))
	for i, msg := range msgs {
		msgIDs[i] = msg.ID
	}

	dbMsgs, next, err := a.DB.ListFeed(r.Context(), sort, cursor, pageSize, msgIDs...)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list feed")
		return
	}
	a.Logger.Info("Got remaining feed messages from DB", "count", len(dbMsgs))

	msgs = append(msgs, dbMsgs...)
	if msgs == nil {
		msgs = []FeedMessage{}
	}

	a.respond(w, http.StatusOK, response{
		Messages:   msgs,
		NextCursor: next,
	})
}

func (a *API) createVote(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserID string `json:"user_id" validate:"required"`
		Type   string `json:"type" validate:"required,votetype"`
	}

	messageID := r.PathValue("messageID")
	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}

	if valid := a.validateBody(w, &body); !valid {
		return
	}

	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Invalid request body")
		return
	}

	result, change, err := a.DB.ApplyVote(r.Context(), messageID, body.UserID, feed.Vote(body.Type))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			a.respondError(w, http.StatusNotFound, err, fmt.Sprintf("message with id %s not found", messageID))
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, fmt.Sprintf("could not apply vote to message with id %s", messageID))
		return
	}

	if err := a.Cache.ApplyVote(r.Context(), messageID, change); err != nil {
		a.Logger.Error("Could not update cached vote counters", "error", err.Error())
	}

	a.respond(w, http.StatusOK, result)
}

func (a *API) listLeaderboard(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Users []UserPoints `json:"users"`
	}

	limit := defaultLeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw), "Invalid limit")
			return
		}
		limit = n
	}

	users, err := a.DB.TopUsers(r.Context(), limit)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list leaderboard")
		return
	}
	if users == nil {
		users = []UserPoints{}
	}

	a.respond(w, http.StatusOK, response{Users: users})
}

func (a *API) userStats(w http.ResponseWriter, r *http.Request) {
	type response struct {
		UserID string `json:"user_id"`
		emotion.Stats
	}

	userID := r.PathValue("userID")
	turns, err := a.DB.ListUserTurns(r.Context(), userID)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not load statistics")
		return
	}

	labels := make([]emotion.Emotion, len(turns))
	for i, turn := range turns {
		labels[i] = turn.Emotion
	}

	a.respond(w, http.StatusOK, response{
		UserID: userID,
		Stats:  emotion.Aggregate(labels),
	})
}

func (a *API) allUserStats(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Users []emotion.UserStats `json:"users"`
	}

	turns, err := a.DB.ListTurns(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not load statistics")
		return
	}

	rows := make([]emotion.Labeled, len(turns))
	for i, turn := range turns {
		rows[i] = emotion.Labeled{
			UserID:   turn.UserID,
			UserName: turn.UserName,
			Emotion:  turn.Emotion,
		}
	}

	users := emotion.AggregateByUser(rows)
	if users == nil {
		users = []emotion.UserStats{}
	}

	a.respond(w, http.StatusOK, response{Users: users})
}

// migrateUser copies a user's legacy messages into the global feed, once.
// The body may carry display fields; an empty body is accepted.
func (a *API) migrateUser(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			UserName   string `json:"user_name"`
			UserAvatar string `json:"user_avatar"`
		}
		response struct {
			Migrated int `json:"migrated"`
		}
	)

	userID := r.PathValue("userID")
	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}

	migrated, err := a.DB.MigrateLegacyMessages(r.Context(), userID, body.UserName, body.UserAvatar)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, fmt.Sprintf("could not migrate messages for user %s", userID))
		return
	}

	a.respond(w, http.StatusOK, response{Migrated: migrated})
}
