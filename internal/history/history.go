package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/afedeli/pressline/internal/kvstore"
)

// Turn is one committed exchange. Immutable once stored: a turn is only
// persisted after generation succeeds, so partial turns never exist.
type Turn struct {
	User          string    `json:"user"`
	Bot           string    `json:"bot"`
	UserTimestamp time.Time `json:"userTimestamp"`
	BotTimestamp  time.Time `json:"botTimestamp"`
}

// Message is the flattened presentation form: each turn expands into a user
// message followed by an assistant message.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the session-scoped, append-only, bounded turn log. Bounding, trim
// and expiry are the store's list semantics; Log owns the turn encoding.
type Log struct {
	store kvstore.Store
}

func NewLog(store kvstore.Store) *Log {
	return &Log{store: store}
}

// Append commits one finished exchange. Both timestamps carry the commit
// time; arrival time is not captured separately.
func (l *Log) Append(ctx context.Context, sessionID, userText, botText string) error {
	now := time.Now().UTC()
	item, err := json.Marshal(Turn{
		User:          userText,
		Bot:           botText,
		UserTimestamp: now,
		BotTimestamp:  now,
	})
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	return l.store.ListAppend(ctx, kvstore.HistoryKey(sessionID), string(item))
}

// Turns returns the full log in chronological order.
func (l *Log) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	return l.rangeTurns(ctx, sessionID, 0, -1)
}

// Page returns one page of turns. Pages are 1-based; page p covers stored
// offsets [(p-1)*size, p*size-1].
func (l *Log) Page(ctx context.Context, sessionID string, page, pageSize int) ([]Turn, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	start := int64(page-1) * int64(pageSize)
	return l.rangeTurns(ctx, sessionID, start, start+int64(pageSize)-1)
}

func (l *Log) rangeTurns(ctx context.Context, sessionID string, start, stop int64) ([]Turn, error) {
	items, err := l.store.ListRange(ctx, kvstore.HistoryKey(sessionID), start, stop)
	if err != nil {
		return nil, err
	}
	turns := make([]Turn, 0, len(items))
	for _, item := range items {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			log.Printf("history: skipping undecodable turn for session %s: %v", sessionID, err)
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Reset deletes the session's log. Idempotent.
func (l *Log) Reset(ctx context.Context, sessionID string) error {
	return l.store.Delete(ctx, kvstore.HistoryKey(sessionID))
}

// Messages flattens turns for external consumption, preserving turn order
// and user-before-assistant order within each turn.
func Messages(turns []Turn) []Message {
	out := make([]Message, 0, len(turns)*2)
	for i, t := range turns {
		out = append(out,
			Message{
				ID:        fmt.Sprintf("%d-user", i),
				Content:   t.User,
				Type:      "user",
				Timestamp: t.UserTimestamp,
			},
			Message{
				ID:        fmt.Sprintf("%d-bot", i),
				Content:   t.Bot,
				Type:      "assistant",
				Timestamp: t.BotTimestamp,
			},
		)
	}
	return out
}
