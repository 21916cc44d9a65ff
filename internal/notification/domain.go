// Package notification models the bounded notification feed held by a
// desk session.
package notification

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxItems bounds the in-memory feed.
const MaxItems = 50

// Notification is one feed entry.
type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Priority  string    `json:"priority"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
	ActionURL string    `json:"action_url,omitempty"`
}

// FromPayload decodes a pushed notification payload. The id may arrive as
// a number or a numeric string; anything else leaves ID zero, which marks
// an entry the server cannot acknowledge individually.
func FromPayload(payload json.RawMessage) (Notification, error) {
	var wire struct {
		Notification
		ID any `json:"id"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Notification{}, fmt.Errorf("notification: decode payload: %w", err)
	}
	n := wire.Notification
	n.ID = parseID(wire.ID)
	return n, nil
}

func parseID(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0
		}
		return id
	}
	return 0
}
