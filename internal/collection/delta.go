package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Entity is one record as delivered by the API.
type Entity map[string]any

// Delta actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Delta is an incremental change pushed for one entity.
type Delta struct {
	Action string
	// ID is the normalized key used for matching.
	ID string
	// RawID is the identifier as the server sent it; created entries keep
	// it so numeric ids stay numbers.
	RawID any
	Data  Entity
}

// ErrMalformedDelta rejects payloads that are not JSON objects.
var ErrMalformedDelta = errors.New("collection: malformed delta")

// ParseDelta decodes a pushed {action, id, data} payload. When data is
// absent the remaining top-level fields are used as the entity.
func ParseDelta(payload json.RawMessage) (Delta, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil || raw == nil {
		return Delta{}, fmt.Errorf("%w: %v", ErrMalformedDelta, err)
	}
	d := Delta{Action: strings.ToLower(strings.TrimSpace(stringValue(raw["action"])))}
	if data, ok := raw["data"].(map[string]any); ok {
		d.Data = Entity(data)
	} else {
		d.Data = Entity{}
		for k, v := range raw {
			if k != "action" && k != "data" {
				d.Data[k] = v
			}
		}
	}
	if id, ok := NormalizeID(raw["id"]); ok {
		d.ID, d.RawID = id, raw["id"]
	} else if id, ok := NormalizeID(d.Data["id"]); ok {
		d.ID, d.RawID = id, d.Data["id"]
	}
	return d, nil
}

// NormalizeID renders numeric and string identifiers the same way so
// 7, 7.0 and "7" compare equal.
func NormalizeID(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return NormalizeID(string(t))
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	}
	return "", false
}

func (d Delta) rawID() any {
	if d.RawID != nil {
		return d.RawID
	}
	return d.ID
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func merge(base, patch Entity) Entity {
	out := make(Entity, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func indexOf(items []Entity, idField, id string) int {
	for i, item := range items {
		if got, ok := NormalizeID(item[idField]); ok && got == id {
			return i
		}
	}
	return -1
}

// applyList folds d into items. It reports whether anything changed.
// Entities are never mutated; merged entries are fresh maps.
func applyList(items []Entity, idField string, d Delta) ([]Entity, bool) {
	if d.ID == "" {
		return items, false
	}
	i := indexOf(items, idField, d.ID)
	if i >= 0 {
		out := make([]Entity, 0, len(items))
		out = append(out, items[:i]...)
		if d.Action != ActionDelete {
			out = append(out, merge(items[i], d.Data))
		}
		return append(out, items[i+1:]...), true
	}
	if d.Action != ActionCreate {
		return items, false
	}
	created := merge(nil, d.Data)
	if _, ok := NormalizeID(created[idField]); !ok {
		created[idField] = d.rawID()
	}
	out := make([]Entity, 0, len(items)+1)
	out = append(out, created)
	return append(out, items...), true
}

// applyObject merges d into a single-object cache regardless of action.
func applyObject(obj Entity, d Delta) (Entity, bool) {
	if len(d.Data) == 0 {
		return obj, false
	}
	return merge(obj, d.Data), true
}
