package app

import (
	"github.com/odyssey-erp/odyssey-desk/internal/collection"
	"github.com/odyssey-erp/odyssey-desk/internal/rbac"
)

// ownerFields name the entity fields that tie a record to a user.
var ownerFields = []string{"requester", "assigned_to", "created_by"}

// scoped narrows snap.Items to what caps may view.
func scoped(caps rbac.Capability, snap collection.Snapshot) collection.Snapshot {
	if snap.Items == nil {
		return snap
	}
	snap.Items = filterByScope(caps, snap.Items)
	return snap
}

func filterByScope(caps rbac.Capability, items []collection.Entity) []collection.Entity {
	scope := caps.ViewScope()
	if scope == rbac.ScopeAll {
		return items
	}
	kept := make([]collection.Entity, 0, len(items))
	for _, item := range items {
		switch {
		case ownedBy(item, caps.UserID()):
			kept = append(kept, item)
		case scope == rbac.ScopeDepartment && caps.CanAccessDepartment(departmentOf(item)):
			kept = append(kept, item)
		}
	}
	return kept
}

func ownedBy(item collection.Entity, userID string) bool {
	if userID == "" {
		return false
	}
	for _, field := range ownerFields {
		if id, ok := refID(item[field]); ok && id == userID {
			return true
		}
	}
	return false
}

// refID reads a user reference given either as a bare id or as an
// embedded object.
func refID(v any) (string, bool) {
	if m, ok := v.(map[string]any); ok {
		return collection.NormalizeID(m["id"])
	}
	return collection.NormalizeID(v)
}

func departmentOf(item collection.Entity) string {
	switch d := item["department"].(type) {
	case string:
		return d
	case map[string]any:
		name, _ := d["name"].(string)
		return name
	}
	return ""
}
