package collection

import "github.com/odyssey-erp/odyssey-desk/internal/realtime"

var domainEvents = map[string]string{
	"requests":      realtime.EventRequestUpdate,
	"tasks":         realtime.EventTaskUpdate,
	"equipment":     realtime.EventEquipmentUpdate,
	"notifications": realtime.EventNotification,
}

// EventFor returns the bus event carrying deltas for domain, falling back
// to "<domain>_update".
func EventFor(domain string) string {
	if ev, ok := domainEvents[domain]; ok {
		return ev
	}
	return domain + "_update"
}
