package realtime

// Named bus events.
const (
	EventNotification    = "notification"
	EventRequestUpdate   = "request_update"
	EventTaskUpdate      = "task_update"
	EventEquipmentUpdate = "equipment_update"
	EventSystemAlert     = "system_alert"
	EventUserActivity    = "user_activity"

	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// Frame types with a dedicated event. Other types pass through under
// their own name.
var frameEvents = map[string]string{
	"notification":     EventNotification,
	"request_update":   EventRequestUpdate,
	"task_update":      EventTaskUpdate,
	"equipment_update": EventEquipmentUpdate,
	"system_alert":     EventSystemAlert,
	"user_activity":    EventUserActivity,
}

// EventForFrame maps an inbound frame type to its bus event.
func EventForFrame(frameType string) string {
	if ev, ok := frameEvents[frameType]; ok {
		return ev
	}
	return frameType
}

const heartbeatFrame = `{"type":"heartbeat"}`
