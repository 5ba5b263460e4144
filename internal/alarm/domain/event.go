package domain

import "time"

// Key identifies an alarm occurrence within a session: one alarm rule firing for one service.
type Key struct {
	AlarmID string
	Service string
}

// PersistedEvent is the last alarm event shown to a session for a Key. At most one exists per
// (session, alarm, service); a newer event replaces it.
type PersistedEvent struct {
	SessionID string
	AlarmID   string
	Service   string
	// EventID is the backend-assigned unique id of the event.
	EventID   string
	EventType string
	StartTime time.Time
	EndTime   time.Time
	Message   string
}

// Key returns the occurrence key of the event.
func (e *PersistedEvent) Key() Key {
	return Key{AlarmID: e.AlarmID, Service: e.Service}
}
