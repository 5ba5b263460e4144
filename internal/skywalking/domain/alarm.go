package domain

import "time"

// AlarmType classifies alarm events.
type AlarmType string

const (
	AlarmTypeError  AlarmType = "Error"
	AlarmTypeNormal AlarmType = "Normal"
)

// AlarmEvent is one firing of an alarm for a source service.
type AlarmEvent struct {
	// UUID is assigned by the backend and changes every time the alarm fires again.
	UUID      string
	AlarmID   string
	Name      string
	Service   string
	Type      AlarmType
	StartTime time.Time
	EndTime   time.Time
	Message   string
}

// Alarm groups the events reported under one alarm id.
type Alarm struct {
	ID      string
	Message string
	Events  []AlarmEvent
}
