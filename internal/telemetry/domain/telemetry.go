package domain

import "time"

// EventTypeNewAlarm is the event type of AlarmNotification.
const EventTypeNewAlarm = "new_alarm"

// AlarmNotification announces an alarm occurrence that was shown to a session for the first time.
type AlarmNotification struct {
	EventType string    `json:"eventType"`
	SessionID string    `json:"sessionId"`
	AlarmID   string    `json:"alarmId"`
	Service   string    `json:"service"`
	EventID   string    `json:"eventId"`
	AlarmType string    `json:"alarmType"`
	Message   string    `json:"message"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	CreatedAt time.Time `json:"createdAt"`
}
