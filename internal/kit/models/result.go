package models

// LabResult is one externally reported lab result for a kit. Results arrive
// over an at-least-once feed and may be replayed or delivered out of order;
// the reconciler decides which ones become part of kit history.
//
// CompletedAt is kept as the opaque timestamp string the lab reported: it is
// only ever compared for equality during duplicate detection.
type LabResult struct {
	SampleID    string `json:"sampleId"`
	Value       string `json:"result"`
	CompletedAt string `json:"timeCompleted"`
	Corrected   bool   `json:"isCorrected"`
}

// Event types dispatched to the participant-facing platform.
const (
	EventDelivered = "DELIVERED"
	EventReceived  = "RECEIVED"
	EventResult    = "RESULT"
	EventReminder  = "REMINDER"
)

// Notification is the payload handed to the notification sender when a
// dispatch is admitted. Result is set only for EventResult.
type Notification struct {
	InstanceID    string
	ParticipantID string
	EventType     string
	KitID         string
	Result        *LabResult
}
