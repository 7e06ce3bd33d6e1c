package models

import (
	"strings"
	"time"
)

// Direction distinguishes the two shipments a kit makes: out to the
// participant and back to the lab.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionReturn   Direction = "return"
)

// Carrier status codes as they appear as the first token of a stored status
// string (e.g. "O Out For Delivery").
const (
	CodeOutForDelivery = "O"
	CodePickup         = "P"
	CodeDelivered      = "D"
)

// KitRecord identifies one physical specimen-collection kit. Status fields
// are mutated only by the tracking poller; ExternalOrderNumber only by the
// order-placement path. Records are never deleted; a kit is logically closed
// once both status tokens reach CodeDelivered.
type KitRecord struct {
	KitID               string
	KitLabel            string
	InstanceID          string
	ParticipantID       string
	OutboundTracking    string
	ReturnTracking      string
	OutboundStatus      string
	OutboundStatusDate  string
	ReturnStatus        string
	ReturnStatusDate    string
	ExternalOrderNumber string

	ScanDate      *time.Time
	ReceiveDate   *time.Time
	DeactivatedAt *time.Time
}

// TrackingNumber returns the tracking number for the given direction.
func (k *KitRecord) TrackingNumber(dir Direction) string {
	if dir == DirectionReturn {
		return k.ReturnTracking
	}
	return k.OutboundTracking
}

// Status returns the stored status string for the given direction.
func (k *KitRecord) Status(dir Direction) string {
	if dir == DirectionReturn {
		return k.ReturnStatus
	}
	return k.OutboundStatus
}

// StatusDate returns the stored status date for the given direction.
func (k *KitRecord) StatusDate(dir Direction) string {
	if dir == DirectionReturn {
		return k.ReturnStatusDate
	}
	return k.OutboundStatusDate
}

// StatusCode extracts the carrier code token from a stored status string.
// Stored statuses have the form "<code> <description>"; a blank status
// yields "".
func StatusCode(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	if i := strings.IndexByte(status, ' '); i >= 0 {
		return status[:i]
	}
	return status
}

// TrackingStatusUpdate is the ephemeral value carried from a carrier
// response. It is consumed immediately to decide transitions and never
// persisted standalone.
type TrackingStatusUpdate struct {
	TrackingNumber string
	Direction      Direction
	Code           string
	Description    string
	Timestamp      string
}

// StatusString is the value persisted onto the kit row: code and description
// joined, so the stored prefix token stays comparable across polls.
func (u TrackingStatusUpdate) StatusString() string {
	return u.Code + " " + u.Description
}
