package carrier

import (
	"fmt"
	"strings"
)

// Wire shapes of the carrier tracking response. Only the first
// shipment/package/activity matters: activities arrive newest first.
type trackingResponse struct {
	TrackResponse *trackResponse `json:"trackResponse"`
	Errors        []APIError     `json:"errors"`
}

type trackResponse struct {
	Shipments []shipment `json:"shipment"`
}

type shipment struct {
	Packages []trackedPackage `json:"package"`
}

type trackedPackage struct {
	Activities []activity `json:"activity"`
}

type activity struct {
	Status activityStatus `json:"status"`
	Date   string         `json:"date"`
	Time   string         `json:"time"`
}

type activityStatus struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// APIError is one error entry the carrier returns instead of tracking data.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorList is the carrier's error response for a tracking number. The
// poller treats it as a soft failure: logged, kit skipped, retried next
// cycle.
type ErrorList struct {
	TrackingNumber string
	Errors         []APIError
}

func (e *ErrorList) Error() string {
	var b strings.Builder
	for _, apiErr := range e.Errors {
		fmt.Fprintf(&b, "got error: %s %s for tracking number %s; ", apiErr.Code, apiErr.Message, e.TrackingNumber)
	}
	return strings.TrimSuffix(b.String(), "; ")
}
