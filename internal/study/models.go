// Package study exposes read-only study/instance configuration. Which
// studies have which capabilities is authored elsewhere; this core only
// consults it.
package study

import "time"

// Study is the configuration for one study instance (tenant).
type Study struct {
	InstanceID string
	Name       string
	BaseURL    string
	Active     bool

	TrackingEnabled   bool
	RemindersEnabled  bool
	ReminderThreshold time.Duration
}
