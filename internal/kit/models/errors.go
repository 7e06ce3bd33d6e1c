package models

import "fmt"

// RowCountError reports a status update that did not affect exactly the
// expected number of sub-kit rows. It signals a data inconsistency around
// the tracking number and is fatal to the current poll batch.
type RowCountError struct {
	TrackingNumber string
	Rows           int
}

func (e *RowCountError) Error() string {
	return fmt.Sprintf("tracking status update for %s affected %d rows, expected %d",
		e.TrackingNumber, e.Rows, SubKitsPerTrackingNumber)
}

// SubKitsPerTrackingNumber is the number of sub-kit rows a single tracking
// number covers. Every kit ships as this many physical sub-kits.
const SubKitsPerTrackingNumber = 2
