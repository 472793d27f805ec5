// Package publish delivers finished snapshot documents to their
// destinations. Each destination is a Sink; the Fanout runs them all for a
// publication and isolates failures so one dead endpoint never blocks the
// others.
package publish

import (
	"context"
	"errors"
	"time"
)

// Publication is one rendered snapshot on its way out.
type Publication struct {
	// ID correlates log lines and sink attempts for one publication.
	ID string
	// Timestamp is the snapshot generation time.
	Timestamp time.Time
	// Body is the serialized document.
	Body []byte
}

// Sink delivers a publication to one destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, pub Publication) error
}

// ErrStale is returned by sinks that refuse to ship a publication older
// than their staleness cutoff. The fanout records it as a skip.
var ErrStale = errors.New("publication too old for sink")
