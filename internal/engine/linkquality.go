package engine

import "github.com/kjstillabower/gauge-data-service/internal/models"

// linkQuality tracks the most recent sensor-contact indicator. Most recent
// value wins; the ignore override forces contact OK regardless.
type linkQuality struct {
	field  string
	ignore bool

	lost bool
	seen bool
}

func newLinkQuality(field string, ignore bool) *linkQuality {
	return &linkQuality{field: field, ignore: ignore}
}

// observe picks the contact indicator out of a sample if present. A zero
// value means the console has lost contact with the sensor suite.
func (l *linkQuality) observe(s models.Sample) {
	v, ok := s.Value(l.field)
	if !ok {
		return
	}
	l.seen = true
	l.lost = v == 0
}

// contactLost reports whether the snapshot should flag lost contact.
func (l *linkQuality) contactLost() bool {
	if l.ignore || !l.seen {
		return false
	}
	return l.lost
}
