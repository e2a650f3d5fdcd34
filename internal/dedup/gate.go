// Package dedup decides whether a fresh observation is new relative to the latest
// recorded row for the same natural key.
package dedup

import (
	"bytes"

	"chronicle/internal/models"
)

// Decision is the outcome of comparing a candidate with its prior row.
type Decision int

const (
	Skip Decision = iota
	Commit
)

func (d Decision) String() string {
	if d == Commit {
		return "commit"
	}
	return "skip"
}

// Prior is the latest recorded row for a key, plus the blob bytes it references when
// the kind compares by bytes.
type Prior struct {
	Row  models.Row
	Data []byte
	// DataMissing is set when the referenced blob could not be found.
	DataMissing bool
}

// Candidate is a freshly fetched observation.
type Candidate struct {
	Payload []byte
	Attrs   map[string]string
}

// Decide applies the kind's equality policy. A nil prior always commits.
func Decide(kind models.Kind, prior *Prior, cand Candidate) Decision {
	if prior == nil {
		return Commit
	}

	switch kind.Equality {
	case models.ByteEquality:
		if prior.DataMissing {
			return Commit
		}
		if bytes.Equal(prior.Data, cand.Payload) {
			return Skip
		}
		return Commit
	case models.CanonicalStringEquality:
		// Verbatim comparison: key order or whitespace changes count as new content.
		if string(cand.Payload) == prior.Row.Payload {
			return Skip
		}
		return Commit
	case models.PresenceOnly:
		return Skip
	case models.AttributeEquality:
		for _, attr := range kind.CompareAttrs {
			if prior.Row.Attrs[attr] != cand.Attrs[attr] {
				return Commit
			}
		}
		return Skip
	default:
		return Commit
	}
}
