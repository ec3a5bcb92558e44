// Package model defines the normalized entity records synced from the trading
// backend and the hierarchical views rebuilt from them.
//
// Entities are flat: relations are stored as id references, never as embedded
// objects, so any record can be updated independently of records that point at
// it. Every field except the id is optional; a delta carries an arbitrary
// subset and merge is last-write-wins per field.
package model

import "fmt"

// Kind identifies an entity type.
type Kind string

const (
	KindMatch        Kind = "match"
	KindMarket       Kind = "market"
	KindOutcome      Kind = "outcome"
	KindBettingOffer Kind = "betting_offer"
	KindEventInfo    Kind = "event_info"
	KindTournament   Kind = "tournament"
)

// Kinds lists all entity kinds in a stable order.
var Kinds = []Kind{
	KindMatch,
	KindMarket,
	KindOutcome,
	KindBettingOffer,
	KindEventInfo,
	KindTournament,
}

// Key identifies a single normalized record.
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string {
	return string(k.Kind) + "/" + k.ID
}

// Entity is a normalized record of a specific kind.
type Entity interface {
	// Key returns the (kind, id) identity of the record.
	Key() Key

	// MergeFrom applies the non-nil fields of a delta of the same concrete
	// type on top of the receiver.
	MergeFrom(delta Entity)

	// Clone returns a deep copy safe to hand outside the store.
	Clone() Entity
}

// NewEntity returns an empty record of the given kind.
func NewEntity(kind Kind, id string) (Entity, error) {
	switch kind {
	case KindMatch:
		return &Match{ID: id}, nil
	case KindMarket:
		return &Market{ID: id}, nil
	case KindOutcome:
		return &Outcome{ID: id}, nil
	case KindBettingOffer:
		return &BettingOffer{ID: id}, nil
	case KindEventInfo:
		return &EventInfo{ID: id}, nil
	case KindTournament:
		return &Tournament{ID: id}, nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

// Ptr returns a pointer to v. Fixtures and tests use it to build partial records.
func Ptr[T any](v T) *T { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
