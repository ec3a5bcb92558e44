package transport

import (
	"fmt"

	"golang.org/x/text/language"
)

// Topic is the server-side subscription scope for the socket binding. Its
// fields fully determine the feed the backend sends and are the paginator's
// only tunable knobs.
type Topic struct {
	OperatorID      string `json:"operator_id"`
	Language        string `json:"language"`
	SportID         string `json:"sport_id"`
	NumberOfEvents  int    `json:"number_of_events"`
	MarketsPerEvent int    `json:"markets_per_event"`
	InPlayOnly      bool   `json:"in_play_only,omitempty"`
}

// Normalize validates the topic and canonicalizes its language tag
// ("en_GB" and "en-gb" both become "en-GB").
func (t Topic) Normalize() (Topic, error) {
	if t.OperatorID == "" {
		return Topic{}, fmt.Errorf("topic missing operator id")
	}
	if t.SportID == "" {
		return Topic{}, fmt.Errorf("topic missing sport id")
	}
	if t.NumberOfEvents <= 0 {
		return Topic{}, fmt.Errorf("topic needs a positive event count, got %d", t.NumberOfEvents)
	}
	if t.MarketsPerEvent < 0 {
		return Topic{}, fmt.Errorf("topic markets-per-event must not be negative, got %d", t.MarketsPerEvent)
	}

	tag, err := language.Parse(t.Language)
	if err != nil {
		return Topic{}, fmt.Errorf("topic language %q: %w", t.Language, err)
	}
	t.Language = tag.String()
	return t, nil
}

// WithEventCount returns a copy scoped to a different page size. Used by
// pagination: a larger count re-subscribes the same feed.
func (t Topic) WithEventCount(n int) Topic {
	t.NumberOfEvents = n
	return t
}

func (t Topic) String() string {
	scope := "prelive"
	if t.InPlayOnly {
		scope = "live"
	}
	return fmt.Sprintf("%s/%s/sport-%s/%s/n%d/m%d",
		t.OperatorID, t.Language, t.SportID, scope, t.NumberOfEvents, t.MarketsPerEvent)
}
