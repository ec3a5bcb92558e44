package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Catalog entities
// -----------------------------------------------------------------------------

// Tournament represents a competition within a sport category
// (e.g., "Premier League" inside "England").
type Tournament struct {
	ID               string  `json:"id"`
	Name             *string `json:"name,omitempty"`
	SportID          *string `json:"sport_id,omitempty"`
	CategoryID       *string `json:"category_id,omitempty"`
	CategoryName     *string `json:"category_name,omitempty"`
	CategoryPosition *int    `json:"category_position,omitempty"`
	Position         *int    `json:"position,omitempty"`
}

func (t *Tournament) Key() Key { return Key{Kind: KindTournament, ID: t.ID} }

func (t *Tournament) MergeFrom(delta Entity) {
	d, ok := delta.(*Tournament)
	if !ok {
		return
	}
	if d.Name != nil {
		t.Name = d.Name
	}
	if d.SportID != nil {
		t.SportID = d.SportID
	}
	if d.CategoryID != nil {
		t.CategoryID = d.CategoryID
	}
	if d.CategoryName != nil {
		t.CategoryName = d.CategoryName
	}
	if d.CategoryPosition != nil {
		t.CategoryPosition = d.CategoryPosition
	}
	if d.Position != nil {
		t.Position = d.Position
	}
}

func (t *Tournament) Clone() Entity {
	c := *t
	c.Name = clonePtr(t.Name)
	c.SportID = clonePtr(t.SportID)
	c.CategoryID = clonePtr(t.CategoryID)
	c.CategoryName = clonePtr(t.CategoryName)
	c.CategoryPosition = clonePtr(t.CategoryPosition)
	c.Position = clonePtr(t.Position)
	return &c
}

// Match represents a sporting event between two participants.
type Match struct {
	ID              string     `json:"id"`
	Name            *string    `json:"name,omitempty"`
	SportID         *string    `json:"sport_id,omitempty"`
	TournamentID    *string    `json:"tournament_id,omitempty"`
	HomeParticipant *string    `json:"home_participant,omitempty"`
	AwayParticipant *string    `json:"away_participant,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	Status          *string    `json:"status,omitempty"` // not_started, live, ended
	Position        *int       `json:"position,omitempty"`

	// Relations by id. A delta carrying a relation list replaces it wholesale.
	MarketIDs    []string `json:"market_ids,omitempty"`
	EventInfoIDs []string `json:"event_info_ids,omitempty"`
}

func (m *Match) Key() Key { return Key{Kind: KindMatch, ID: m.ID} }

func (m *Match) MergeFrom(delta Entity) {
	d, ok := delta.(*Match)
	if !ok {
		return
	}
	if d.Name != nil {
		m.Name = d.Name
	}
	if d.SportID != nil {
		m.SportID = d.SportID
	}
	if d.TournamentID != nil {
		m.TournamentID = d.TournamentID
	}
	if d.HomeParticipant != nil {
		m.HomeParticipant = d.HomeParticipant
	}
	if d.AwayParticipant != nil {
		m.AwayParticipant = d.AwayParticipant
	}
	if d.StartTime != nil {
		m.StartTime = d.StartTime
	}
	if d.Status != nil {
		m.Status = d.Status
	}
	if d.Position != nil {
		m.Position = d.Position
	}
	if d.MarketIDs != nil {
		m.MarketIDs = d.MarketIDs
	}
	if d.EventInfoIDs != nil {
		m.EventInfoIDs = d.EventInfoIDs
	}
}

func (m *Match) Clone() Entity {
	c := *m
	c.Name = clonePtr(m.Name)
	c.SportID = clonePtr(m.SportID)
	c.TournamentID = clonePtr(m.TournamentID)
	c.HomeParticipant = clonePtr(m.HomeParticipant)
	c.AwayParticipant = clonePtr(m.AwayParticipant)
	c.StartTime = clonePtr(m.StartTime)
	c.Status = clonePtr(m.Status)
	c.Position = clonePtr(m.Position)
	c.MarketIDs = cloneSlice(m.MarketIDs)
	c.EventInfoIDs = cloneSlice(m.EventInfoIDs)
	return &c
}

// -----------------------------------------------------------------------------
// Betting entities
// -----------------------------------------------------------------------------

// Market represents a bet market offered on a match (e.g., "Match Winner").
type Market struct {
	ID         string   `json:"id"`
	Name       *string  `json:"name,omitempty"`
	MatchID    *string  `json:"match_id,omitempty"`
	Status     *string  `json:"status,omitempty"` // open, suspended, closed
	Position   *int     `json:"position,omitempty"`
	OutcomeIDs []string `json:"outcome_ids,omitempty"`
}

func (m *Market) Key() Key { return Key{Kind: KindMarket, ID: m.ID} }

func (m *Market) MergeFrom(delta Entity) {
	d, ok := delta.(*Market)
	if !ok {
		return
	}
	if d.Name != nil {
		m.Name = d.Name
	}
	if d.MatchID != nil {
		m.MatchID = d.MatchID
	}
	if d.Status != nil {
		m.Status = d.Status
	}
	if d.Position != nil {
		m.Position = d.Position
	}
	if d.OutcomeIDs != nil {
		m.OutcomeIDs = d.OutcomeIDs
	}
}

func (m *Market) Clone() Entity {
	c := *m
	c.Name = clonePtr(m.Name)
	c.MatchID = clonePtr(m.MatchID)
	c.Status = clonePtr(m.Status)
	c.Position = clonePtr(m.Position)
	c.OutcomeIDs = cloneSlice(m.OutcomeIDs)
	return &c
}

// Outcome represents a selectable result within a market (e.g., "Home win").
type Outcome struct {
	ID              string   `json:"id"`
	Name            *string  `json:"name,omitempty"`
	MarketID        *string  `json:"market_id,omitempty"`
	Status          *string  `json:"status,omitempty"`
	Position        *int     `json:"position,omitempty"`
	BettingOfferIDs []string `json:"betting_offer_ids,omitempty"`
}

func (o *Outcome) Key() Key { return Key{Kind: KindOutcome, ID: o.ID} }

func (o *Outcome) MergeFrom(delta Entity) {
	d, ok := delta.(*Outcome)
	if !ok {
		return
	}
	if d.Name != nil {
		o.Name = d.Name
	}
	if d.MarketID != nil {
		o.MarketID = d.MarketID
	}
	if d.Status != nil {
		o.Status = d.Status
	}
	if d.Position != nil {
		o.Position = d.Position
	}
	if d.BettingOfferIDs != nil {
		o.BettingOfferIDs = d.BettingOfferIDs
	}
}

func (o *Outcome) Clone() Entity {
	c := *o
	c.Name = clonePtr(o.Name)
	c.MarketID = clonePtr(o.MarketID)
	c.Status = clonePtr(o.Status)
	c.Position = clonePtr(o.Position)
	c.BettingOfferIDs = cloneSlice(o.BettingOfferIDs)
	return &c
}

// BettingOffer carries the priced side of an outcome. Odd values are decimals,
// never floats.
type BettingOffer struct {
	ID            string           `json:"id"`
	OutcomeID     *string          `json:"outcome_id,omitempty"`
	Odds          *decimal.Decimal `json:"odds,omitempty"`
	IsAvailable   *bool            `json:"is_available,omitempty"`
	LastChangedAt *time.Time       `json:"last_changed_at,omitempty"`
}

func (b *BettingOffer) Key() Key { return Key{Kind: KindBettingOffer, ID: b.ID} }

func (b *BettingOffer) MergeFrom(delta Entity) {
	d, ok := delta.(*BettingOffer)
	if !ok {
		return
	}
	if d.OutcomeID != nil {
		b.OutcomeID = d.OutcomeID
	}
	if d.Odds != nil {
		b.Odds = d.Odds
	}
	if d.IsAvailable != nil {
		b.IsAvailable = d.IsAvailable
	}
	if d.LastChangedAt != nil {
		b.LastChangedAt = d.LastChangedAt
	}
}

func (b *BettingOffer) Clone() Entity {
	c := *b
	c.OutcomeID = clonePtr(b.OutcomeID)
	c.Odds = clonePtr(b.Odds)
	c.IsAvailable = clonePtr(b.IsAvailable)
	c.LastChangedAt = clonePtr(b.LastChangedAt)
	return &c
}

// EventInfo carries live auxiliary data attached to a match, like the current
// score or the match clock.
type EventInfo struct {
	ID       string  `json:"id"`
	MatchID  *string `json:"match_id,omitempty"`
	Type     *string `json:"type,omitempty"` // score, match_time, server, period
	Value    *string `json:"value,omitempty"`
	Position *int    `json:"position,omitempty"`
}

func (e *EventInfo) Key() Key { return Key{Kind: KindEventInfo, ID: e.ID} }

func (e *EventInfo) MergeFrom(delta Entity) {
	d, ok := delta.(*EventInfo)
	if !ok {
		return
	}
	if d.MatchID != nil {
		e.MatchID = d.MatchID
	}
	if d.Type != nil {
		e.Type = d.Type
	}
	if d.Value != nil {
		e.Value = d.Value
	}
	if d.Position != nil {
		e.Position = d.Position
	}
}

func (e *EventInfo) Clone() Entity {
	c := *e
	c.MatchID = clonePtr(e.MatchID)
	c.Type = clonePtr(e.Type)
	c.Value = clonePtr(e.Value)
	c.Position = clonePtr(e.Position)
	return &c
}
