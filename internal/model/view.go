package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Hierarchical views
// -----------------------------------------------------------------------------
//
// Views are derived, never stored: the builder rebuilds them from the entity
// store on every change. They are plain values so consumers can compare them
// for change detection but cannot reach back into the store through them.

// BettingOfferView is a resolved offer inside an outcome.
type BettingOfferView struct {
	ID          string          `json:"id"`
	Odds        decimal.Decimal `json:"odds"`
	IsAvailable bool            `json:"is_available"`
}

// OutcomeView is a resolved outcome with its offers.
type OutcomeView struct {
	ID     string             `json:"id"`
	Name   string             `json:"name"`
	Status string             `json:"status"`
	Offers []BettingOfferView `json:"offers"`
}

// MarketView is a resolved market with its outcomes.
type MarketView struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Outcomes []OutcomeView `json:"outcomes"`
}

// EventInfoView is a resolved live-data item for a match.
type EventInfoView struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// TournamentView is the resolved competition a match belongs to.
type TournamentView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
}

// MatchDetail is the fully resolved hierarchical view of one match. Relations
// that have not arrived yet are absent (zero tournament, empty slices), never
// an error.
type MatchDetail struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	HomeParticipant string          `json:"home_participant"`
	AwayParticipant string          `json:"away_participant"`
	StartTime       time.Time       `json:"start_time"`
	Status          string          `json:"status"`
	Tournament      TournamentView  `json:"tournament"`
	Markets         []MarketView    `json:"markets"`
	EventInfos      []EventInfoView `json:"event_infos"`
}

// EventsGroup is the collaborator-facing collection unit: matches of one
// category, deterministically ordered.
type EventsGroup struct {
	CategoryID   string        `json:"category_id"`
	CategoryName string        `json:"category_name"`
	Matches      []MatchDetail `json:"matches"`
}
