package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/model"
)

func offerDelta(id, odds string) model.Delta {
	return model.DeltaFor(&model.BettingOffer{
		ID:   id,
		Odds: model.Ptr(decimal.RequireFromString(odds)),
	})
}

func TestMergeUpsertsAndReturnsTouched(t *testing.T) {
	s := New()

	touched := s.Merge([]model.Delta{
		model.DeltaFor(&model.Match{ID: "e1", Name: model.Ptr("A vs B")}),
		offerDelta("bo1", "2.10"),
	})

	assert.Len(t, touched, 2)
	assert.Equal(t, 1, s.Len(model.KindMatch))

	ent, ok := s.Get(model.KindBettingOffer, "bo1")
	require.True(t, ok)
	assert.True(t, ent.(*model.BettingOffer).Odds.Equal(decimal.RequireFromString("2.10")))
}

func TestMergeIsIdempotent(t *testing.T) {
	s := New()
	batch := []model.Delta{offerDelta("bo1", "2.10")}

	s.Merge(batch)
	s.Merge(batch)

	assert.Equal(t, 1, s.Len(model.KindBettingOffer))
	ent, _ := s.Get(model.KindBettingOffer, "bo1")
	assert.True(t, ent.(*model.BettingOffer).Odds.Equal(decimal.RequireFromString("2.10")))
}

func TestMergeDisjointFieldsCommutes(t *testing.T) {
	a := model.DeltaFor(&model.BettingOffer{ID: "bo1", Odds: model.Ptr(decimal.RequireFromString("1.95"))})
	b := model.DeltaFor(&model.BettingOffer{ID: "bo1", IsAvailable: model.Ptr(false)})

	s1 := New()
	s1.Merge([]model.Delta{a})
	s1.Merge([]model.Delta{b})

	s2 := New()
	s2.Merge([]model.Delta{b})
	s2.Merge([]model.Delta{a})

	e1, _ := s1.Get(model.KindBettingOffer, "bo1")
	e2, _ := s2.Get(model.KindBettingOffer, "bo1")
	o1 := e1.(*model.BettingOffer)
	o2 := e2.(*model.BettingOffer)

	assert.True(t, o1.Odds.Equal(*o2.Odds))
	assert.Equal(t, *o1.IsAvailable, *o2.IsAvailable)
}

func TestMergePartialKeepsOtherFields(t *testing.T) {
	s := New()
	s.Merge([]model.Delta{model.DeltaFor(&model.BettingOffer{
		ID:          "bo1",
		OutcomeID:   model.Ptr("o1"),
		Odds:        model.Ptr(decimal.RequireFromString("2.10")),
		IsAvailable: model.Ptr(true),
	})})

	s.Merge([]model.Delta{offerDelta("bo1", "2.35")})

	ent, _ := s.Get(model.KindBettingOffer, "bo1")
	offer := ent.(*model.BettingOffer)
	assert.True(t, offer.Odds.Equal(decimal.RequireFromString("2.35")))
	assert.Equal(t, "o1", *offer.OutcomeID)
	assert.True(t, *offer.IsAvailable)
}

func TestTombstoneHidesRecord(t *testing.T) {
	s := New()
	s.Merge([]model.Delta{offerDelta("bo1", "2.10")})

	touched := s.Merge([]model.Delta{model.Tombstone(model.KindBettingOffer, "bo1")})
	assert.Len(t, touched, 1)

	_, ok := s.Get(model.KindBettingOffer, "bo1")
	assert.False(t, ok)
	assert.True(t, s.Contains(model.KindBettingOffer, "bo1"), "tombstones remain tracked")
	assert.True(t, s.IsRemoved(model.KindBettingOffer, "bo1"))
	assert.Equal(t, 0, s.Len(model.KindBettingOffer))
}

func TestUpdateAfterTombstoneRevives(t *testing.T) {
	s := New()
	s.Merge([]model.Delta{offerDelta("bo1", "2.10")})
	s.Merge([]model.Delta{model.Tombstone(model.KindBettingOffer, "bo1")})

	s.Merge([]model.Delta{offerDelta("bo1", "3.00")})

	ent, ok := s.Get(model.KindBettingOffer, "bo1")
	require.True(t, ok)
	assert.True(t, ent.(*model.BettingOffer).Odds.Equal(decimal.RequireFromString("3.00")))
	assert.False(t, s.IsRemoved(model.KindBettingOffer, "bo1"))
}

func TestClearDropsEverything(t *testing.T) {
	s := New()
	s.Merge([]model.Delta{
		offerDelta("bo1", "2.10"),
		model.Tombstone(model.KindMarket, "m1"),
	})

	s.Clear()

	assert.Equal(t, 0, s.Len(model.KindBettingOffer))
	assert.False(t, s.Contains(model.KindMarket, "m1"))
}

func TestGetReturnsCopies(t *testing.T) {
	s := New()
	s.Merge([]model.Delta{model.DeltaFor(&model.Match{ID: "e1", Name: model.Ptr("A vs B")})})

	ent, _ := s.Get(model.KindMatch, "e1")
	*ent.(*model.Match).Name = "mutated"

	again, _ := s.Get(model.KindMatch, "e1")
	assert.Equal(t, "A vs B", *again.(*model.Match).Name)
}

func TestAllSkipsTombstones(t *testing.T) {
	s := New()
	s.Merge([]model.Delta{
		offerDelta("bo1", "2.10"),
		offerDelta("bo2", "1.50"),
		model.Tombstone(model.KindBettingOffer, "bo2"),
	})

	all := s.All(model.KindBettingOffer)
	require.Len(t, all, 1)
	assert.Equal(t, "bo1", all[0].Key().ID)
}
