package builder

import "github.com/rubenroques/goma-sportsbook-ios-sub028/internal/model"

// Narrow rebuilds for the per-entity update streams. UI cells that highlight
// odds changes consume these instead of re-subscribing to the whole feed.

// MarketView resolves a single market subtree.
func MarketView(src Source, marketID string) (model.MarketView, bool) {
	ent, ok := src.Get(model.KindMarket, marketID)
	if !ok {
		return model.MarketView{}, false
	}
	mk := ent.(*model.Market)
	return model.MarketView{
		ID:       mk.ID,
		Name:     strOf(mk.Name),
		Status:   strOf(mk.Status),
		Outcomes: buildOutcomes(src, mk),
	}, true
}

// OutcomeView resolves a single outcome with its offers.
func OutcomeView(src Source, outcomeID string) (model.OutcomeView, bool) {
	ent, ok := src.Get(model.KindOutcome, outcomeID)
	if !ok {
		return model.OutcomeView{}, false
	}
	o := ent.(*model.Outcome)
	return model.OutcomeView{
		ID:     o.ID,
		Name:   strOf(o.Name),
		Status: strOf(o.Status),
		Offers: buildOffers(src, o),
	}, true
}

// EventInfoViews resolves the live-data items of one match.
func EventInfoViews(src Source, matchID string) ([]model.EventInfoView, bool) {
	ent, ok := src.Get(model.KindMatch, matchID)
	if !ok {
		return nil, false
	}
	return buildEventInfos(src, ent.(*model.Match)), true
}
