// Package builder reconstructs hierarchical domain objects from the
// normalized entity store. Every function is pure: same store contents in,
// structurally equal views out, which is what makes downstream
// change-detection by comparison correct.
//
// Missing relations are absent, never errors: a match whose markets have not
// arrived yet still builds, with an empty market list.
package builder

import (
	"sort"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/model"
)

// Source is the read side of the entity store.
type Source interface {
	Get(kind model.Kind, id string) (model.Entity, bool)
	All(kind model.Kind) []model.Entity
}

func strOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func intOf(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

// unranked sorts after every explicit position.
const unranked = 1 << 30

// MatchDetail resolves one match and its full relation tree. ok is false only
// when the match itself is unknown or tombstoned.
func MatchDetail(src Source, matchID string) (model.MatchDetail, bool) {
	ent, ok := src.Get(model.KindMatch, matchID)
	if !ok {
		return model.MatchDetail{}, false
	}
	m := ent.(*model.Match)

	detail := model.MatchDetail{
		ID:              m.ID,
		Name:            strOf(m.Name),
		HomeParticipant: strOf(m.HomeParticipant),
		AwayParticipant: strOf(m.AwayParticipant),
		Status:          strOf(m.Status),
	}
	if m.StartTime != nil {
		detail.StartTime = *m.StartTime
	}

	if m.TournamentID != nil {
		if t, ok := src.Get(model.KindTournament, *m.TournamentID); ok {
			tour := t.(*model.Tournament)
			detail.Tournament = model.TournamentView{
				ID:           tour.ID,
				Name:         strOf(tour.Name),
				CategoryID:   strOf(tour.CategoryID),
				CategoryName: strOf(tour.CategoryName),
			}
		}
	}

	detail.Markets = buildMarkets(src, m)
	detail.EventInfos = buildEventInfos(src, m)
	return detail, true
}

// marketsFor returns the match's market entities, either through the relation
// list on the match or, when the backend never sent one, by reverse lookup.
func marketsFor(src Source, m *model.Match) []*model.Market {
	var markets []*model.Market
	if m.MarketIDs != nil {
		for _, id := range m.MarketIDs {
			if ent, ok := src.Get(model.KindMarket, id); ok {
				markets = append(markets, ent.(*model.Market))
			}
		}
		return markets
	}
	for _, ent := range src.All(model.KindMarket) {
		mk := ent.(*model.Market)
		if mk.MatchID != nil && *mk.MatchID == m.ID {
			markets = append(markets, mk)
		}
	}
	return markets
}

func buildMarkets(src Source, m *model.Match) []model.MarketView {
	markets := marketsFor(src, m)
	sort.SliceStable(markets, func(i, j int) bool {
		pi, pj := intOf(markets[i].Position, unranked), intOf(markets[j].Position, unranked)
		if pi != pj {
			return pi < pj
		}
		return markets[i].ID < markets[j].ID
	})

	views := make([]model.MarketView, 0, len(markets))
	for _, mk := range markets {
		views = append(views, model.MarketView{
			ID:       mk.ID,
			Name:     strOf(mk.Name),
			Status:   strOf(mk.Status),
			Outcomes: buildOutcomes(src, mk),
		})
	}
	return views
}

func outcomesFor(src Source, mk *model.Market) []*model.Outcome {
	var outcomes []*model.Outcome
	if mk.OutcomeIDs != nil {
		for _, id := range mk.OutcomeIDs {
			if ent, ok := src.Get(model.KindOutcome, id); ok {
				outcomes = append(outcomes, ent.(*model.Outcome))
			}
		}
		return outcomes
	}
	for _, ent := range src.All(model.KindOutcome) {
		o := ent.(*model.Outcome)
		if o.MarketID != nil && *o.MarketID == mk.ID {
			outcomes = append(outcomes, o)
		}
	}
	return outcomes
}

func buildOutcomes(src Source, mk *model.Market) []model.OutcomeView {
	outcomes := outcomesFor(src, mk)
	sort.SliceStable(outcomes, func(i, j int) bool {
		pi, pj := intOf(outcomes[i].Position, unranked), intOf(outcomes[j].Position, unranked)
		if pi != pj {
			return pi < pj
		}
		return outcomes[i].ID < outcomes[j].ID
	})

	views := make([]model.OutcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		views = append(views, model.OutcomeView{
			ID:     o.ID,
			Name:   strOf(o.Name),
			Status: strOf(o.Status),
			Offers: buildOffers(src, o),
		})
	}
	return views
}

func buildOffers(src Source, o *model.Outcome) []model.BettingOfferView {
	var offers []*model.BettingOffer
	if o.BettingOfferIDs != nil {
		for _, id := range o.BettingOfferIDs {
			if ent, ok := src.Get(model.KindBettingOffer, id); ok {
				offers = append(offers, ent.(*model.BettingOffer))
			}
		}
	} else {
		for _, ent := range src.All(model.KindBettingOffer) {
			bo := ent.(*model.BettingOffer)
			if bo.OutcomeID != nil && *bo.OutcomeID == o.ID {
				offers = append(offers, bo)
			}
		}
	}
	sort.SliceStable(offers, func(i, j int) bool { return offers[i].ID < offers[j].ID })

	views := make([]model.BettingOfferView, 0, len(offers))
	for _, bo := range offers {
		v := model.BettingOfferView{ID: bo.ID}
		if bo.Odds != nil {
			v.Odds = *bo.Odds
		}
		if bo.IsAvailable != nil {
			v.IsAvailable = *bo.IsAvailable
		}
		views = append(views, v)
	}
	return views
}

func buildEventInfos(src Source, m *model.Match) []model.EventInfoView {
	var infos []*model.EventInfo
	if m.EventInfoIDs != nil {
		for _, id := range m.EventInfoIDs {
			if ent, ok := src.Get(model.KindEventInfo, id); ok {
				infos = append(infos, ent.(*model.EventInfo))
			}
		}
	} else {
		for _, ent := range src.All(model.KindEventInfo) {
			ei := ent.(*model.EventInfo)
			if ei.MatchID != nil && *ei.MatchID == m.ID {
				infos = append(infos, ei)
			}
		}
	}
	sort.SliceStable(infos, func(i, j int) bool {
		pi, pj := intOf(infos[i].Position, unranked), intOf(infos[j].Position, unranked)
		if pi != pj {
			return pi < pj
		}
		return infos[i].ID < infos[j].ID
	})

	views := make([]model.EventInfoView, 0, len(infos))
	for _, ei := range infos {
		views = append(views, model.EventInfoView{
			ID:    ei.ID,
			Type:  strOf(ei.Type),
			Value: strOf(ei.Value),
		})
	}
	return views
}
