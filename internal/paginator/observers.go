package paginator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/builder"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/model"
	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/transport"
)

// Narrow per-entity streams. UI cells that need odds-change highlighting
// observe a single market or outcome instead of re-consuming the whole sport
// feed. Streams are derived from the paginator's own merge events, so they
// see exactly what the grouped feed sees.

const observerBuffer = 16

// ObserveEventInfosForEvent streams the live-data items of one match on every
// change. Fails with NotFound when the match is not currently tracked.
func (p *Paginator) ObserveEventInfosForEvent(eventID string) (<-chan []model.EventInfoView, func(), error) {
	if !p.st.Contains(model.KindMatch, eventID) {
		return nil, nil, &transport.ServiceError{Kind: transport.ErrNotFound, Message: "event " + eventID + " is not tracked"}
	}
	ch, cancel := p.observers.addEventInfo(eventID)
	return ch, cancel, nil
}

// SubscribeToMarketUpdates streams one market's rebuilt subtree on every
// change to the market, its outcomes, or their offers.
func (p *Paginator) SubscribeToMarketUpdates(marketID string) (<-chan model.MarketView, func(), error) {
	if !p.st.Contains(model.KindMarket, marketID) {
		return nil, nil, &transport.ServiceError{Kind: transport.ErrNotFound, Message: "market " + marketID + " is not tracked"}
	}
	ch, cancel := p.observers.addMarket(marketID)
	return ch, cancel, nil
}

// SubscribeToOutcomeUpdates streams one outcome's rebuilt view on every
// change to the outcome or its offers.
func (p *Paginator) SubscribeToOutcomeUpdates(outcomeID string) (<-chan model.OutcomeView, func(), error) {
	if !p.st.Contains(model.KindOutcome, outcomeID) {
		return nil, nil, &transport.ServiceError{Kind: transport.ErrNotFound, Message: "outcome " + outcomeID + " is not tracked"}
	}
	ch, cancel := p.observers.addOutcome(outcomeID)
	return ch, cancel, nil
}

type observerRegistry struct {
	mu         sync.Mutex
	eventInfos map[string]map[uuid.UUID]chan []model.EventInfoView
	markets    map[string]map[uuid.UUID]chan model.MarketView
	outcomes   map[string]map[uuid.UUID]chan model.OutcomeView
}

func newObserverRegistry() *observerRegistry {
	return &observerRegistry{
		eventInfos: make(map[string]map[uuid.UUID]chan []model.EventInfoView),
		markets:    make(map[string]map[uuid.UUID]chan model.MarketView),
		outcomes:   make(map[string]map[uuid.UUID]chan model.OutcomeView),
	}
}

func (r *observerRegistry) addEventInfo(matchID string) (<-chan []model.EventInfoView, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	ch := make(chan []model.EventInfoView, observerBuffer)
	if r.eventInfos[matchID] == nil {
		r.eventInfos[matchID] = make(map[uuid.UUID]chan []model.EventInfoView)
	}
	r.eventInfos[matchID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if set, ok := r.eventInfos[matchID]; ok {
				if ch, ok := set[id]; ok {
					delete(set, id)
					close(ch)
				}
			}
		})
	}
}

func (r *observerRegistry) addMarket(marketID string) (<-chan model.MarketView, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	ch := make(chan model.MarketView, observerBuffer)
	if r.markets[marketID] == nil {
		r.markets[marketID] = make(map[uuid.UUID]chan model.MarketView)
	}
	r.markets[marketID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if set, ok := r.markets[marketID]; ok {
				if ch, ok := set[id]; ok {
					delete(set, id)
					close(ch)
				}
			}
		})
	}
}

func (r *observerRegistry) addOutcome(outcomeID string) (<-chan model.OutcomeView, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	ch := make(chan model.OutcomeView, observerBuffer)
	if r.outcomes[outcomeID] == nil {
		r.outcomes[outcomeID] = make(map[uuid.UUID]chan model.OutcomeView)
	}
	r.outcomes[outcomeID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if set, ok := r.outcomes[outcomeID]; ok {
				if ch, ok := set[id]; ok {
					delete(set, id)
					close(ch)
				}
			}
		})
	}
}

// notify fans one merge batch out to the narrow observers whose entity, or a
// descendant of it, was touched.
func (r *observerRegistry) notify(src builder.Source, touched []model.Key) {
	matchIDs := make(map[string]struct{})
	marketIDs := make(map[string]struct{})
	outcomeIDs := make(map[string]struct{})

	for _, key := range touched {
		switch key.Kind {
		case model.KindMatch:
			matchIDs[key.ID] = struct{}{}

		case model.KindEventInfo:
			if ent, ok := src.Get(model.KindEventInfo, key.ID); ok {
				if ei := ent.(*model.EventInfo); ei.MatchID != nil {
					matchIDs[*ei.MatchID] = struct{}{}
				}
			}

		case model.KindMarket:
			marketIDs[key.ID] = struct{}{}

		case model.KindOutcome:
			outcomeIDs[key.ID] = struct{}{}
			if ent, ok := src.Get(model.KindOutcome, key.ID); ok {
				if o := ent.(*model.Outcome); o.MarketID != nil {
					marketIDs[*o.MarketID] = struct{}{}
				}
			}

		case model.KindBettingOffer:
			if ent, ok := src.Get(model.KindBettingOffer, key.ID); ok {
				if bo := ent.(*model.BettingOffer); bo.OutcomeID != nil {
					outcomeIDs[*bo.OutcomeID] = struct{}{}
					if oent, ok := src.Get(model.KindOutcome, *bo.OutcomeID); ok {
						if o := oent.(*model.Outcome); o.MarketID != nil {
							marketIDs[*o.MarketID] = struct{}{}
						}
					}
				}
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for matchID := range matchIDs {
		set := r.eventInfos[matchID]
		if len(set) == 0 {
			continue
		}
		if infos, ok := builder.EventInfoViews(src, matchID); ok {
			for _, ch := range set {
				select {
				case ch <- infos:
				default:
				}
			}
		}
	}

	for marketID := range marketIDs {
		set := r.markets[marketID]
		if len(set) == 0 {
			continue
		}
		if view, ok := builder.MarketView(src, marketID); ok {
			for _, ch := range set {
				select {
				case ch <- view:
				default:
				}
			}
		}
	}

	for outcomeID := range outcomeIDs {
		set := r.outcomes[outcomeID]
		if len(set) == 0 {
			continue
		}
		if view, ok := builder.OutcomeView(src, outcomeID); ok {
			for _, ch := range set {
				select {
				case ch <- view:
				default:
				}
			}
		}
	}
}

// closeAll ends every narrow stream, used on paginator teardown.
func (r *observerRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for matchID, set := range r.eventInfos {
		for id, ch := range set {
			delete(set, id)
			close(ch)
		}
		delete(r.eventInfos, matchID)
	}
	for marketID, set := range r.markets {
		for id, ch := range set {
			delete(set, id)
			close(ch)
		}
		delete(r.markets, marketID)
	}
	for outcomeID, set := range r.outcomes {
		for id, ch := range set {
			delete(set, id)
			close(ch)
		}
		delete(r.outcomes, outcomeID)
	}
}
