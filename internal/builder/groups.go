package builder

import (
	"sort"
	"time"

	"github.com/rubenroques/goma-sportsbook-ios-sub028/internal/model"
)

// categoryRank carries the sort inputs for one group while grouping.
type categoryRank struct {
	position int
	name     string
}

// EventsGroups rebuilds the collaborator-facing collection: every live match
// in the store, grouped by the category of its tournament and
// deterministically ordered. Matches whose tournament or category has not
// resolved yet land in an unnamed group at the end.
func EventsGroups(src Source) []model.EventsGroup {
	byCategory := make(map[string][]model.MatchDetail)
	ranks := make(map[string]categoryRank)

	for _, ent := range src.All(model.KindMatch) {
		m := ent.(*model.Match)
		detail, ok := MatchDetail(src, m.ID)
		if !ok {
			continue
		}

		catID := detail.Tournament.CategoryID
		byCategory[catID] = append(byCategory[catID], detail)

		rank := categoryRank{position: unranked, name: detail.Tournament.CategoryName}
		if m.TournamentID != nil {
			if t, ok := src.Get(model.KindTournament, *m.TournamentID); ok {
				tour := t.(*model.Tournament)
				rank.position = intOf(tour.CategoryPosition, unranked)
			}
		}
		ranks[catID] = rank
	}

	groups := make([]model.EventsGroup, 0, len(byCategory))
	for catID, matches := range byCategory {
		sortMatches(matches)
		groups = append(groups, model.EventsGroup{
			CategoryID:   catID,
			CategoryName: ranks[catID].name,
			Matches:      matches,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		ri, rj := ranks[groups[i].CategoryID], ranks[groups[j].CategoryID]
		if ri.position != rj.position {
			return ri.position < rj.position
		}
		if ri.name != rj.name {
			return ri.name < rj.name
		}
		return groups[i].CategoryID < groups[j].CategoryID
	})
	return groups
}

func sortMatches(matches []model.MatchDetail) {
	sort.SliceStable(matches, func(i, j int) bool {
		ti, tj := matches[i].StartTime, matches[j].StartTime
		if !ti.Equal(tj) {
			return before(ti, tj)
		}
		return matches[i].ID < matches[j].ID
	})
}

// before treats the zero time as "after everything" so unscheduled matches
// sink to the bottom of their group.
func before(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	if b.IsZero() {
		return true
	}
	return a.Before(b)
}
