package brackets

import "github.com/Dosada05/tournament-ops/models"

type RoundRobinGenerator struct {
	legs int
}

func NewRoundRobinGenerator(format models.Format) GroupMatchGenerator {
	return &RoundRobinGenerator{legs: format.Normalized().RoundRobinLegs}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateMatches pairs every two distinct players that share a group, once per leg.
// Pairs follow player order: for each player, every later player in the same group.
// With two legs, all first legs come before the second legs, which swap the sides.
func (g *RoundRobinGenerator) GenerateMatches(params GenerateMatchesParams) []*models.Match {
	players := make([]*models.Player, 0, len(params.Players))
	for _, p := range params.Players {
		if p != nil {
			players = append(players, p)
		}
	}

	type pairing struct{ p1, p2 int }
	pairings := make([]pairing, 0, len(players)*(len(players)-1)/2)
	for i := 0; i < len(players); i++ {
		for j := i + 1; j < len(players); j++ {
			if players[i].GroupID != players[j].GroupID {
				continue
			}
			pairings = append(pairings, pairing{p1: players[i].ID, p2: players[j].ID})
		}
	}

	matches := make([]*models.Match, 0, len(pairings)*g.legs)
	for _, pr := range pairings {
		matches = append(matches, &models.Match{ID: params.NextMatchID(), Player1ID: pr.p1, Player2ID: pr.p2})
	}
	if g.legs == 2 {
		for _, pr := range pairings {
			matches = append(matches, &models.Match{ID: params.NextMatchID(), Player1ID: pr.p2, Player2ID: pr.p1})
		}
	}
	return matches
}
