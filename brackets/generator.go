package brackets

import "github.com/Dosada05/tournament-ops/models"

type GenerateMatchesParams struct {
	Players []*models.Player
	// NextMatchID allocates a fresh, never reused match id.
	NextMatchID func() int
}

// GroupMatchGenerator produces the group-stage matches for a set of grouped players.
type GroupMatchGenerator interface {
	GenerateMatches(params GenerateMatchesParams) []*models.Match

	GetName() string
}
