package brackets

import (
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-ops/models"
)

// OutcomeFunc picks the winner of a knockout match whose two players are known.
// Returning models.NoWinner leaves the match pending.
type OutcomeFunc func(player1ID, player2ID int) int

// PickFirst always advances the first input.
func PickFirst(player1ID, _ int) int {
	return player1ID
}

// AwaitReported never decides; only externally reported winners progress.
func AwaitReported(_, _ int) int {
	return models.NoWinner
}

// SeedLookup returns a player's seeding priority.
type SeedLookup func(playerID int) (priority int, ok bool)

// PickHigherSeed advances the player with the numerically lower priority.
// Ties and unknown players fall back to the first input.
func PickHigherSeed(lookup SeedLookup) OutcomeFunc {
	return func(player1ID, player2ID int) int {
		s1, ok1 := lookup(player1ID)
		s2, ok2 := lookup(player2ID)
		if ok1 && ok2 && s2 < s1 {
			return player2ID
		}
		return player1ID
	}
}

// OutcomeByName resolves a strategy name: "first", "seed" or "await".
func OutcomeByName(name string, lookup SeedLookup) (OutcomeFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "first":
		return PickFirst, nil
	case "seed":
		if lookup == nil {
			return nil, fmt.Errorf("outcome strategy %q needs a seed lookup", name)
		}
		return PickHigherSeed(lookup), nil
	case "await":
		return AwaitReported, nil
	default:
		return nil, fmt.Errorf("unsupported outcome strategy '%s'", name)
	}
}
