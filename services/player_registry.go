package services

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/Dosada05/tournament-ops/models"
)

// PlayerRegistry owns every player of a tournament run in registration order.
type PlayerRegistry struct {
	players []*models.Player
	logger  *slog.Logger
}

func NewPlayerRegistry(logger *slog.Logger) *PlayerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlayerRegistry{logger: logger}
}

func (r *PlayerRegistry) Add(p *models.Player) error {
	if p == nil {
		return ErrNilPlayer
	}
	r.players = append(r.players, p)
	return nil
}

// Remove takes a player out of the registry. It is only used before the player has a result.
func (r *PlayerRegistry) Remove(id int) (*models.Player, error) {
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i:i], r.players[i+1:]...)
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
}

func (r *PlayerRegistry) Find(id int) *models.Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// SetStatus moves a player to a new status. Unknown players and illegal transitions
// are logged and leave the registry unchanged.
func (r *PlayerRegistry) SetStatus(id int, status models.PlayerStatus) error {
	p := r.Find(id)
	if p == nil {
		r.logger.Warn("status change for unknown player", slog.Int("player_id", id), slog.String("status", string(status)))
		return fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}
	if !p.Status.CanTransitionTo(status) {
		r.logger.Warn("status change rejected",
			slog.Int("player_id", id),
			slog.String("from", string(p.Status)),
			slog.String("to", string(status)))
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidStatusTransition, p.Status, status)
	}
	if p.Status != status {
		r.logger.Debug("player status changed", slog.Int("player_id", id), slog.String("from", string(p.Status)), slog.String("to", string(status)))
		p.Status = status
	}
	return nil
}

func (r *PlayerRegistry) IncrementWins(id int) error {
	p := r.Find(id)
	if p == nil {
		return fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}
	p.Wins++
	return nil
}

func (r *PlayerRegistry) IncrementLosses(id int) error {
	p := r.Find(id)
	if p == nil {
		return fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}
	p.Losses++
	return nil
}

// RevertResult undoes the stats of one applied result. Counters never drop below zero.
func (r *PlayerRegistry) RevertResult(winnerID, loserID int) error {
	winner, loser := r.Find(winnerID), r.Find(loserID)
	if winner == nil || loser == nil {
		return fmt.Errorf("%w: %d or %d", ErrPlayerNotFound, winnerID, loserID)
	}
	if winner.Wins > 0 {
		winner.Wins--
	}
	if loser.Losses > 0 {
		loser.Losses--
	}
	return nil
}

// ResetForKnockout starts a new knockout phase and is the one place that bypasses the
// transition table. Qualifiers become Playing. Players of the discarded bracket who did not
// qualify again, and anyone else still Finalist or Winner, become Eliminated.
func (r *PlayerRegistry) ResetForKnockout(qualifiers, previous []int) {
	next := make(map[int]bool, len(qualifiers))
	for _, id := range qualifiers {
		next[id] = true
	}
	wasIn := make(map[int]bool, len(previous))
	for _, id := range previous {
		wasIn[id] = true
	}

	for _, p := range r.players {
		status := p.Status
		switch {
		case next[p.ID]:
			status = models.StatusPlaying
		case wasIn[p.ID], p.Status == models.StatusFinalist, p.Status == models.StatusWinner:
			status = models.StatusEliminated
		}
		if status != p.Status {
			r.logger.Debug("player status reset for knockout",
				slog.Int("player_id", p.ID), slog.String("from", string(p.Status)), slog.String("to", string(status)))
			p.Status = status
		}
	}
}

// rankedBefore orders by wins descending, losses ascending, then seed priority ascending.
func rankedBefore(a, b *models.Player) bool {
	if a.Wins != b.Wins {
		return a.Wins > b.Wins
	}
	if a.Losses != b.Losses {
		return a.Losses < b.Losses
	}
	return a.Priority < b.Priority
}

// RankingSort reorders the registry itself. Equal players keep their relative order.
func (r *PlayerRegistry) RankingSort() {
	sort.SliceStable(r.players, func(i, j int) bool {
		return rankedBefore(r.players[i], r.players[j])
	})
}

// Ranked returns the players in ranking order without reordering the registry.
func (r *PlayerRegistry) Ranked() []*models.Player {
	ranked := r.Players()
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankedBefore(ranked[i], ranked[j])
	})
	return ranked
}

func (r *PlayerRegistry) Count() int {
	return len(r.players)
}

// Players returns the players in registry order. The slice is a copy.
func (r *PlayerRegistry) Players() []*models.Player {
	out := make([]*models.Player, len(r.players))
	copy(out, r.players)
	return out
}

func (r *PlayerRegistry) MaxID() int {
	maxID := 0
	for _, p := range r.players {
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	return maxID
}
