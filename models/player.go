package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PlayerStatus is the lifecycle state of a player within one tournament run.
type PlayerStatus string

const (
	StatusRegistered PlayerStatus = "Registered"
	StatusPlaying    PlayerStatus = "Playing"
	StatusAdvanced   PlayerStatus = "Advanced"
	StatusEliminated PlayerStatus = "Eliminated"
	StatusFinalist   PlayerStatus = "Finalist"
	StatusWinner     PlayerStatus = "Winner"
)

// RegistrationTimeLayout is the timestamp format used in player records.
const RegistrationTimeLayout = "2006-01-02 15:04:05"

// DefaultGroupID is assigned to players that enter the group stage without a group.
const DefaultGroupID = 1

var (
	ErrUnknownPlayerStatus     = errors.New("unknown player status")
	ErrInvalidStatusTransition = errors.New("invalid player status transition")
)

var allStatuses = []PlayerStatus{
	StatusRegistered, StatusPlaying, StatusAdvanced, StatusEliminated, StatusFinalist, StatusWinner,
}

// ParsePlayerStatus maps a record field to a status. Matching ignores case and surrounding spaces.
func ParsePlayerStatus(s string) (PlayerStatus, error) {
	s = strings.TrimSpace(s)
	for _, st := range allStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlayerStatus, s)
}

func (s PlayerStatus) Valid() bool {
	for _, st := range allStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether a player may move from s to next.
// Nothing returns to Registered and Winner is terminal.
func (s PlayerStatus) CanTransitionTo(next PlayerStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	allowedTransitions := map[PlayerStatus][]PlayerStatus{
		StatusRegistered: {StatusPlaying, StatusAdvanced, StatusEliminated, StatusFinalist, StatusWinner},
		StatusPlaying:    {StatusAdvanced, StatusEliminated, StatusFinalist, StatusWinner},
		StatusAdvanced:   {StatusPlaying, StatusEliminated, StatusFinalist, StatusWinner},
		StatusEliminated: {StatusPlaying, StatusAdvanced, StatusFinalist, StatusWinner},
		StatusFinalist:   {StatusEliminated, StatusWinner},
		StatusWinner:     {},
	}
	for _, allowed := range allowedTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Player is a registered tournament entrant. Players are never removed during a run;
// elimination is a status.
type Player struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	RegisteredAt time.Time    `json:"registered_at"`
	Status       PlayerStatus `json:"status"`
	Priority     int          `json:"priority"` // lower is a higher seed
	GroupID      int          `json:"group_id"`
	Wins         int          `json:"wins"`
	Losses       int          `json:"losses"`
}

// PlayerRecord is one line of the players file:
// id,name,registrationTimestamp,status,priority
type PlayerRecord struct {
	ID           int
	Name         string
	RegisteredAt time.Time
	Status       PlayerStatus
	Priority     int
}

func (r PlayerRecord) ToPlayer() *Player {
	return &Player{
		ID:           r.ID,
		Name:         r.Name,
		RegisteredAt: r.RegisteredAt,
		Status:       r.Status,
		Priority:     r.Priority,
	}
}

func (p *Player) ToRecord() PlayerRecord {
	return PlayerRecord{
		ID:           p.ID,
		Name:         p.Name,
		RegisteredAt: p.RegisteredAt,
		Status:       p.Status,
		Priority:     p.Priority,
	}
}

// RegistrationType drives the default seeding priority of a newly registered player.
type RegistrationType string

const (
	RegistrationWildcard  RegistrationType = "wildcard"
	RegistrationEarlyBird RegistrationType = "earlybird"
	RegistrationNormal    RegistrationType = "normal"
)

func (t RegistrationType) Priority() int {
	switch RegistrationType(strings.ToLower(string(t))) {
	case RegistrationWildcard:
		return 1
	case RegistrationEarlyBird:
		return 2
	default:
		return 3
	}
}

// Withdrawal is one line of the withdrawals file:
// id,name,registrationTimestamp,priority,withdrawalTimestamp
// A withdrawn id stays reserved until a replacement player takes it over.
type Withdrawal struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registered_at"`
	Priority     int       `json:"priority"`
	WithdrawnAt  time.Time `json:"withdrawn_at"`
}
