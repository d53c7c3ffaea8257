package models

import "time"

// Standing is one line of the standings snapshot:
// id,name,status,wins,losses,groupId
type Standing struct {
	Rank     int          `json:"rank" db:"rank"`
	PlayerID int          `json:"player_id" db:"player_id"`
	Name     string       `json:"name" db:"name"`
	Status   PlayerStatus `json:"status" db:"status"`
	Wins     int          `json:"wins" db:"wins"`
	Losses   int          `json:"losses" db:"losses"`
	GroupID  int          `json:"group_id" db:"group_id"`
}

func StandingFromPlayer(rank int, p *Player) Standing {
	return Standing{
		Rank:     rank,
		PlayerID: p.ID,
		Name:     p.Name,
		Status:   p.Status,
		Wins:     p.Wins,
		Losses:   p.Losses,
		GroupID:  p.GroupID,
	}
}

// StandingsSnapshot is a persisted copy of the standings at a point in time.
type StandingsSnapshot struct {
	ID         int        `json:"id" db:"id"`
	Tournament string     `json:"tournament" db:"tournament"`
	TakenAt    time.Time  `json:"taken_at" db:"taken_at"`
	Standings  []Standing `json:"standings" db:"-"`
}
