package models

// TournamentOverview is the read model pushed to websocket subscribers and served over HTTP.
type TournamentOverview struct {
	Name      string           `json:"name"`
	Format    Format           `json:"format"`
	Standings []Standing       `json:"standings"`
	Schedule  []ScheduledMatch `json:"schedule"`
	Bracket   []BracketLevel   `json:"bracket,omitempty"`
	Champion  *int             `json:"champion,omitempty"`
}
