package models

// MatchStage identifies which phase of the tournament a match belongs to.
type MatchStage string

const (
	StageGroup    MatchStage = "GroupStage"
	StageKnockout MatchStage = "Knockout"
)

// NoWinner is the unset sentinel for winner and player ids.
const NoWinner = 0

// Match is a group-stage pairing. It is resolved exactly once.
type Match struct {
	ID        int  `json:"id"`
	Player1ID int  `json:"player1_id"`
	Player2ID int  `json:"player2_id"`
	WinnerID  int  `json:"winner_id,omitempty"`
	Played    bool `json:"played"`
}

func (m *Match) HasParticipant(playerID int) bool {
	return m.Player1ID == playerID || m.Player2ID == playerID
}

// Opponent returns the other participant, or NoWinner if playerID is not in the match.
func (m *Match) Opponent(playerID int) int {
	switch playerID {
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	}
	return NoWinner
}

// ScheduledMatch is one line of the schedule snapshot.
type ScheduledMatch struct {
	MatchID   int        `json:"match_id"`
	Player1ID int        `json:"player1_id"`
	Player2ID int        `json:"player2_id"`
	Stage     MatchStage `json:"stage"`
}

// ResultRecord is one line of the external results feed: matchId,winnerId,loserId
type ResultRecord struct {
	MatchID  int `json:"match_id"`
	WinnerID int `json:"winner_id"`
	LoserID  int `json:"loser_id"`
}

// MatchResult is an applied result kept for player history.
type MatchResult struct {
	MatchID  int        `json:"match_id"`
	Stage    MatchStage `json:"stage"`
	WinnerID int        `json:"winner_id"`
	LoserID  int        `json:"loser_id"`
}

func (r MatchResult) Involves(playerID int) bool {
	return r.WinnerID == playerID || r.LoserID == playerID
}
