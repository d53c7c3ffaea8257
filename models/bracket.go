package models

// LeafMatchID marks a bracket node that holds a qualified player rather than a match.
const LeafMatchID = 0

// BracketNode is a node of the knockout tree. Left and Right are arena indexes, -1 when absent.
type BracketNode struct {
	MatchID   int `json:"match_id"`
	Player1ID int `json:"player1_id"`
	Player2ID int `json:"player2_id"`
	WinnerID  int `json:"winner_id,omitempty"`
	Left      int `json:"-"`
	Right     int `json:"-"`
}

func (n BracketNode) IsLeaf() bool {
	return n.MatchID == LeafMatchID
}

func (n BracketNode) IsResolved() bool {
	return n.WinnerID != NoWinner
}

// Loser returns the input that did not win, or NoWinner while the node is pending.
func (n BracketNode) Loser() int {
	switch n.WinnerID {
	case NoWinner:
		return NoWinner
	case n.Player1ID:
		return n.Player2ID
	case n.Player2ID:
		return n.Player1ID
	}
	return NoWinner
}

// BracketLevel is one breadth-first level of the bracket, root first.
type BracketLevel struct {
	Round          int           `json:"round"`
	InitialPlayers bool          `json:"initial_players"`
	Nodes          []BracketNode `json:"nodes"`
}
