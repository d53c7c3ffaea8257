// tournament-ops/brackets/single_elimination.go
package brackets

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/Dosada05/tournament-ops/models"
)

const (
	// KnockoutMatchIDBase is the first id of the reserved knockout range.
	KnockoutMatchIDBase = 1001
	knockoutIDBlock     = 1000
	noNode              = -1
)

// KnockoutIDBase returns the first knockout id that cannot collide with group ids
// up to lastGroupMatchID.
func KnockoutIDBase(lastGroupMatchID int) int {
	base := KnockoutMatchIDBase
	for base <= lastGroupMatchID {
		base += knockoutIDBlock
	}
	return base
}

// StatusUpdater receives the status changes produced by bracket resolution.
type StatusUpdater interface {
	SetStatus(playerID int, status models.PlayerStatus) error
}

// KnockoutBracket is a single-elimination tree stored as an arena of nodes.
// Leaves hold qualified players, internal nodes are matches, the root is the final.
type KnockoutBracket struct {
	nodes          []models.BracketNode
	applied        []bool // statuses already propagated for the node
	root           int
	nextMatchID    int
	qualifierCount int
	logger         *slog.Logger
}

func NewKnockoutBracket(logger *slog.Logger) *KnockoutBracket {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnockoutBracket{
		root:        noNode,
		nextMatchID: KnockoutMatchIDBase,
		logger:      logger,
	}
}

// Reset drops the whole tree and restarts match ids at firstMatchID.
func (b *KnockoutBracket) Reset(firstMatchID int) {
	b.nodes = nil
	b.applied = nil
	b.root = noNode
	b.qualifierCount = 0
	b.nextMatchID = firstMatchID
}

// Build creates one leaf per qualifier and pairs adjacent nodes first-in first-out
// until a single root remains, so leaf order equals qualifier order.
// With fewer than two qualifiers the bracket stays empty.
func (b *KnockoutBracket) Build(qualifierIDs []int) error {
	b.nodes = nil
	b.applied = nil
	b.root = noNode
	b.qualifierCount = 0

	n := len(qualifierIDs)
	if n < 2 {
		b.logger.Warn("knockout bracket not built", slog.Int("qualifiers", n), slog.Any("error", ErrNotEnoughQualifiers))
		return ErrNotEnoughQualifiers
	}
	if n&(n-1) != 0 {
		b.logger.Warn("qualifier count is not a power of two, bracket will be uneven", slog.Int("qualifiers", n))
	}

	b.nodes = make([]models.BracketNode, 0, 2*n-1)
	queue := make([]int, 0, n)
	for _, playerID := range qualifierIDs {
		queue = append(queue, b.addNode(models.BracketNode{
			MatchID:   models.LeafMatchID,
			Player1ID: playerID,
			WinnerID:  playerID,
			Left:      noNode,
			Right:     noNode,
		}))
	}

	for len(queue) > 1 {
		left, right := queue[0], queue[1]
		queue = queue[2:]
		match := b.addNode(models.BracketNode{
			MatchID:   b.nextMatchID,
			Player1ID: b.nodes[left].WinnerID,
			Player2ID: b.nodes[right].WinnerID,
			Left:      left,
			Right:     right,
		})
		b.nextMatchID++
		queue = append(queue, match)
	}

	b.root = queue[0]
	b.qualifierCount = n
	b.applied = make([]bool, len(b.nodes))
	b.logger.Info("knockout bracket built",
		slog.Int("qualifiers", n),
		slog.Int("matches", n-1),
		slog.Int("final_match_id", b.nodes[b.root].MatchID))
	return nil
}

func (b *KnockoutBracket) addNode(node models.BracketNode) int {
	b.nodes = append(b.nodes, node)
	return len(b.nodes) - 1
}

func (b *KnockoutBracket) IsEmpty() bool {
	return b.root == noNode
}

func (b *KnockoutBracket) QualifierCount() int {
	return b.qualifierCount
}

// LastMatchID is the highest match id handed out so far, or one below the range start.
func (b *KnockoutBracket) LastMatchID() int {
	return b.nextMatchID - 1
}

func (b *KnockoutBracket) Root() (models.BracketNode, bool) {
	if b.IsEmpty() {
		return models.BracketNode{}, false
	}
	return b.nodes[b.root], true
}

// Champion is the winner of the final, or models.NoWinner.
func (b *KnockoutBracket) Champion() int {
	if b.IsEmpty() {
		return models.NoWinner
	}
	return b.nodes[b.root].WinnerID
}

// Qualifiers returns the leaf players from left to right.
func (b *KnockoutBracket) Qualifiers() []int {
	ids := make([]int, 0, b.qualifierCount)
	for _, node := range b.nodes {
		if node.IsLeaf() {
			ids = append(ids, node.Player1ID)
		}
	}
	return ids
}

// FindByID searches depth-first: the node, then its left subtree, then its right subtree.
// Leaves are never returned.
func (b *KnockoutBracket) FindByID(matchID int) (models.BracketNode, bool) {
	idx := b.find(b.root, matchID)
	if idx == noNode {
		return models.BracketNode{}, false
	}
	return b.nodes[idx], true
}

func (b *KnockoutBracket) find(idx, matchID int) int {
	if idx == noNode || matchID == models.LeafMatchID {
		return noNode
	}
	node := b.nodes[idx]
	if node.MatchID == matchID {
		return idx
	}
	if found := b.find(node.Left, matchID); found != noNode {
		return found
	}
	return b.find(node.Right, matchID)
}

// ValidateResult checks a reported result against the bracket without changing it.
// loserID may be models.NoWinner to skip the loser check.
func (b *KnockoutBracket) ValidateResult(matchID, winnerID, loserID int) error {
	idx := b.find(b.root, matchID)
	if idx == noNode {
		return fmt.Errorf("%w: %d", ErrBracketMatchNotFound, matchID)
	}
	return b.checkResult(idx, winnerID, loserID)
}

func (b *KnockoutBracket) checkResult(idx, winnerID, loserID int) error {
	node := b.nodes[idx]
	left, right := b.nodes[node.Left].WinnerID, b.nodes[node.Right].WinnerID
	if left == models.NoWinner || right == models.NoWinner {
		return fmt.Errorf("%w: match %d", ErrBracketMatchNotReady, node.MatchID)
	}
	if winnerID != left && winnerID != right {
		return fmt.Errorf("%w: player %d in match %d (P%d vs P%d)", ErrBracketInvalidWinner, winnerID, node.MatchID, left, right)
	}
	if loserID != models.NoWinner && (loserID == winnerID || (loserID != left && loserID != right)) {
		return fmt.Errorf("%w: loser %d in match %d (P%d vs P%d)", ErrBracketInvalidWinner, loserID, node.MatchID, left, right)
	}
	if node.WinnerID != models.NoWinner && node.WinnerID != winnerID {
		return fmt.Errorf("%w: match %d won by %d", ErrBracketAlreadyDecided, node.MatchID, node.WinnerID)
	}
	return nil
}

// UpdateWinner records the winner of a knockout match. The match must exist, both of its
// input matches must already have winners, and the winner must be one of them.
// A rejected update is logged and leaves the bracket unchanged.
func (b *KnockoutBracket) UpdateWinner(matchID, winnerID int) error {
	idx := b.find(b.root, matchID)
	if idx == noNode {
		b.logger.Warn("knockout match not found", slog.Int("match_id", matchID))
		return fmt.Errorf("%w: %d", ErrBracketMatchNotFound, matchID)
	}
	if err := b.checkResult(idx, winnerID, models.NoWinner); err != nil {
		b.logger.Warn("knockout result rejected", slog.Int("match_id", matchID), slog.Int("winner_id", winnerID), slog.Any("error", err))
		return err
	}

	node := &b.nodes[idx]
	node.Player1ID = b.nodes[node.Left].WinnerID
	node.Player2ID = b.nodes[node.Right].WinnerID
	node.WinnerID = winnerID
	b.logger.Info("knockout match winner updated", slog.Int("match_id", matchID), slog.Int("winner_id", winnerID))
	return nil
}

// Resolve walks the tree bottom-up. A match is only considered once both of its input
// matches have winners; its inputs are then taken from those winners. Undecided matches
// are offered to outcome. Returns the champion, or models.NoWinner while the final is open.
//
// Status changes reach statuses once per match: the loser is Eliminated and the winner
// becomes Winner at the final, Advanced elsewhere. When both finalists are known but the
// final is undecided, both become Finalist.
func (b *KnockoutBracket) Resolve(outcome OutcomeFunc, statuses StatusUpdater) int {
	if b.IsEmpty() {
		b.logger.Info("no knockout bracket to resolve")
		return models.NoWinner
	}
	return b.resolveNode(b.root, outcome, statuses)
}

func (b *KnockoutBracket) resolveNode(idx int, outcome OutcomeFunc, statuses StatusUpdater) int {
	if b.nodes[idx].IsLeaf() {
		return b.nodes[idx].WinnerID
	}

	p1 := b.resolveNode(b.nodes[idx].Left, outcome, statuses)
	p2 := b.resolveNode(b.nodes[idx].Right, outcome, statuses)

	node := &b.nodes[idx]
	node.Player1ID = p1
	node.Player2ID = p2
	if p1 == models.NoWinner || p2 == models.NoWinner {
		return node.WinnerID
	}

	if node.WinnerID == models.NoWinner && outcome != nil {
		switch winner := outcome(p1, p2); {
		case winner == models.NoWinner:
		case winner != p1 && winner != p2:
			b.logger.Warn("outcome strategy picked a non-participant, match left pending",
				slog.Int("match_id", node.MatchID), slog.Int("picked", winner))
		default:
			node.WinnerID = winner
			b.logger.Info("knockout match resolved",
				slog.Int("match_id", node.MatchID),
				slog.Int("player1_id", p1),
				slog.Int("player2_id", p2),
				slog.Int("winner_id", winner))
		}
	}

	if node.WinnerID == models.NoWinner {
		if idx == b.root && statuses != nil {
			_ = statuses.SetStatus(p1, models.StatusFinalist)
			_ = statuses.SetStatus(p2, models.StatusFinalist)
		}
		return models.NoWinner
	}

	if !b.applied[idx] && statuses != nil {
		winnerStatus := models.StatusAdvanced
		if idx == b.root {
			winnerStatus = models.StatusWinner
		}
		_ = statuses.SetStatus(node.Loser(), models.StatusEliminated)
		_ = statuses.SetStatus(node.WinnerID, winnerStatus)
		b.applied[idx] = true
	}
	return node.WinnerID
}

// Levels returns the bracket breadth-first, final first. Round numbers count down from
// ceil(log2(qualifiers))+1; the deepest level holds the initial players.
func (b *KnockoutBracket) Levels() []models.BracketLevel {
	if b.IsEmpty() {
		return nil
	}
	totalRounds := int(math.Ceil(math.Log2(float64(b.qualifierCount)))) + 1

	levels := make([]models.BracketLevel, 0, totalRounds)
	current := []int{b.root}
	for depth := 0; len(current) > 0; depth++ {
		level := models.BracketLevel{Round: totalRounds - depth, Nodes: make([]models.BracketNode, 0, len(current))}
		next := make([]int, 0, 2*len(current))
		for _, idx := range current {
			node := b.nodes[idx]
			level.Nodes = append(level.Nodes, node)
			if !node.IsLeaf() {
				next = append(next, node.Left, node.Right)
			}
		}
		levels = append(levels, level)
		current = next
	}
	levels[len(levels)-1].InitialPlayers = true
	return levels
}

// Pending lists matches that are ready to be played: both inputs known, no winner yet.
// Inputs are read from the child matches, ordered by match id.
func (b *KnockoutBracket) Pending() []models.BracketNode {
	pending := make([]models.BracketNode, 0)
	for _, node := range b.nodes {
		if node.IsLeaf() || node.IsResolved() {
			continue
		}
		p1, p2 := b.nodes[node.Left].WinnerID, b.nodes[node.Right].WinnerID
		if p1 == models.NoWinner || p2 == models.NoWinner {
			continue
		}
		node.Player1ID, node.Player2ID = p1, p2
		pending = append(pending, node)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].MatchID < pending[j].MatchID
	})
	return pending
}
