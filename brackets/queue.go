package brackets

import "github.com/Dosada05/tournament-ops/models"

// MatchQueue is a FIFO of group-stage matches with direct lookup by match id.
// Iteration always follows insertion order.
type MatchQueue struct {
	items []*models.Match
	head  int
	index map[int]int // match id -> absolute position in items
}

func NewMatchQueue() *MatchQueue {
	return &MatchQueue{index: make(map[int]int)}
}

func (q *MatchQueue) Enqueue(m *models.Match) {
	if m == nil {
		return
	}
	q.items = append(q.items, m)
	q.index[m.ID] = len(q.items) - 1
}

// Dequeue removes and returns the head, or nil when the queue is empty.
func (q *MatchQueue) Dequeue() *models.Match {
	if q.IsEmpty() {
		return nil
	}
	m := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if pos, ok := q.index[m.ID]; ok && pos == q.head-1 {
		delete(q.index, m.ID)
	}
	if q.head > len(q.items)/2 {
		q.compact()
	}
	return m
}

func (q *MatchQueue) FindByID(id int) *models.Match {
	pos, ok := q.index[id]
	if !ok || pos < q.head {
		return nil
	}
	return q.items[pos]
}

func (q *MatchQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *MatchQueue) Len() int {
	return len(q.items) - q.head
}

// Matches returns the queued matches in insertion order. The slice is a copy;
// the matches are shared with the queue.
func (q *MatchQueue) Matches() []*models.Match {
	out := make([]*models.Match, 0, q.Len())
	out = append(out, q.items[q.head:]...)
	return out
}

func (q *MatchQueue) Clear() {
	q.items = nil
	q.head = 0
	q.index = make(map[int]int)
}

func (q *MatchQueue) compact() {
	live := make([]*models.Match, 0, q.Len())
	live = append(live, q.items[q.head:]...)
	q.items = live
	q.head = 0
	q.index = make(map[int]int, len(live))
	for i, m := range live {
		q.index[m.ID] = i
	}
}
