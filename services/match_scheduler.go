package services

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Dosada05/tournament-ops/brackets"
	"github.com/Dosada05/tournament-ops/models"
)

// IngestStatus classifies what ingestion did with one result record.
type IngestStatus string

const (
	IngestApplied   IngestStatus = "applied"
	IngestDuplicate IngestStatus = "duplicate"
	IngestSkipped   IngestStatus = "skipped"
)

var (
	errMalformedResult   = errors.New("malformed result record")
	errUnknownMatch      = errors.New("match id not found in group stage or knockout bracket")
	errWrongParticipants = errors.New("winner and loser are not the participants of the match")
)

// SkippedResult is a result record that ingestion could not apply.
type SkippedResult struct {
	Record models.ResultRecord `json:"record"`
	Reason string              `json:"reason"`
}

// IngestReport summarises one ingestion pass.
type IngestReport struct {
	Applied    int             `json:"applied"`
	Duplicates int             `json:"duplicates"`
	Skipped    []SkippedResult `json:"skipped,omitempty"`
}

func (r *IngestReport) add(rec models.ResultRecord, status IngestStatus, reason error) {
	switch status {
	case IngestApplied:
		r.Applied++
	case IngestDuplicate:
		r.Duplicates++
	default:
		r.Skipped = append(r.Skipped, SkippedResult{Record: rec, Reason: reason.Error()})
	}
}

func (r *IngestReport) merge(other IngestReport) {
	r.Applied += other.Applied
	r.Duplicates += other.Duplicates
	r.Skipped = append(r.Skipped, other.Skipped...)
}

// MatchScheduler owns the registry, the group-stage queue and the knockout bracket of one
// tournament, plus the match id counter shared by both stages. It is not safe for
// concurrent use; TournamentService serializes access when it is served.
type MatchScheduler struct {
	format    models.Format
	registry  *PlayerRegistry
	queue     *brackets.MatchQueue
	bracket   *brackets.KnockoutBracket
	generator brackets.GroupMatchGenerator

	lastMatchID      int
	lastGroupMatchID int
	processed        map[int]struct{}
	history          []models.MatchResult
	withdrawn        []models.Withdrawal
	logger           *slog.Logger
}

func NewMatchScheduler(format models.Format, logger *slog.Logger) *MatchScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	format = format.Normalized()
	return &MatchScheduler{
		format:    format,
		registry:  NewPlayerRegistry(logger),
		queue:     brackets.NewMatchQueue(),
		bracket:   brackets.NewKnockoutBracket(logger),
		generator: brackets.NewRoundRobinGenerator(format),
		processed: make(map[int]struct{}),
		logger:    logger,
	}
}

func (s *MatchScheduler) Format() models.Format {
	return s.format
}

func (s *MatchScheduler) nextMatchID() int {
	s.lastMatchID++
	return s.lastMatchID
}

// LoadPlayers adds player records in order. Records with a non-positive id, an empty name,
// an unknown status, or an id that is already registered are logged and skipped.
// Returns the number of players added.
func (s *MatchScheduler) LoadPlayers(records []models.PlayerRecord) int {
	loaded := 0
	for _, rec := range records {
		switch {
		case rec.ID <= 0 || strings.TrimSpace(rec.Name) == "":
			s.logger.Warn("player record skipped: missing id or name", slog.Int("player_id", rec.ID))
			continue
		case !rec.Status.Valid():
			s.logger.Warn("player record skipped: unknown status", slog.Int("player_id", rec.ID), slog.String("status", string(rec.Status)))
			continue
		case s.registry.Find(rec.ID) != nil:
			s.logger.Warn("player record skipped: duplicate id", slog.Int("player_id", rec.ID))
			continue
		}
		if err := s.registry.Add(rec.ToPlayer()); err != nil {
			s.logger.Warn("player record skipped", slog.Int("player_id", rec.ID), slog.Any("error", err))
			continue
		}
		loaded++
	}
	playersRegistered.Set(float64(s.registry.Count()))
	s.logger.Info("players loaded", slog.Int("loaded", loaded), slog.Int("records", len(records)))
	return loaded
}

// RegisterPlayer adds a new player with the next free id and a seed derived from regType.
func (s *MatchScheduler) RegisterPlayer(name string, regType models.RegistrationType, now time.Time) (*models.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrPlayerNameRequired
	}
	if strings.ContainsAny(name, ",\r\n") {
		return nil, ErrPlayerNameInvalid
	}

	p := &models.Player{
		ID:           s.registry.MaxID() + 1,
		Name:         name,
		RegisteredAt: now.Truncate(time.Second),
		Status:       models.StatusRegistered,
		Priority:     regType.Priority(),
	}
	if err := s.registry.Add(p); err != nil {
		return nil, err
	}
	playersRegistered.Set(float64(s.registry.Count()))
	s.logger.Info("player registered", slog.Int("player_id", p.ID), slog.String("name", p.Name), slog.Int("priority", p.Priority))
	return p, nil
}

// CheckIn confirms that a registered player is present. It must happen within window of
// the registration time; the player then becomes Playing.
func (s *MatchScheduler) CheckIn(id int, now time.Time, window time.Duration) (models.Player, error) {
	p := s.registry.Find(id)
	if p == nil {
		return models.Player{}, fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}
	switch p.Status {
	case models.StatusRegistered:
	case models.StatusPlaying:
		return *p, fmt.Errorf("%w: %d", ErrAlreadyCheckedIn, id)
	default:
		return *p, fmt.Errorf("%w: player %d is %s", ErrCheckInNotAllowed, id, p.Status)
	}
	if p.RegisteredAt.IsZero() {
		return *p, fmt.Errorf("%w: player %d has no registration time", ErrCheckInClosed, id)
	}

	elapsed := now.Sub(p.RegisteredAt)
	if elapsed >= window {
		s.logger.Warn("check-in rejected", slog.Int("player_id", id), slog.Duration("elapsed", elapsed), slog.Duration("window", window))
		return *p, fmt.Errorf("%w: %s after registration, limit %s", ErrCheckInClosed, elapsed.Truncate(time.Minute), window)
	}
	if elapsed > window/3 {
		s.logger.Warn("late check-in", slog.Int("player_id", id), slog.String("name", p.Name), slog.Duration("elapsed", elapsed))
	}
	if err := s.registry.SetStatus(id, models.StatusPlaying); err != nil {
		return *p, err
	}
	s.logger.Info("player checked in", slog.Int("player_id", id))
	return *p, nil
}

// Withdraw removes a player who has no applied results and keeps their id on the
// withdrawn list for a replacement. Queued matches of the player are left for the caller
// to regenerate.
func (s *MatchScheduler) Withdraw(id int, now time.Time) (models.Withdrawal, error) {
	if s.registry.Find(id) == nil {
		return models.Withdrawal{}, fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}
	for _, r := range s.history {
		if r.Involves(id) {
			return models.Withdrawal{}, fmt.Errorf("%w: %d", ErrPlayerHasResults, id)
		}
	}

	p, err := s.registry.Remove(id)
	if err != nil {
		return models.Withdrawal{}, err
	}
	w := models.Withdrawal{
		ID:           p.ID,
		Name:         p.Name,
		RegisteredAt: p.RegisteredAt,
		Priority:     p.Priority,
		WithdrawnAt:  now.Truncate(time.Second),
	}
	s.withdrawn = append(s.withdrawn, w)
	playersRegistered.Set(float64(s.registry.Count()))
	s.logger.Info("player withdrawn", slog.Int("player_id", id), slog.String("name", p.Name))
	return w, nil
}

// Replace registers a new player under the id of a withdrawn one.
func (s *MatchScheduler) Replace(id int, name string, regType models.RegistrationType, now time.Time) (*models.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrPlayerNameRequired
	}
	if strings.ContainsAny(name, ",\r\n") {
		return nil, ErrPlayerNameInvalid
	}
	slot := -1
	for i, w := range s.withdrawn {
		if w.ID == id {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, fmt.Errorf("%w: %d", ErrWithdrawalNotFound, id)
	}
	if s.registry.Find(id) != nil {
		return nil, fmt.Errorf("%w: %d", ErrPlayerIDTaken, id)
	}

	p := &models.Player{
		ID:           id,
		Name:         name,
		RegisteredAt: now.Truncate(time.Second),
		Status:       models.StatusRegistered,
		Priority:     regType.Priority(),
	}
	if err := s.registry.Add(p); err != nil {
		return nil, err
	}
	s.withdrawn = append(s.withdrawn[:slot:slot], s.withdrawn[slot+1:]...)
	playersRegistered.Set(float64(s.registry.Count()))
	s.logger.Info("withdrawn player replaced", slog.Int("player_id", id), slog.String("name", p.Name))
	return p, nil
}

// LoadWithdrawals restores the withdrawn list. Ids that belong to a registered player are skipped.
func (s *MatchScheduler) LoadWithdrawals(records []models.Withdrawal) {
	s.withdrawn = s.withdrawn[:0]
	for _, w := range records {
		if w.ID <= 0 || s.registry.Find(w.ID) != nil {
			s.logger.Warn("withdrawal record skipped", slog.Int("player_id", w.ID))
			continue
		}
		s.withdrawn = append(s.withdrawn, w)
	}
}

func (s *MatchScheduler) Withdrawals() []models.Withdrawal {
	return append([]models.Withdrawal(nil), s.withdrawn...)
}

// AssignGroups spreads players over groupCount groups in serpentine order of seed
// priority, so every group gets a comparable mix of seeds.
func (s *MatchScheduler) AssignGroups(groupCount int) error {
	if groupCount < 1 {
		return ErrInvalidGroupCount
	}
	seeded := s.registry.Players()
	sort.SliceStable(seeded, func(i, j int) bool {
		return seeded[i].Priority < seeded[j].Priority
	})
	for i, p := range seeded {
		pos := i % groupCount
		if (i/groupCount)%2 == 1 {
			pos = groupCount - 1 - pos
		}
		p.GroupID = pos + 1
	}
	s.logger.Info("players assigned to groups", slog.Int("groups", groupCount), slog.Int("players", len(seeded)))
	return nil
}

// GenerateGroupMatches replaces the group-stage queue with a full round-robin within each
// group. Players without a group join the default group. With fewer than two players the
// queue is left unchanged. Returns the number of matches created.
func (s *MatchScheduler) GenerateGroupMatches() int {
	players := s.registry.Players()
	if len(players) < 2 {
		s.logger.Warn("group matches not generated", slog.Int("players", len(players)), slog.Any("error", ErrNotEnoughPlayers))
		return 0
	}

	s.queue.Clear()
	for _, p := range players {
		if p.GroupID == 0 {
			p.GroupID = models.DefaultGroupID
		}
	}

	matches := s.generator.GenerateMatches(brackets.GenerateMatchesParams{
		Players:     players,
		NextMatchID: s.nextMatchID,
	})
	for _, m := range matches {
		s.queue.Enqueue(m)
	}
	s.lastGroupMatchID = s.lastMatchID
	matchesGenerated.WithLabelValues(string(models.StageGroup)).Add(float64(len(matches)))
	s.logger.Info("group matches generated",
		slog.String("generator", s.generator.GetName()),
		slog.Int("players", len(players)),
		slog.Int("matches", len(matches)))
	return len(matches)
}

// GenerateKnockoutBracket rebuilds the bracket from the top qualifierCount players in
// ranking order. Any prior bracket is discarded together with its applied results, so the
// ranking is taken from the group stage and every build numbers its matches from the same
// base above the group ids. Qualifiers are set to Playing. Returns the qualifier ids in
// seeding order.
func (s *MatchScheduler) GenerateKnockoutBracket(qualifierCount int) ([]int, error) {
	previous := s.bracket.Qualifiers()
	s.discardKnockoutResults()

	ranked := s.registry.Ranked()
	if qualifierCount > len(ranked) {
		s.logger.Warn("fewer players than requested qualifiers",
			slog.Int("requested", qualifierCount), slog.Int("players", len(ranked)))
		qualifierCount = len(ranked)
	}
	if qualifierCount < 0 {
		qualifierCount = 0
	}

	qualifiers := make([]int, 0, qualifierCount)
	for _, p := range ranked[:qualifierCount] {
		qualifiers = append(qualifiers, p.ID)
	}

	s.bracket.Reset(brackets.KnockoutIDBase(s.lastGroupMatchID))
	if err := s.bracket.Build(qualifiers); err != nil {
		s.registry.ResetForKnockout(nil, previous)
		return nil, err
	}
	if last := s.bracket.LastMatchID(); last > s.lastMatchID {
		s.lastMatchID = last
	}
	s.registry.ResetForKnockout(qualifiers, previous)
	matchesGenerated.WithLabelValues(string(models.StageKnockout)).Add(float64(len(qualifiers) - 1))
	return qualifiers, nil
}

// discardKnockoutResults rolls back the stats of every applied knockout result and forgets
// their match ids.
func (s *MatchScheduler) discardKnockoutResults() {
	kept := make([]models.MatchResult, 0, len(s.history))
	discarded := 0
	for _, r := range s.history {
		if r.Stage != models.StageKnockout {
			kept = append(kept, r)
			continue
		}
		if err := s.registry.RevertResult(r.WinnerID, r.LoserID); err != nil {
			s.logger.Warn("knockout result not reverted", slog.Int("match_id", r.MatchID), slog.Any("error", err))
		}
		delete(s.processed, r.MatchID)
		discarded++
	}
	s.history = kept
	if discarded > 0 {
		s.logger.Info("knockout results discarded", slog.Int("results", discarded))
	}
}

// KnockoutResultCount is the number of applied results that belong to the current bracket.
func (s *MatchScheduler) KnockoutResultCount() int {
	n := 0
	for _, r := range s.history {
		if r.Stage == models.StageKnockout {
			n++
		}
	}
	return n
}

// IngestResult applies one external result. Records are applied at most once per match id;
// anything that cannot be applied is reported as skipped and left for a later pass.
func (s *MatchScheduler) IngestResult(rec models.ResultRecord) (IngestStatus, error) {
	status, reason := s.ingest(rec)
	resultsIngested.WithLabelValues(string(status)).Inc()
	switch status {
	case IngestApplied:
		s.logger.Info("result applied",
			slog.Int("match_id", rec.MatchID), slog.Int("winner_id", rec.WinnerID), slog.Int("loser_id", rec.LoserID))
	case IngestSkipped:
		s.logger.Warn("result skipped", slog.Int("match_id", rec.MatchID), slog.Any("error", reason))
	}
	return status, reason
}

func (s *MatchScheduler) ingest(rec models.ResultRecord) (IngestStatus, error) {
	if _, done := s.processed[rec.MatchID]; done {
		return IngestDuplicate, nil
	}
	if rec.MatchID <= 0 || rec.WinnerID <= 0 || rec.LoserID <= 0 || rec.WinnerID == rec.LoserID {
		return IngestSkipped, fmt.Errorf("%w: %d,%d,%d", errMalformedResult, rec.MatchID, rec.WinnerID, rec.LoserID)
	}
	for _, id := range []int{rec.WinnerID, rec.LoserID} {
		if s.registry.Find(id) == nil {
			return IngestSkipped, fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
		}
	}

	stage := models.StageGroup
	if m := s.queue.FindByID(rec.MatchID); m != nil {
		if m.Played {
			s.processed[rec.MatchID] = struct{}{}
			return IngestDuplicate, nil
		}
		if !m.HasParticipant(rec.WinnerID) || m.Opponent(rec.WinnerID) != rec.LoserID {
			return IngestSkipped, fmt.Errorf("%w: match %d is %d vs %d", errWrongParticipants, m.ID, m.Player1ID, m.Player2ID)
		}
		m.WinnerID = rec.WinnerID
		m.Played = true
	} else if _, ok := s.bracket.FindByID(rec.MatchID); ok {
		stage = models.StageKnockout
		if err := s.bracket.ValidateResult(rec.MatchID, rec.WinnerID, rec.LoserID); err != nil {
			return IngestSkipped, err
		}
		if err := s.bracket.UpdateWinner(rec.MatchID, rec.WinnerID); err != nil {
			return IngestSkipped, err
		}
	} else {
		return IngestSkipped, fmt.Errorf("%w: %d", errUnknownMatch, rec.MatchID)
	}

	s.applyResult(rec, stage)
	return IngestApplied, nil
}

func (s *MatchScheduler) applyResult(rec models.ResultRecord, stage models.MatchStage) {
	_ = s.registry.IncrementWins(rec.WinnerID)
	_ = s.registry.IncrementLosses(rec.LoserID)
	winner := s.registry.Find(rec.WinnerID)
	loser := s.registry.Find(rec.LoserID)

	switch winner.Status {
	case models.StatusRegistered, models.StatusPlaying:
		_ = s.registry.SetStatus(winner.ID, models.StatusAdvanced)
	case models.StatusFinalist:
		_ = s.registry.SetStatus(winner.ID, models.StatusWinner)
	}
	switch loser.Status {
	case models.StatusRegistered, models.StatusPlaying, models.StatusAdvanced, models.StatusFinalist:
		_ = s.registry.SetStatus(loser.ID, models.StatusEliminated)
	}

	s.processed[rec.MatchID] = struct{}{}
	s.history = append(s.history, models.MatchResult{
		MatchID:  rec.MatchID,
		Stage:    stage,
		WinnerID: rec.WinnerID,
		LoserID:  rec.LoserID,
	})
}

// IngestResults applies records in order and reports what happened to each of them.
func (s *MatchScheduler) IngestResults(records []models.ResultRecord) IngestReport {
	var report IngestReport
	for _, rec := range records {
		status, reason := s.IngestResult(rec)
		report.add(rec, status, reason)
	}
	if report.Applied > 0 || len(report.Skipped) > 0 {
		s.logger.Info("results ingested",
			slog.Int("applied", report.Applied),
			slog.Int("duplicates", report.Duplicates),
			slog.Int("skipped", len(report.Skipped)))
	}
	return report
}

// SimulateGroupStage plays every unplayed group match through outcome, using the normal
// ingestion path. Matches the strategy leaves undecided stay in the schedule.
func (s *MatchScheduler) SimulateGroupStage(outcome brackets.OutcomeFunc) IngestReport {
	var report IngestReport
	if outcome == nil {
		return report
	}
	for _, m := range s.queue.Matches() {
		if m.Played {
			continue
		}
		winner := outcome(m.Player1ID, m.Player2ID)
		if winner == models.NoWinner {
			continue
		}
		rec := models.ResultRecord{MatchID: m.ID, WinnerID: winner, LoserID: m.Opponent(winner)}
		status, reason := s.IngestResult(rec)
		report.add(rec, status, reason)
	}
	return report
}

// ResolveKnockout runs bracket resolution with outcome and returns the champion,
// or models.NoWinner while the final is open.
func (s *MatchScheduler) ResolveKnockout(outcome brackets.OutcomeFunc) int {
	return s.bracket.Resolve(outcome, s.registry)
}

// SeedLookup exposes player priorities for seed-based outcome strategies.
func (s *MatchScheduler) SeedLookup() brackets.SeedLookup {
	return func(playerID int) (int, bool) {
		p := s.registry.Find(playerID)
		if p == nil {
			return 0, false
		}
		return p.Priority, true
	}
}

// StandingsSnapshot lists every player in ranking order.
func (s *MatchScheduler) StandingsSnapshot() []models.Standing {
	ranked := s.registry.Ranked()
	standings := make([]models.Standing, 0, len(ranked))
	for i, p := range ranked {
		standings = append(standings, models.StandingFromPlayer(i+1, p))
	}
	return standings
}

// ScheduleSnapshot lists unplayed group matches in queue order.
func (s *MatchScheduler) ScheduleSnapshot() []models.ScheduledMatch {
	schedule := make([]models.ScheduledMatch, 0, s.queue.Len())
	for _, m := range s.queue.Matches() {
		if m.Played {
			continue
		}
		schedule = append(schedule, models.ScheduledMatch{
			MatchID:   m.ID,
			Player1ID: m.Player1ID,
			Player2ID: m.Player2ID,
			Stage:     models.StageGroup,
		})
	}
	return schedule
}

// KnockoutScheduleSnapshot lists knockout matches whose players are known but which have no winner yet.
func (s *MatchScheduler) KnockoutScheduleSnapshot() []models.ScheduledMatch {
	pending := s.bracket.Pending()
	schedule := make([]models.ScheduledMatch, 0, len(pending))
	for _, n := range pending {
		schedule = append(schedule, models.ScheduledMatch{
			MatchID:   n.MatchID,
			Player1ID: n.Player1ID,
			Player2ID: n.Player2ID,
			Stage:     models.StageKnockout,
		})
	}
	return schedule
}

// PlayerHistory returns the applied results involving playerID in ingestion order.
func (s *MatchScheduler) PlayerHistory(playerID int) ([]models.MatchResult, error) {
	if s.registry.Find(playerID) == nil {
		return nil, fmt.Errorf("%w: %d", ErrPlayerNotFound, playerID)
	}
	history := make([]models.MatchResult, 0)
	for _, r := range s.history {
		if r.Involves(playerID) {
			history = append(history, r)
		}
	}
	return history, nil
}

// ResetIngestion forgets which match ids were processed and the result log. Player stats
// are not rolled back.
func (s *MatchScheduler) ResetIngestion() {
	s.processed = make(map[int]struct{})
	s.history = nil
}

func (s *MatchScheduler) ProcessedCount() int {
	return len(s.processed)
}

// Player returns a copy of one player.
func (s *MatchScheduler) Player(id int) (models.Player, error) {
	p := s.registry.Find(id)
	if p == nil {
		return models.Player{}, fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}
	return *p, nil
}

// Players returns copies of every player in registration order.
func (s *MatchScheduler) Players() []models.Player {
	players := s.registry.Players()
	out := make([]models.Player, 0, len(players))
	for _, p := range players {
		out = append(out, *p)
	}
	return out
}

// GroupMatches returns copies of every queued group match, played or not, in queue order.
func (s *MatchScheduler) GroupMatches() []models.Match {
	matches := s.queue.Matches()
	out := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		out = append(out, *m)
	}
	return out
}

func (s *MatchScheduler) BracketLevels() []models.BracketLevel {
	return s.bracket.Levels()
}

func (s *MatchScheduler) Champion() int {
	return s.bracket.Champion()
}

func (s *MatchScheduler) HasBracket() bool {
	return !s.bracket.IsEmpty()
}
