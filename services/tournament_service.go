package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/tournament-ops/brackets"
	"github.com/Dosada05/tournament-ops/models"
	"github.com/Dosada05/tournament-ops/repositories"
	"github.com/Dosada05/tournament-ops/storage"
)

var (
	ErrGroupStageStarted = errors.New("group stage already has results; regenerating would renumber matches")
	ErrKnockoutStarted   = errors.New("knockout bracket already has reported results")
	// ErrPublishIncomplete means the operation took effect but a snapshot sink failed.
	ErrPublishIncomplete = errors.New("snapshot publication incomplete")
)

// TournamentFiles is the flat-file persistence the service replays from and writes to.
type TournamentFiles interface {
	LoadPlayers(ctx context.Context) ([]models.PlayerRecord, error)
	LoadResults(ctx context.Context) ([]models.ResultRecord, error)
	SavePlayers(ctx context.Context, records []models.PlayerRecord) error
	AppendPlayer(ctx context.Context, rec models.PlayerRecord) error
	AppendResult(ctx context.Context, rec models.ResultRecord) error
	LoadWithdrawals(ctx context.Context) ([]models.Withdrawal, error)
	AppendWithdrawal(ctx context.Context, w models.Withdrawal) error
	SaveWithdrawals(ctx context.Context, withdrawals []models.Withdrawal) error
	WriteStandings(ctx context.Context, standings []models.Standing) error
	WriteSchedule(ctx context.Context, schedule []models.ScheduledMatch) error
}

// Broadcaster pushes messages to live subscribers of a room.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{}) error
}

type TournamentConfig struct {
	Name            string
	Format          models.Format
	IncludeKnockout bool
	// OutcomeStrategy decides knockout matches on sync: "await", "first" or "seed".
	OutcomeStrategy string
	CheckInWindow   time.Duration
}

const DefaultCheckInWindow = 30 * time.Minute

// TournamentDeps lists the collaborators. Only Files is required.
type TournamentDeps struct {
	Files     TournamentFiles
	Snapshots repositories.StandingsSnapshotRepository
	Uploader  storage.FileUploader
	Hub       Broadcaster
	Logger    *slog.Logger
}

// TournamentService serializes every operation on one tournament and publishes the
// resulting snapshots to the configured sinks.
type TournamentService struct {
	mu        sync.Mutex
	cfg       TournamentConfig
	scheduler *MatchScheduler

	files     TournamentFiles
	snapshots repositories.StandingsSnapshotRepository
	uploader  storage.FileUploader
	hub       Broadcaster
	logger    *slog.Logger
	now       func() time.Time
}

func NewTournamentService(cfg TournamentConfig, deps TournamentDeps) *TournamentService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Format = cfg.Format.Normalized()
	if cfg.OutcomeStrategy == "" {
		cfg.OutcomeStrategy = "await"
	}
	if cfg.CheckInWindow <= 0 {
		cfg.CheckInWindow = DefaultCheckInWindow
	}
	logger = logger.With(slog.String("tournament", cfg.Name))
	return &TournamentService{
		cfg:       cfg,
		scheduler: NewMatchScheduler(cfg.Format, logger),
		files:     deps.Files,
		snapshots: deps.Snapshots,
		uploader:  deps.Uploader,
		hub:       deps.Hub,
		logger:    logger,
		now:       time.Now,
	}
}

// RoomID is the websocket room that receives this tournament's updates.
func (s *TournamentService) RoomID() string {
	return "tournament_" + s.cfg.Name
}

// Bootstrap rebuilds the tournament from the players file and the results feed. Group
// matches are regenerated in player-file order, so ids match the ones reported earlier.
// When the group stage is complete and the feed still holds unknown match ids, the
// knockout bracket is rebuilt and the feed is ingested once more.
func (s *TournamentService) Bootstrap(ctx context.Context) (IngestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.files.LoadPlayers(ctx)
	switch {
	case errors.Is(err, repositories.ErrPlayersFileNotFound):
		s.logger.Warn("starting without players", slog.Any("error", err))
	case err != nil:
		return IngestReport{}, fmt.Errorf("failed to load players: %w", err)
	}
	results, err := s.files.LoadResults(ctx)
	if err != nil {
		return IngestReport{}, fmt.Errorf("failed to load results: %w", err)
	}
	withdrawals, err := s.files.LoadWithdrawals(ctx)
	if err != nil {
		return IngestReport{}, fmt.Errorf("failed to load withdrawals: %w", err)
	}

	s.scheduler = NewMatchScheduler(s.cfg.Format, s.logger)
	s.scheduler.LoadPlayers(records)
	s.scheduler.LoadWithdrawals(withdrawals)
	if s.cfg.Format.GroupCount > 1 {
		if err := s.scheduler.AssignGroups(s.cfg.Format.GroupCount); err != nil {
			return IngestReport{}, err
		}
	}
	s.scheduler.GenerateGroupMatches()

	report := s.scheduler.IngestResults(results)
	if len(report.Skipped) > 0 && len(s.scheduler.ScheduleSnapshot()) == 0 && s.scheduler.ProcessedCount() > 0 {
		if _, err := s.scheduler.GenerateKnockoutBracket(s.cfg.Format.QualifierCount); err != nil {
			s.logger.Warn("knockout bracket not rebuilt", slog.Any("error", err))
		} else {
			knockout := s.ingestLocked(results)
			report.Applied += knockout.Applied
			report.Skipped = knockout.Skipped
		}
	}
	s.resolveLocked()

	s.logger.Info("tournament bootstrapped",
		slog.Int("players", len(s.scheduler.Players())),
		slog.Int("results_applied", report.Applied),
		slog.Int("results_skipped", len(report.Skipped)))
	return report, s.publishLocked(ctx, brackets.MessageOverview)
}

// ingestLocked feeds results until a pass applies nothing new. A later knockout round
// only accepts its result once the earlier round has been resolved into it.
func (s *TournamentService) ingestLocked(results []models.ResultRecord) IngestReport {
	report := s.scheduler.IngestResults(results)
	applied := report.Applied
	for applied > 0 && s.scheduler.HasBracket() {
		s.resolveLocked()
		pass := s.scheduler.IngestResults(results)
		applied = pass.Applied
		report.Applied += pass.Applied
		report.Skipped = pass.Skipped
	}
	return report
}

// SyncResults ingests any new lines of the results feed and republishes when something changed.
func (s *TournamentService) SyncResults(ctx context.Context) (IngestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.files.LoadResults(ctx)
	if err != nil {
		return IngestReport{}, fmt.Errorf("failed to load results: %w", err)
	}
	report := s.ingestLocked(results)
	if report.Applied == 0 {
		return report, nil
	}
	s.resolveLocked()
	return report, s.publishLocked(ctx, brackets.MessageResultsIngested)
}

// ReportResult applies one result and appends it to the results feed.
func (s *TournamentService) ReportResult(ctx context.Context, rec models.ResultRecord) (IngestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, reason := s.scheduler.IngestResult(rec)
	switch status {
	case IngestSkipped:
		return status, fmt.Errorf("%w: %v", ErrValidationFailed, reason)
	case IngestDuplicate:
		return status, nil
	}
	if err := s.files.AppendResult(ctx, rec); err != nil {
		s.logger.Error("result applied but not persisted", slog.Int("match_id", rec.MatchID), slog.Any("error", err))
		return status, fmt.Errorf("failed to persist result: %w", err)
	}
	s.resolveLocked()
	return status, s.publishLocked(ctx, brackets.MessageResultsIngested)
}

func (s *TournamentService) RegisterPlayer(ctx context.Context, name string, regType models.RegistrationType) (models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.scheduler.RegisterPlayer(name, regType, s.now())
	if err != nil {
		return models.Player{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if err := s.files.AppendPlayer(ctx, p.ToRecord()); err != nil {
		return models.Player{}, fmt.Errorf("failed to persist player: %w", err)
	}
	return *p, s.publishLocked(ctx, brackets.MessageOverview)
}

// GenerateGroups rebuilds the group stage and drops any knockout bracket. It refuses
// once results have been applied.
func (s *TournamentService) GenerateGroups(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler.ProcessedCount() > 0 {
		return 0, ErrGroupStageStarted
	}
	n, err := s.rebuildGroupsLocked()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotEnoughPlayers
	}
	return n, s.publishLocked(ctx, brackets.MessageOverview)
}

// rebuildGroupsLocked swaps in a fresh scheduler over the current players. Matches are
// numbered from 1, exactly as Bootstrap will after a restart. Any bracket is dropped.
func (s *TournamentService) rebuildGroupsLocked() (int, error) {
	players := s.scheduler.Players()
	records := make([]models.PlayerRecord, 0, len(players))
	for i := range players {
		records = append(records, players[i].ToRecord())
	}
	scheduler := NewMatchScheduler(s.cfg.Format, s.logger)
	scheduler.LoadPlayers(records)
	scheduler.LoadWithdrawals(s.scheduler.Withdrawals())
	if s.cfg.Format.GroupCount > 1 {
		if err := scheduler.AssignGroups(s.cfg.Format.GroupCount); err != nil {
			return 0, err
		}
	}
	n := scheduler.GenerateGroupMatches()
	s.scheduler = scheduler
	return n, nil
}

// CheckIn confirms a registered player inside the check-in window and records the new
// status in the players file.
func (s *TournamentService) CheckIn(ctx context.Context, id int) (models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.scheduler.CheckIn(id, s.now(), s.cfg.CheckInWindow)
	if err != nil {
		return p, err
	}
	if err := s.rewritePlayersLocked(ctx, func(records []models.PlayerRecord) []models.PlayerRecord {
		for i := range records {
			if records[i].ID == id {
				records[i].Status = models.StatusPlaying
			}
		}
		return records
	}); err != nil {
		return p, err
	}
	return p, s.publishLocked(ctx, brackets.MessageOverview)
}

// Withdraw removes a player before the group stage has results, logs the withdrawal and
// regenerates the group matches without them.
func (s *TournamentService) Withdraw(ctx context.Context, id int) (models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler.ProcessedCount() > 0 {
		return models.Withdrawal{}, ErrGroupStageStarted
	}
	w, err := s.scheduler.Withdraw(id, s.now())
	if err != nil {
		return models.Withdrawal{}, err
	}
	if err := s.rewritePlayersLocked(ctx, func(records []models.PlayerRecord) []models.PlayerRecord {
		kept := records[:0]
		for _, rec := range records {
			if rec.ID != id {
				kept = append(kept, rec)
			}
		}
		return kept
	}); err != nil {
		return w, err
	}
	if err := s.files.AppendWithdrawal(ctx, w); err != nil {
		return w, fmt.Errorf("failed to persist withdrawal: %w", err)
	}
	if _, err := s.rebuildGroupsLocked(); err != nil {
		return w, err
	}
	return w, s.publishLocked(ctx, brackets.MessageOverview)
}

// Replace fills the slot of a withdrawn player with a newly registered one and
// regenerates the group matches.
func (s *TournamentService) Replace(ctx context.Context, id int, name string, regType models.RegistrationType) (models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler.ProcessedCount() > 0 {
		return models.Player{}, ErrGroupStageStarted
	}
	p, err := s.scheduler.Replace(id, name, regType, s.now())
	switch {
	case errors.Is(err, ErrPlayerNameRequired), errors.Is(err, ErrPlayerNameInvalid):
		return models.Player{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	case err != nil:
		return models.Player{}, err
	}
	if err := s.files.AppendPlayer(ctx, p.ToRecord()); err != nil {
		return *p, fmt.Errorf("failed to persist player: %w", err)
	}
	if err := s.files.SaveWithdrawals(ctx, s.scheduler.Withdrawals()); err != nil {
		return *p, fmt.Errorf("failed to persist withdrawals: %w", err)
	}
	if _, err := s.rebuildGroupsLocked(); err != nil {
		return *p, err
	}
	player, err := s.scheduler.Player(id)
	if err != nil {
		return *p, err
	}
	return player, s.publishLocked(ctx, brackets.MessageOverview)
}

func (s *TournamentService) Withdrawals() []models.Withdrawal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.Withdrawals()
}

// rewritePlayersLocked edits the players file as registration data. Statuses earned
// from results are never written back, so a restart replays them from the results feed.
func (s *TournamentService) rewritePlayersLocked(ctx context.Context, edit func([]models.PlayerRecord) []models.PlayerRecord) error {
	records, err := s.files.LoadPlayers(ctx)
	if err != nil && !errors.Is(err, repositories.ErrPlayersFileNotFound) {
		return fmt.Errorf("failed to load players: %w", err)
	}
	if err := s.files.SavePlayers(ctx, edit(records)); err != nil {
		return fmt.Errorf("failed to persist players: %w", err)
	}
	return nil
}

// GenerateKnockout builds the bracket from the group-stage ranking. A non-positive count
// uses the format default. A bracket that already has reported results is kept.
func (s *TournamentService) GenerateKnockout(ctx context.Context, qualifierCount int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler.KnockoutResultCount() > 0 {
		return nil, ErrKnockoutStarted
	}
	if qualifierCount <= 0 {
		qualifierCount = s.cfg.Format.QualifierCount
	}
	qualifiers, err := s.scheduler.GenerateKnockoutBracket(qualifierCount)
	if err != nil {
		return nil, err
	}
	return qualifiers, s.publishLocked(ctx, brackets.MessageBracketUpdated)
}

// ResolveKnockout resolves the bracket with the named strategy and returns the champion, or 0.
func (s *TournamentService) ResolveKnockout(ctx context.Context, strategy string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scheduler.HasBracket() {
		return models.NoWinner, ErrKnockoutNotGenerated
	}
	outcome, err := brackets.OutcomeByName(strategy, s.scheduler.SeedLookup())
	if err != nil {
		return models.NoWinner, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	champion := s.scheduler.ResolveKnockout(outcome)
	return champion, s.publishLocked(ctx, brackets.MessageBracketUpdated)
}

// SimulateGroupStage decides every open group match with the named strategy.
func (s *TournamentService) SimulateGroupStage(ctx context.Context, strategy string) (IngestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, err := brackets.OutcomeByName(strategy, s.scheduler.SeedLookup())
	if err != nil {
		return IngestReport{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	report := s.scheduler.SimulateGroupStage(outcome)
	return report, s.publishLocked(ctx, brackets.MessageResultsIngested)
}

func (s *TournamentService) resolveLocked() {
	if !s.scheduler.HasBracket() {
		return
	}
	outcome, err := brackets.OutcomeByName(s.cfg.OutcomeStrategy, s.scheduler.SeedLookup())
	if err != nil {
		s.logger.Warn("unknown outcome strategy, waiting for reported results", slog.Any("error", err))
		outcome = brackets.AwaitReported
	}
	s.scheduler.ResolveKnockout(outcome)
}

func (s *TournamentService) Players() []models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.Players()
}

func (s *TournamentService) Player(id int) (models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.Player(id)
}

func (s *TournamentService) PlayerHistory(id int) ([]models.MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.PlayerHistory(id)
}

func (s *TournamentService) Standings() []models.Standing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.StandingsSnapshot()
}

func (s *TournamentService) Schedule() []models.ScheduledMatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked()
}

func (s *TournamentService) GroupMatches() []models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.GroupMatches()
}

func (s *TournamentService) Bracket() []models.BracketLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.BracketLevels()
}

func (s *TournamentService) Overview() models.TournamentOverview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overviewLocked()
}

// ExportXLSX writes the current standings and schedule as a spreadsheet.
func (s *TournamentService) ExportXLSX(w io.Writer) error {
	s.mu.Lock()
	standings := s.scheduler.StandingsSnapshot()
	schedule := s.scheduleLocked()
	s.mu.Unlock()
	return repositories.WriteStandingsXLSX(w, standings, schedule)
}

func (s *TournamentService) scheduleLocked() []models.ScheduledMatch {
	schedule := s.scheduler.ScheduleSnapshot()
	if s.cfg.IncludeKnockout {
		schedule = append(schedule, s.scheduler.KnockoutScheduleSnapshot()...)
	}
	return schedule
}

func (s *TournamentService) overviewLocked() models.TournamentOverview {
	overview := models.TournamentOverview{
		Name:      s.cfg.Name,
		Format:    s.cfg.Format,
		Standings: s.scheduler.StandingsSnapshot(),
		Schedule:  s.scheduleLocked(),
		Bracket:   s.scheduler.BracketLevels(),
	}
	if champion := s.scheduler.Champion(); champion != models.NoWinner {
		overview.Champion = &champion
	}
	return overview
}

// Publish writes the snapshot files and fans the overview out to the optional sinks.
func (s *TournamentService) Publish(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishLocked(ctx, brackets.MessageOverview)
}

// publishLocked writes the snapshot files first; they are the source of truth for
// external readers. Database, object storage and websocket run concurrently and a
// failure in one does not cancel the others.
func (s *TournamentService) publishLocked(ctx context.Context, messageType string) error {
	overview := s.overviewLocked()

	if err := s.timed("files", func() error {
		if err := s.files.WriteStandings(ctx, overview.Standings); err != nil {
			return err
		}
		return s.files.WriteSchedule(ctx, overview.Schedule)
	}); err != nil {
		return fmt.Errorf("%w: failed to write snapshot files: %v", ErrPublishIncomplete, err)
	}

	takenAt := s.now().UTC()
	var g errgroup.Group

	if s.snapshots != nil {
		g.Go(func() error {
			return s.timed("postgres", func() error {
				snapshot := &models.StandingsSnapshot{Tournament: s.cfg.Name, TakenAt: takenAt, Standings: overview.Standings}
				if err := s.snapshots.Save(ctx, snapshot); err != nil {
					return fmt.Errorf("failed to save standings snapshot: %w", err)
				}
				return nil
			})
		})
	}

	if s.uploader != nil {
		g.Go(func() error {
			return s.timed("object_storage", func() error {
				body, err := json.Marshal(overview)
				if err != nil {
					return err
				}
				for _, key := range []string{
					storage.SnapshotKey(s.cfg.Name, "overview.json", takenAt),
					storage.LatestKey(s.cfg.Name, "overview.json"),
				} {
					if _, err := s.uploader.Upload(ctx, key, storage.ContentTypeJSON, bytes.NewReader(body)); err != nil {
						return err
					}
				}
				return nil
			})
		})
	}

	if s.hub != nil {
		g.Go(func() error {
			return s.timed("websocket", func() error {
				return s.hub.BroadcastToRoom(s.RoomID(), brackets.WebSocketMessage{
					Type:    messageType,
					Payload: overview,
					RoomID:  s.RoomID(),
				})
			})
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("snapshot publication incomplete", slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrPublishIncomplete, err)
	}
	return nil
}

func (s *TournamentService) timed(sink string, fn func() error) error {
	start := time.Now()
	err := fn()
	publishDuration.WithLabelValues(sink).Observe(time.Since(start).Seconds())
	if err != nil {
		publishFailures.WithLabelValues(sink).Inc()
	}
	return err
}
