package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Dosada05/tournament-ops/models"
	"github.com/Dosada05/tournament-ops/storage"
)

type memoryFiles struct {
	players     []models.PlayerRecord
	results     []models.ResultRecord
	withdrawals []models.Withdrawal
	standings   []models.Standing
	schedule    []models.ScheduledMatch
	writes      int
	failWrite   error
}

func (f *memoryFiles) LoadPlayers(ctx context.Context) ([]models.PlayerRecord, error) {
	return append([]models.PlayerRecord(nil), f.players...), nil
}

func (f *memoryFiles) LoadResults(ctx context.Context) ([]models.ResultRecord, error) {
	return append([]models.ResultRecord(nil), f.results...), nil
}

func (f *memoryFiles) SavePlayers(ctx context.Context, records []models.PlayerRecord) error {
	f.players = append([]models.PlayerRecord(nil), records...)
	return nil
}

func (f *memoryFiles) LoadWithdrawals(ctx context.Context) ([]models.Withdrawal, error) {
	return append([]models.Withdrawal(nil), f.withdrawals...), nil
}

func (f *memoryFiles) AppendWithdrawal(ctx context.Context, w models.Withdrawal) error {
	f.withdrawals = append(f.withdrawals, w)
	return nil
}

func (f *memoryFiles) SaveWithdrawals(ctx context.Context, withdrawals []models.Withdrawal) error {
	f.withdrawals = append([]models.Withdrawal(nil), withdrawals...)
	return nil
}

func (f *memoryFiles) AppendPlayer(ctx context.Context, rec models.PlayerRecord) error {
	f.players = append(f.players, rec)
	return nil
}

func (f *memoryFiles) AppendResult(ctx context.Context, rec models.ResultRecord) error {
	f.results = append(f.results, rec)
	return nil
}

func (f *memoryFiles) WriteStandings(ctx context.Context, standings []models.Standing) error {
	if f.failWrite != nil {
		return f.failWrite
	}
	f.writes++
	f.standings = standings
	return nil
}

func (f *memoryFiles) WriteSchedule(ctx context.Context, schedule []models.ScheduledMatch) error {
	f.schedule = schedule
	return nil
}

type memorySnapshots struct {
	mu    sync.Mutex
	saved []*models.StandingsSnapshot
	err   error
}

func (r *memorySnapshots) EnsureSchema(ctx context.Context) error { return nil }

func (r *memorySnapshots) Save(ctx context.Context, snapshot *models.StandingsSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, snapshot)
	return nil
}

func (r *memorySnapshots) Latest(ctx context.Context, tournament string) (*models.StandingsSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return nil, ErrNotFound
	}
	return r.saved[len(r.saved)-1], nil
}

func (r *memorySnapshots) DeleteByTournament(ctx context.Context, tournament string) error {
	return nil
}

type memoryUploader struct {
	mu   sync.Mutex
	keys []string
}

func (u *memoryUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	if _, err := io.ReadAll(reader); err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.keys = append(u.keys, key)
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *memoryUploader) Delete(ctx context.Context, key string) error { return nil }

func (u *memoryUploader) GetPublicURL(key string) string { return "https://cdn.test/" + key }

type recordingHub struct {
	mu       sync.Mutex
	rooms    []string
	messages []interface{}
}

func (h *recordingHub) BroadcastToRoom(roomID string, message interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms = append(h.rooms, roomID)
	h.messages = append(h.messages, message)
	return nil
}

// groupResults plays the round robin of players so the lower id always wins.
func groupResults(t *testing.T, players []models.PlayerRecord) []models.ResultRecord {
	t.Helper()
	s := NewMatchScheduler(models.DefaultFormat(), testLogger())
	s.LoadPlayers(players)
	s.GenerateGroupMatches()
	var results []models.ResultRecord
	for _, m := range s.GroupMatches() {
		winner, loser := m.Player1ID, m.Player2ID
		if loser < winner {
			winner, loser = loser, winner
		}
		results = append(results, models.ResultRecord{MatchID: m.ID, WinnerID: winner, LoserID: loser})
	}
	return results
}

func newTestTournament(files *memoryFiles, deps TournamentDeps) *TournamentService {
	deps.Files = files
	deps.Logger = testLogger()
	format := models.DefaultFormat()
	format.QualifierCount = 4
	svc := NewTournamentService(TournamentConfig{Name: "spring-open", Format: format, IncludeKnockout: true}, deps)
	svc.now = func() time.Time { return registeredAt }
	return svc
}

func TestTournamentService_BootstrapReplaysGroupAndKnockout(t *testing.T) {
	players := seededPlayers(4)
	results := groupResults(t, players)
	results = append(results,
		models.ResultRecord{MatchID: 1003, WinnerID: 4, LoserID: 2},
		models.ResultRecord{MatchID: 1001, WinnerID: 2, LoserID: 1},
		models.ResultRecord{MatchID: 1002, WinnerID: 4, LoserID: 3},
	)
	files := &memoryFiles{players: players, results: results}
	svc := newTestTournament(files, TournamentDeps{})

	report, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, report.Applied)
	assert.Empty(t, report.Skipped)

	overview := svc.Overview()
	require.NotNil(t, overview.Champion)
	assert.Equal(t, 4, *overview.Champion)
	assert.Empty(t, overview.Schedule)
	assert.Equal(t, 1, files.writes)
	assert.Len(t, files.standings, 4)
}

func TestTournamentService_BootstrapGroupStageOnly(t *testing.T) {
	players := seededPlayers(3)
	results := groupResults(t, players)[:2]
	files := &memoryFiles{players: players, results: results}
	svc := newTestTournament(files, TournamentDeps{})

	report, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)
	assert.Len(t, files.schedule, 1)
	assert.Empty(t, svc.Bracket())
	assert.Nil(t, svc.Overview().Champion)
}

func TestTournamentService_SyncResultsPublishesOnlyOnChange(t *testing.T) {
	players := seededPlayers(3)
	files := &memoryFiles{players: players}
	hub := &recordingHub{}
	svc := newTestTournament(files, TournamentDeps{Hub: hub})

	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, files.writes)

	report, err := svc.SyncResults(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Applied)
	assert.Equal(t, 1, files.writes)

	files.results = groupResults(t, players)
	report, err = svc.SyncResults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Applied)
	assert.Equal(t, 2, files.writes)

	report, err = svc.SyncResults(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Applied)
	assert.Equal(t, 3, report.Duplicates)

	require.Len(t, hub.rooms, 2)
	assert.Equal(t, "tournament_spring-open", hub.rooms[1])
}

func TestTournamentService_ReportResult(t *testing.T) {
	players := seededPlayers(2)
	files := &memoryFiles{players: players}
	svc := newTestTournament(files, TournamentDeps{})
	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)

	status, err := svc.ReportResult(context.Background(), models.ResultRecord{MatchID: 1, WinnerID: 3, LoserID: 1})
	assert.Equal(t, IngestSkipped, status)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Empty(t, files.results)

	status, err = svc.ReportResult(context.Background(), models.ResultRecord{MatchID: 1, WinnerID: 2, LoserID: 1})
	require.NoError(t, err)
	assert.Equal(t, IngestApplied, status)
	assert.Len(t, files.results, 1)

	status, err = svc.ReportResult(context.Background(), models.ResultRecord{MatchID: 1, WinnerID: 2, LoserID: 1})
	require.NoError(t, err)
	assert.Equal(t, IngestDuplicate, status)
	assert.Len(t, files.results, 1)

	history, err := svc.PlayerHistory(2)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].LoserID)
}

func TestTournamentService_RegisterPlayerPersists(t *testing.T) {
	files := &memoryFiles{players: seededPlayers(2)}
	svc := newTestTournament(files, TournamentDeps{})
	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)

	p, err := svc.RegisterPlayer(context.Background(), "Ada", models.RegistrationWildcard)
	require.NoError(t, err)
	assert.Equal(t, 3, p.ID)
	assert.Equal(t, 1, p.Priority)
	require.Len(t, files.players, 3)
	assert.Equal(t, "Ada", files.players[2].Name)

	_, err = svc.RegisterPlayer(context.Background(), "Bad,Name", models.RegistrationNormal)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Len(t, files.players, 3)
}

func TestTournamentService_GenerateGroupsRefusesAfterResults(t *testing.T) {
	players := seededPlayers(3)
	files := &memoryFiles{players: players}
	svc := newTestTournament(files, TournamentDeps{})
	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)

	n, err := svc.GenerateGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = svc.ReportResult(context.Background(), groupResults(t, players)[0])
	require.NoError(t, err)

	_, err = svc.GenerateGroups(context.Background())
	assert.ErrorIs(t, err, ErrGroupStageStarted)
}

func TestTournamentService_KnockoutLifecycle(t *testing.T) {
	players := seededPlayers(4)
	files := &memoryFiles{players: players, results: groupResults(t, players)}
	svc := newTestTournament(files, TournamentDeps{})
	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)

	_, err = svc.ResolveKnockout(context.Background(), "seed")
	assert.ErrorIs(t, err, ErrKnockoutNotGenerated)

	qualifiers, err := svc.GenerateKnockout(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, qualifiers)
	assert.Len(t, files.schedule, 2)

	_, err = svc.ResolveKnockout(context.Background(), "coin-flip")
	assert.ErrorIs(t, err, ErrValidationFailed)

	champion, err := svc.ResolveKnockout(context.Background(), "seed")
	require.NoError(t, err)
	assert.Equal(t, 1, champion)

	levels := svc.Bracket()
	require.NotEmpty(t, levels)
	assert.Equal(t, 1, levels[0].Nodes[0].WinnerID)
}

func TestTournamentService_PublishFansOut(t *testing.T) {
	files := &memoryFiles{players: seededPlayers(2)}
	snapshots := &memorySnapshots{}
	uploader := &memoryUploader{}
	hub := &recordingHub{}
	svc := newTestTournament(files, TournamentDeps{Snapshots: snapshots, Uploader: uploader, Hub: hub})

	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshots.saved, 1)
	assert.Equal(t, "spring-open", snapshots.saved[0].Tournament)
	assert.Len(t, snapshots.saved[0].Standings, 2)
	assert.ElementsMatch(t, []string{
		"tournaments/spring-open/20240301T093000Z/overview.json",
		"tournaments/spring-open/latest/overview.json",
	}, uploader.keys)
	assert.Equal(t, []string{"tournament_spring-open"}, hub.rooms)
}

func TestTournamentService_PublishReportsSinkFailure(t *testing.T) {
	files := &memoryFiles{players: seededPlayers(2)}
	hub := &recordingHub{}
	svc := newTestTournament(files, TournamentDeps{Snapshots: &memorySnapshots{err: errors.New("db down")}, Hub: hub})

	_, err := svc.Bootstrap(context.Background())
	assert.ErrorIs(t, err, ErrPublishIncomplete)
	assert.ErrorContains(t, err, "db down")
	assert.Len(t, hub.rooms, 1, "other sinks still run")
	assert.Equal(t, 1, files.writes)
}

func TestTournamentService_PublishStopsWhenFilesFail(t *testing.T) {
	files := &memoryFiles{players: seededPlayers(2), failWrite: errors.New("disk full")}
	hub := &recordingHub{}
	svc := newTestTournament(files, TournamentDeps{Hub: hub})

	_, err := svc.Bootstrap(context.Background())
	assert.ErrorIs(t, err, ErrPublishIncomplete)
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, hub.rooms)
}

func TestTournamentService_ExportXLSX(t *testing.T) {
	files := &memoryFiles{players: seededPlayers(3)}
	svc := newTestTournament(files, TournamentDeps{})
	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportXLSX(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Standings")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestTournamentService_RebuiltBracketSurvivesRestart(t *testing.T) {
	players := seededPlayers(4)
	files := &memoryFiles{players: players, results: groupResults(t, players)}
	svc := newTestTournament(files, TournamentDeps{})
	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		qualifiers, err := svc.GenerateKnockout(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4}, qualifiers)
	}
	status, err := svc.ReportResult(context.Background(), models.ResultRecord{MatchID: 1001, WinnerID: 1, LoserID: 2})
	require.NoError(t, err)
	require.Equal(t, IngestApplied, status)

	_, err = svc.GenerateKnockout(context.Background(), 2)
	assert.ErrorIs(t, err, ErrKnockoutStarted)

	restarted := newTestTournament(files, TournamentDeps{})
	report, err := restarted.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, report.Applied)
	assert.Empty(t, report.Skipped)

	levels := restarted.Bracket()
	require.Len(t, levels, 3)
	semi := levels[1].Nodes[0]
	assert.Equal(t, 1001, semi.MatchID)
	assert.Equal(t, 1, semi.WinnerID)
	assert.Equal(t, svc.Standings(), restarted.Standings())
}

func TestTournamentService_CheckInWithdrawReplace(t *testing.T) {
	ctx := context.Background()
	files := &memoryFiles{players: seededPlayers(4)}
	svc := newTestTournament(files, TournamentDeps{})
	svc.now = func() time.Time { return registeredAt.Add(12 * time.Minute) }
	_, err := svc.Bootstrap(ctx)
	require.NoError(t, err)

	p, err := svc.CheckIn(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaying, p.Status)
	assert.Equal(t, models.StatusPlaying, files.players[0].Status)
	assert.Equal(t, models.StatusRegistered, files.players[1].Status)

	_, err = svc.CheckIn(ctx, 1)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)

	svc.now = func() time.Time { return registeredAt.Add(40 * time.Minute) }
	_, err = svc.CheckIn(ctx, 2)
	assert.ErrorIs(t, err, ErrCheckInClosed)

	w, err := svc.Withdraw(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, w.ID)
	assert.Equal(t, []models.Withdrawal{w}, files.withdrawals)
	require.Len(t, files.players, 3)
	for _, rec := range files.players {
		assert.NotEqual(t, 3, rec.ID)
	}
	matches := svc.GroupMatches()
	require.Len(t, matches, 3)
	assert.Equal(t, 1, matches[0].ID)

	_, err = svc.Replace(ctx, 3, "Bad,Name", models.RegistrationNormal)
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = svc.Replace(ctx, 4, "Grace", models.RegistrationNormal)
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)

	replacement, err := svc.Replace(ctx, 3, "Grace", models.RegistrationEarlyBird)
	require.NoError(t, err)
	assert.Equal(t, 3, replacement.ID)
	assert.Equal(t, 2, replacement.Priority)
	assert.Empty(t, files.withdrawals)
	require.Len(t, files.players, 4)
	assert.Equal(t, "Grace", files.players[3].Name)
	assert.Len(t, svc.GroupMatches(), 6)

	restarted := newTestTournament(files, TournamentDeps{})
	_, err = restarted.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Len(t, restarted.Players(), 4)
	assert.Empty(t, restarted.Withdrawals())
	first, err := restarted.Player(1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaying, first.Status)
	assert.Equal(t, svc.GroupMatches(), restarted.GroupMatches())
}

func TestTournamentService_WithdrawRefusedOnceGroupStageStarted(t *testing.T) {
	players := seededPlayers(3)
	files := &memoryFiles{players: players}
	svc := newTestTournament(files, TournamentDeps{})
	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)

	_, err = svc.ReportResult(context.Background(), groupResults(t, players)[0])
	require.NoError(t, err)

	_, err = svc.Withdraw(context.Background(), 3)
	assert.ErrorIs(t, err, ErrGroupStageStarted)
	assert.Empty(t, files.withdrawals)
	assert.Len(t, files.players, 3)
}
