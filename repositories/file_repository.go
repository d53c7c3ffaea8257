package repositories

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Dosada05/tournament-ops/models"
)

var ErrPlayersFileNotFound = errors.New("players file not found")

const (
	DefaultPlayersFile     = "players.txt"
	DefaultResultsFile     = "results.txt"
	DefaultStandingsFile   = "current_standings.txt"
	DefaultScheduleFile    = "scheduled_matches.txt"
	DefaultWithdrawalsFile = "withdrawals.txt"
)

// FilePaths names the flat files of one tournament. Relative names resolve against Dir.
type FilePaths struct {
	Dir         string
	Players     string
	Results     string
	Standings   string
	Schedule    string
	Withdrawals string
}

func (p FilePaths) withDefaults() FilePaths {
	if p.Dir == "" {
		p.Dir = "."
	}
	if p.Players == "" {
		p.Players = DefaultPlayersFile
	}
	if p.Results == "" {
		p.Results = DefaultResultsFile
	}
	if p.Standings == "" {
		p.Standings = DefaultStandingsFile
	}
	if p.Schedule == "" {
		p.Schedule = DefaultScheduleFile
	}
	if p.Withdrawals == "" {
		p.Withdrawals = DefaultWithdrawalsFile
	}
	return p
}

// FileRepository reads and writes the line-oriented tournament files.
// Snapshot writes go through a temp file and a rename so readers never see a partial file.
type FileRepository struct {
	paths  FilePaths
	logger *slog.Logger
}

func NewFileRepository(paths FilePaths, logger *slog.Logger) *FileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRepository{paths: paths.withDefaults(), logger: logger}
}

func (r *FileRepository) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(r.paths.Dir, name)
}

func (r *FileRepository) PlayersPath() string     { return r.path(r.paths.Players) }
func (r *FileRepository) ResultsPath() string     { return r.path(r.paths.Results) }
func (r *FileRepository) StandingsPath() string   { return r.path(r.paths.Standings) }
func (r *FileRepository) SchedulePath() string    { return r.path(r.paths.Schedule) }
func (r *FileRepository) WithdrawalsPath() string { return r.path(r.paths.Withdrawals) }

// readLines calls fn for every non-blank line. A malformed line is logged and skipped.
func (r *FileRepository) readLines(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			r.logger.Warn("skipping malformed line",
				slog.String("file", path), slog.Int("line", lineNo), slog.Any("error", err))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// LoadPlayers reads the players file in file order.
func (r *FileRepository) LoadPlayers(ctx context.Context) ([]models.PlayerRecord, error) {
	records := make([]models.PlayerRecord, 0)
	err := r.readLines(ctx, r.PlayersPath(), func(line string) error {
		rec, err := ParsePlayerRecord(line)
		if err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrPlayersFileNotFound, r.PlayersPath())
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

// LoadResults reads the results feed. A missing feed means nothing was reported yet.
func (r *FileRepository) LoadResults(ctx context.Context) ([]models.ResultRecord, error) {
	records := make([]models.ResultRecord, 0)
	err := r.readLines(ctx, r.ResultsPath(), func(line string) error {
		rec, err := ParseResultRecord(line)
		if err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Debug("results file not present yet", slog.String("file", r.ResultsPath()))
		return records, nil
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

// LoadWithdrawals reads the withdrawn players. A missing file means nobody withdrew.
func (r *FileRepository) LoadWithdrawals(ctx context.Context) ([]models.Withdrawal, error) {
	withdrawals := make([]models.Withdrawal, 0)
	err := r.readLines(ctx, r.WithdrawalsPath(), func(line string) error {
		w, err := ParseWithdrawal(line)
		if err != nil {
			return err
		}
		withdrawals = append(withdrawals, w)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return withdrawals, nil
	}
	if err != nil {
		return nil, err
	}
	return withdrawals, nil
}

func (r *FileRepository) AppendWithdrawal(ctx context.Context, w models.Withdrawal) error {
	return r.appendLine(ctx, r.WithdrawalsPath(), FormatWithdrawal(w))
}

// SaveWithdrawals replaces the withdrawals file, e.g. after a replacement took a slot.
func (r *FileRepository) SaveWithdrawals(ctx context.Context, withdrawals []models.Withdrawal) error {
	lines := make([]string, 0, len(withdrawals))
	for _, w := range withdrawals {
		lines = append(lines, FormatWithdrawal(w))
	}
	return r.writeAtomic(ctx, r.WithdrawalsPath(), lines)
}

func (r *FileRepository) SavePlayers(ctx context.Context, records []models.PlayerRecord) error {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, FormatPlayerRecord(rec))
	}
	return r.writeAtomic(ctx, r.PlayersPath(), lines)
}

func (r *FileRepository) AppendPlayer(ctx context.Context, rec models.PlayerRecord) error {
	return r.appendLine(ctx, r.PlayersPath(), FormatPlayerRecord(rec))
}

func (r *FileRepository) AppendResult(ctx context.Context, rec models.ResultRecord) error {
	return r.appendLine(ctx, r.ResultsPath(), FormatResultRecord(rec))
}

// WriteStandings replaces the standings snapshot. Standings are written in the given order.
func (r *FileRepository) WriteStandings(ctx context.Context, standings []models.Standing) error {
	lines := make([]string, 0, len(standings))
	for _, s := range standings {
		lines = append(lines, FormatStanding(s))
	}
	return r.writeAtomic(ctx, r.StandingsPath(), lines)
}

func (r *FileRepository) WriteSchedule(ctx context.Context, schedule []models.ScheduledMatch) error {
	lines := make([]string, 0, len(schedule))
	for _, m := range schedule {
		lines = append(lines, FormatScheduledMatch(m))
	}
	return r.writeAtomic(ctx, r.SchedulePath(), lines)
}

func (r *FileRepository) appendLine(ctx context.Context, path, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return f.Close()
}

func (r *FileRepository) writeAtomic(ctx context.Context, path string, lines []string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err = w.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	r.logger.Debug("file written", slog.String("file", path), slog.Int("lines", len(lines)))
	return nil
}
