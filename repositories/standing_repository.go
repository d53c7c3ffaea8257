package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Dosada05/tournament-ops/models"
)

var (
	ErrStandingsSnapshotNotFound = errors.New("standings snapshot not found")
	ErrStandingsSnapshotConflict = errors.New("standings snapshot contains a player twice")
	ErrStandingsSnapshotInvalid  = errors.New("standings snapshot references a missing snapshot")
)

// StandingsSnapshotRepository keeps the published standings history in Postgres.
type StandingsSnapshotRepository interface {
	EnsureSchema(ctx context.Context) error
	Save(ctx context.Context, snapshot *models.StandingsSnapshot) error
	Latest(ctx context.Context, tournament string) (*models.StandingsSnapshot, error)
	DeleteByTournament(ctx context.Context, tournament string) error
}

type postgresStandingsSnapshotRepository struct {
	db *sql.DB
}

func NewPostgresStandingsSnapshotRepository(db *sql.DB) StandingsSnapshotRepository {
	return &postgresStandingsSnapshotRepository{db: db}
}

const standingsSchema = `
	CREATE TABLE IF NOT EXISTS standings_snapshots (
		id         SERIAL PRIMARY KEY,
		tournament TEXT        NOT NULL,
		taken_at   TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS snapshot_standings (
		snapshot_id INTEGER NOT NULL REFERENCES standings_snapshots(id) ON DELETE CASCADE,
		rank        INTEGER NOT NULL,
		player_id   INTEGER NOT NULL,
		name        TEXT    NOT NULL,
		status      TEXT    NOT NULL,
		wins        INTEGER NOT NULL,
		losses      INTEGER NOT NULL,
		group_id    INTEGER NOT NULL,
		CONSTRAINT snapshot_standings_pkey PRIMARY KEY (snapshot_id, player_id)
	);
	CREATE INDEX IF NOT EXISTS idx_standings_snapshots_tournament ON standings_snapshots (tournament, taken_at DESC);`

func (r *postgresStandingsSnapshotRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, standingsSchema); err != nil {
		return fmt.Errorf("failed to create standings schema: %w", err)
	}
	return nil
}

// Save stores the snapshot header and all of its rows in one transaction and sets snapshot.ID.
func (r *postgresStandingsSnapshotRepository) Save(ctx context.Context, snapshot *models.StandingsSnapshot) (err error) {
	if snapshot.TakenAt.IsZero() {
		snapshot.TakenAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO standings_snapshots (tournament, taken_at) VALUES ($1, $2) RETURNING id`,
		snapshot.Tournament, snapshot.TakenAt,
	).Scan(&snapshot.ID)
	if err != nil {
		return fmt.Errorf("save snapshot failed to insert header: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_standings
		    (snapshot_id, rank, player_id, name, status, wins, losses, group_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("save snapshot failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range snapshot.Standings {
		_, err = stmt.ExecContext(ctx,
			snapshot.ID, s.Rank, s.PlayerID, s.Name, string(s.Status), s.Wins, s.Losses, s.GroupID,
		)
		if err != nil {
			return fmt.Errorf("save snapshot failed for player %d: %w", s.PlayerID, handleSnapshotError(err))
		}
	}
	return nil
}

func (r *postgresStandingsSnapshotRepository) Latest(ctx context.Context, tournament string) (*models.StandingsSnapshot, error) {
	snapshot := &models.StandingsSnapshot{Tournament: tournament}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, taken_at FROM standings_snapshots
		WHERE tournament = $1
		ORDER BY taken_at DESC, id DESC
		LIMIT 1`, tournament,
	).Scan(&snapshot.ID, &snapshot.TakenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStandingsSnapshotNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT rank, player_id, name, status, wins, losses, group_id
		FROM snapshot_standings
		WHERE snapshot_id = $1
		ORDER BY rank ASC`, snapshot.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshot.Standings = make([]models.Standing, 0)
	for rows.Next() {
		var s models.Standing
		var status string
		if err := rows.Scan(&s.Rank, &s.PlayerID, &s.Name, &status, &s.Wins, &s.Losses, &s.GroupID); err != nil {
			return nil, err
		}
		s.Status = models.PlayerStatus(status)
		snapshot.Standings = append(snapshot.Standings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (r *postgresStandingsSnapshotRepository) DeleteByTournament(ctx context.Context, tournament string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM standings_snapshots WHERE tournament = $1`, tournament)
	if err != nil {
		return err
	}
	_, err = snapshotsDeleted(result, tournament)
	return err
}

func handleSnapshotError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch {
	case pqErr.Code == "23505" && pqErr.Constraint == "snapshot_standings_pkey":
		return ErrStandingsSnapshotConflict
	case pqErr.Code == "23503":
		return ErrStandingsSnapshotInvalid
	}
	return err
}
