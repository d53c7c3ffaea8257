package repositories

import (
	"database/sql"
	"fmt"
)

// snapshotsDeleted reports ErrStandingsSnapshotNotFound, naming the tournament,
// when a delete touched no snapshot rows.
func snapshotsDeleted(result sql.Result, tournament string) (int64, error) {
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted snapshots for %q: %w", tournament, err)
	}
	if deleted == 0 {
		return 0, fmt.Errorf("%w: tournament %q", ErrStandingsSnapshotNotFound, tournament)
	}
	return deleted, nil
}
