package repositories

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/tournament-ops/models"
)

var ErrMalformedRecord = errors.New("malformed record")

const (
	playerRecordFields     = 5
	resultRecordFields     = 3
	withdrawalRecordFields = 5
)

func splitFields(line string, want int) ([]string, error) {
	fields := strings.Split(line, ",")
	if len(fields) != want {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRecord, want, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}

func parseIntField(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrMalformedRecord, name, value)
	}
	return n, nil
}

// ParsePlayerRecord reads `id,name,registrationTimestamp,status,priority`.
// An empty timestamp is accepted and left zero.
func ParsePlayerRecord(line string) (models.PlayerRecord, error) {
	fields, err := splitFields(line, playerRecordFields)
	if err != nil {
		return models.PlayerRecord{}, err
	}

	id, err := parseIntField("id", fields[0])
	if err != nil {
		return models.PlayerRecord{}, err
	}
	if fields[1] == "" {
		return models.PlayerRecord{}, fmt.Errorf("%w: empty name", ErrMalformedRecord)
	}
	registeredAt, err := parseTimeField("registration time", fields[2])
	if err != nil {
		return models.PlayerRecord{}, err
	}
	status, err := models.ParsePlayerStatus(fields[3])
	if err != nil {
		return models.PlayerRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	priority, err := parseIntField("priority", fields[4])
	if err != nil {
		return models.PlayerRecord{}, err
	}

	return models.PlayerRecord{
		ID:           id,
		Name:         fields[1],
		RegisteredAt: registeredAt,
		Status:       status,
		Priority:     priority,
	}, nil
}

func FormatPlayerRecord(r models.PlayerRecord) string {
	return fmt.Sprintf("%d,%s,%s,%s,%d", r.ID, r.Name, formatTimeField(r.RegisteredAt), r.Status, r.Priority)
}

func parseTimeField(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(models.RegistrationTimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q", ErrMalformedRecord, name, value)
	}
	return t, nil
}

func formatTimeField(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.RegistrationTimeLayout)
}

// ParseWithdrawal reads `id,name,registrationTimestamp,priority,withdrawalTimestamp`.
func ParseWithdrawal(line string) (models.Withdrawal, error) {
	fields, err := splitFields(line, withdrawalRecordFields)
	if err != nil {
		return models.Withdrawal{}, err
	}
	id, err := parseIntField("id", fields[0])
	if err != nil {
		return models.Withdrawal{}, err
	}
	if fields[1] == "" {
		return models.Withdrawal{}, fmt.Errorf("%w: empty name", ErrMalformedRecord)
	}
	registeredAt, err := parseTimeField("registration time", fields[2])
	if err != nil {
		return models.Withdrawal{}, err
	}
	priority, err := parseIntField("priority", fields[3])
	if err != nil {
		return models.Withdrawal{}, err
	}
	withdrawnAt, err := parseTimeField("withdrawal time", fields[4])
	if err != nil {
		return models.Withdrawal{}, err
	}
	return models.Withdrawal{
		ID:           id,
		Name:         fields[1],
		RegisteredAt: registeredAt,
		Priority:     priority,
		WithdrawnAt:  withdrawnAt,
	}, nil
}

func FormatWithdrawal(w models.Withdrawal) string {
	return fmt.Sprintf("%d,%s,%s,%d,%s", w.ID, w.Name, formatTimeField(w.RegisteredAt), w.Priority, formatTimeField(w.WithdrawnAt))
}

// ParseResultRecord reads `matchId,winnerId,loserId`.
func ParseResultRecord(line string) (models.ResultRecord, error) {
	fields, err := splitFields(line, resultRecordFields)
	if err != nil {
		return models.ResultRecord{}, err
	}
	var nums [resultRecordFields]int
	for i, name := range []string{"match id", "winner id", "loser id"} {
		if nums[i], err = parseIntField(name, fields[i]); err != nil {
			return models.ResultRecord{}, err
		}
	}
	return models.ResultRecord{MatchID: nums[0], WinnerID: nums[1], LoserID: nums[2]}, nil
}

func FormatResultRecord(r models.ResultRecord) string {
	return fmt.Sprintf("%d,%d,%d", r.MatchID, r.WinnerID, r.LoserID)
}

// FormatStanding writes `id,name,status,wins,losses,groupId`.
func FormatStanding(s models.Standing) string {
	return fmt.Sprintf("%d,%s,%s,%d,%d,%d", s.PlayerID, s.Name, s.Status, s.Wins, s.Losses, s.GroupID)
}

// FormatScheduledMatch writes `matchId,player1Id,player2Id,stage`.
func FormatScheduledMatch(m models.ScheduledMatch) string {
	return fmt.Sprintf("%d,%d,%d,%s", m.MatchID, m.Player1ID, m.Player2ID, m.Stage)
}
