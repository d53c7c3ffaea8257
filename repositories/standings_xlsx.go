package repositories

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Dosada05/tournament-ops/models"
)

const (
	StandingsSheet = "Standings"
	ScheduleSheet  = "Schedule"
)

var (
	standingsHeader = []interface{}{"Rank", "ID", "Name", "Status", "Wins", "Losses", "Group"}
	scheduleHeader  = []interface{}{"Match", "Player 1", "Player 2", "Stage"}
)

// WriteStandingsXLSX writes a workbook with a standings sheet and a schedule sheet.
func WriteStandingsXLSX(w io.Writer, standings []models.Standing, schedule []models.ScheduledMatch) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", StandingsSheet); err != nil {
		return fmt.Errorf("failed to name standings sheet: %w", err)
	}
	if err := f.SetSheetRow(StandingsSheet, "A1", &standingsHeader); err != nil {
		return fmt.Errorf("failed to write standings header: %w", err)
	}
	for i, s := range standings {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{s.Rank, s.PlayerID, s.Name, string(s.Status), s.Wins, s.Losses, s.GroupID}
		if err := f.SetSheetRow(StandingsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write standing for player %d: %w", s.PlayerID, err)
		}
	}

	if _, err := f.NewSheet(ScheduleSheet); err != nil {
		return fmt.Errorf("failed to create schedule sheet: %w", err)
	}
	if err := f.SetSheetRow(ScheduleSheet, "A1", &scheduleHeader); err != nil {
		return fmt.Errorf("failed to write schedule header: %w", err)
	}
	for i, m := range schedule {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{m.MatchID, m.Player1ID, m.Player2ID, string(m.Stage)}
		if err := f.SetSheetRow(ScheduleSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write scheduled match %d: %w", m.MatchID, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
