package services

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-ops/brackets"
	"github.com/Dosada05/tournament-ops/models"
)

var registeredAt = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// seededPlayers returns n records with ids 1..n and priority equal to the id.
func seededPlayers(n int) []models.PlayerRecord {
	faker := gofakeit.New(42)
	records := make([]models.PlayerRecord, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, models.PlayerRecord{
			ID:           i,
			Name:         faker.FirstName(),
			RegisteredAt: registeredAt.Add(time.Duration(i) * time.Minute),
			Status:       models.StatusRegistered,
			Priority:     i,
		})
	}
	return records
}

func newTestScheduler(t *testing.T, n int) *MatchScheduler {
	t.Helper()
	s := NewMatchScheduler(models.DefaultFormat(), testLogger())
	require.Equal(t, n, s.LoadPlayers(seededPlayers(n)))
	return s
}

func mustPlayer(t *testing.T, s *MatchScheduler, id int) models.Player {
	t.Helper()
	p, err := s.Player(id)
	require.NoError(t, err)
	return p
}

func TestMatchScheduler_TwoPlayerTournament(t *testing.T) {
	s := newTestScheduler(t, 2)

	require.Equal(t, 1, s.GenerateGroupMatches())
	matches := s.GroupMatches()
	require.Len(t, matches, 1)
	assert.Equal(t, models.Match{ID: 1, Player1ID: 1, Player2ID: 2}, matches[0])

	status, err := s.IngestResult(models.ResultRecord{MatchID: 1, WinnerID: 1, LoserID: 2})
	require.NoError(t, err)
	assert.Equal(t, IngestApplied, status)

	p1, p2 := mustPlayer(t, s, 1), mustPlayer(t, s, 2)
	assert.Equal(t, 1, p1.Wins)
	assert.Equal(t, models.StatusAdvanced, p1.Status)
	assert.Equal(t, 1, p2.Losses)
	assert.Equal(t, models.StatusEliminated, p2.Status)

	qualifiers, err := s.GenerateKnockoutBracket(2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, qualifiers)
	levels := s.BracketLevels()
	require.NotEmpty(t, levels)
	root := levels[0].Nodes[0]
	assert.Equal(t, 1, root.Player1ID)
	assert.Equal(t, 2, root.Player2ID)

	assert.Equal(t, 1, s.ResolveKnockout(brackets.PickFirst))
	assert.Equal(t, models.StatusWinner, mustPlayer(t, s, 1).Status)
	assert.Equal(t, models.StatusEliminated, mustPlayer(t, s, 2).Status)
}

func TestMatchScheduler_IngestionIsIdempotent(t *testing.T) {
	s := newTestScheduler(t, 3)
	s.GenerateGroupMatches()
	rec := models.ResultRecord{MatchID: 2, WinnerID: 3, LoserID: 1}

	report := s.IngestResults([]models.ResultRecord{rec, rec})
	again := s.IngestResults([]models.ResultRecord{rec})

	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 1, again.Duplicates)
	assert.Equal(t, 1, mustPlayer(t, s, 3).Wins)
	assert.Equal(t, 1, mustPlayer(t, s, 1).Losses)
	assert.Equal(t, 1, s.ProcessedCount())
}

func TestMatchScheduler_IngestSkipsBadRecords(t *testing.T) {
	s := newTestScheduler(t, 3)
	s.GenerateGroupMatches()

	report := s.IngestResults([]models.ResultRecord{
		{MatchID: 0, WinnerID: 1, LoserID: 2},
		{MatchID: 1, WinnerID: 2, LoserID: 2},
		{MatchID: 1, WinnerID: 1, LoserID: 3},
		{MatchID: 1, WinnerID: 9, LoserID: 2},
		{MatchID: 77, WinnerID: 1, LoserID: 2},
	})

	assert.Equal(t, 0, report.Applied)
	require.Len(t, report.Skipped, 5)
	assert.Equal(t, 0, s.ProcessedCount())
	for _, p := range s.Players() {
		assert.Zero(t, p.Wins)
		assert.Zero(t, p.Losses)
		assert.Equal(t, models.StatusRegistered, p.Status)
	}

	status, err := s.IngestResult(models.ResultRecord{MatchID: 1, WinnerID: 2, LoserID: 1})
	require.NoError(t, err)
	assert.Equal(t, IngestApplied, status)
}

func TestMatchScheduler_GenerateGroupMatches(t *testing.T) {
	t.Run("fewer than two players leaves queue unchanged", func(t *testing.T) {
		s := newTestScheduler(t, 1)
		assert.Zero(t, s.GenerateGroupMatches())
		assert.Empty(t, s.GroupMatches())
	})

	t.Run("full round robin", func(t *testing.T) {
		for _, n := range []int{2, 3, 5, 8} {
			s := newTestScheduler(t, n)
			assert.Equal(t, n*(n-1)/2, s.GenerateGroupMatches())
			for _, p := range s.Players() {
				assert.Equal(t, models.DefaultGroupID, p.GroupID)
			}
		}
	})

	t.Run("regeneration replaces queue with fresh ids", func(t *testing.T) {
		s := newTestScheduler(t, 3)
		s.GenerateGroupMatches()
		s.GenerateGroupMatches()

		matches := s.GroupMatches()
		require.Len(t, matches, 3)
		assert.Equal(t, []int{4, 5, 6}, []int{matches[0].ID, matches[1].ID, matches[2].ID})
	})
}

func TestMatchScheduler_AssignGroupsSerpentine(t *testing.T) {
	s := newTestScheduler(t, 6)

	require.ErrorIs(t, s.AssignGroups(0), ErrInvalidGroupCount)
	require.NoError(t, s.AssignGroups(2))

	groups := make(map[int]int)
	for _, p := range s.Players() {
		groups[p.ID] = p.GroupID
	}
	assert.Equal(t, map[int]int{1: 1, 2: 2, 3: 2, 4: 1, 5: 1, 6: 2}, groups)
	assert.Equal(t, 6, s.GenerateGroupMatches())
}

func TestMatchScheduler_KnockoutFlow(t *testing.T) {
	s := newTestScheduler(t, 4)
	s.GenerateGroupMatches()

	group := s.SimulateGroupStage(brackets.PickFirst)
	require.Equal(t, 6, group.Applied)
	assert.Empty(t, s.ScheduleSnapshot())

	qualifiers, err := s.GenerateKnockoutBracket(4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, qualifiers)
	for _, id := range qualifiers {
		assert.Equal(t, models.StatusPlaying, mustPlayer(t, s, id).Status)
	}

	want := []models.ScheduledMatch{
		{MatchID: 1001, Player1ID: 1, Player2ID: 2, Stage: models.StageKnockout},
		{MatchID: 1002, Player1ID: 3, Player2ID: 4, Stage: models.StageKnockout},
	}
	if diff := cmp.Diff(want, s.KnockoutScheduleSnapshot()); diff != "" {
		t.Errorf("KnockoutScheduleSnapshot() mismatch (-want +got):\n%s", diff)
	}

	early, err := s.IngestResult(models.ResultRecord{MatchID: 1003, WinnerID: 1, LoserID: 3})
	assert.Equal(t, IngestSkipped, early)
	assert.ErrorIs(t, err, brackets.ErrBracketMatchNotReady)

	semis := s.IngestResults([]models.ResultRecord{
		{MatchID: 1001, WinnerID: 2, LoserID: 1},
		{MatchID: 1002, WinnerID: 4, LoserID: 3},
	})
	require.Equal(t, 2, semis.Applied)

	assert.Equal(t, models.NoWinner, s.ResolveKnockout(brackets.AwaitReported))
	assert.Equal(t, models.StatusFinalist, mustPlayer(t, s, 2).Status)
	assert.Equal(t, models.StatusFinalist, mustPlayer(t, s, 4).Status)

	final, err := s.IngestResult(models.ResultRecord{MatchID: 1003, WinnerID: 4, LoserID: 2})
	require.NoError(t, err)
	assert.Equal(t, IngestApplied, final)
	assert.Equal(t, models.StatusWinner, mustPlayer(t, s, 4).Status)

	assert.Equal(t, 4, s.ResolveKnockout(brackets.AwaitReported))
	assert.Equal(t, 4, s.Champion())

	winners := 0
	for _, p := range s.Players() {
		switch p.Status {
		case models.StatusWinner:
			winners++
		case models.StatusEliminated:
		default:
			t.Errorf("player %d ended as %s", p.ID, p.Status)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Empty(t, s.KnockoutScheduleSnapshot())
}

func TestMatchScheduler_KnockoutIDsStayAboveGroupIDs(t *testing.T) {
	s := newTestScheduler(t, 46)
	require.Equal(t, 1035, s.GenerateGroupMatches())

	_, err := s.GenerateKnockoutBracket(2)
	require.NoError(t, err)

	levels := s.BracketLevels()
	assert.Equal(t, 2001, levels[0].Nodes[0].MatchID)
}

func TestMatchScheduler_GenerateKnockoutBracketNeedsTwo(t *testing.T) {
	s := newTestScheduler(t, 1)

	_, err := s.GenerateKnockoutBracket(8)

	require.ErrorIs(t, err, brackets.ErrNotEnoughQualifiers)
	assert.False(t, s.HasBracket())
	assert.Nil(t, s.BracketLevels())
	assert.Equal(t, models.NoWinner, s.ResolveKnockout(brackets.PickFirst))
}

func TestMatchScheduler_StandingsAndSchedule(t *testing.T) {
	s := newTestScheduler(t, 3)
	s.GenerateGroupMatches()
	s.IngestResults([]models.ResultRecord{
		{MatchID: 1, WinnerID: 2, LoserID: 1},
		{MatchID: 3, WinnerID: 3, LoserID: 2},
	})

	standings := s.StandingsSnapshot()
	require.Len(t, standings, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{standings[0].PlayerID, standings[1].PlayerID, standings[2].PlayerID})
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, 3, standings[2].Rank)

	schedule := s.ScheduleSnapshot()
	require.Len(t, schedule, 1)
	assert.Equal(t, models.ScheduledMatch{MatchID: 2, Player1ID: 1, Player2ID: 3, Stage: models.StageGroup}, schedule[0])

	assert.Equal(t, []int{1, 2, 3}, []int{s.Players()[0].ID, s.Players()[1].ID, s.Players()[2].ID})
}

func TestMatchScheduler_LoadPlayersSkipsInvalid(t *testing.T) {
	s := NewMatchScheduler(models.DefaultFormat(), testLogger())
	records := seededPlayers(3)
	records = append(records,
		models.PlayerRecord{ID: 2, Name: "Dup", Status: models.StatusRegistered},
		models.PlayerRecord{ID: 0, Name: "Zero", Status: models.StatusRegistered},
		models.PlayerRecord{ID: 9, Name: " ", Status: models.StatusRegistered},
		models.PlayerRecord{ID: 10, Name: "Odd", Status: models.PlayerStatus("Benched")},
	)

	assert.Equal(t, 3, s.LoadPlayers(records))
	assert.Len(t, s.Players(), 3)
}

func TestMatchScheduler_RegisterPlayer(t *testing.T) {
	s := newTestScheduler(t, 2)

	p, err := s.RegisterPlayer("  Mira  ", models.RegistrationEarlyBird, registeredAt.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 3, p.ID)
	assert.Equal(t, "Mira", p.Name)
	assert.Equal(t, 2, p.Priority)
	assert.Equal(t, models.StatusRegistered, p.Status)
	assert.Equal(t, registeredAt, p.RegisteredAt)

	wild, err := s.RegisterPlayer("Zed", models.RegistrationWildcard, registeredAt)
	require.NoError(t, err)
	assert.Equal(t, 1, wild.Priority)

	_, err = s.RegisterPlayer("   ", models.RegistrationNormal, registeredAt)
	assert.ErrorIs(t, err, ErrPlayerNameRequired)
	_, err = s.RegisterPlayer("a,b", models.RegistrationNormal, registeredAt)
	assert.ErrorIs(t, err, ErrPlayerNameInvalid)
}

func TestMatchScheduler_PlayerHistoryAndReset(t *testing.T) {
	s := newTestScheduler(t, 3)
	s.GenerateGroupMatches()
	s.IngestResults([]models.ResultRecord{
		{MatchID: 1, WinnerID: 1, LoserID: 2},
		{MatchID: 3, WinnerID: 3, LoserID: 2},
	})

	history, err := s.PlayerHistory(2)
	require.NoError(t, err)
	want := []models.MatchResult{
		{MatchID: 1, Stage: models.StageGroup, WinnerID: 1, LoserID: 2},
		{MatchID: 3, Stage: models.StageGroup, WinnerID: 3, LoserID: 2},
	}
	if diff := cmp.Diff(want, history); diff != "" {
		t.Errorf("PlayerHistory() mismatch (-want +got):\n%s", diff)
	}

	_, err = s.PlayerHistory(42)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	s.ResetIngestion()
	assert.Zero(t, s.ProcessedCount())
	status, _ := s.IngestResult(models.ResultRecord{MatchID: 1, WinnerID: 1, LoserID: 2})
	assert.Equal(t, IngestDuplicate, status, "a played group match is never applied twice")
	assert.Equal(t, 1, mustPlayer(t, s, 1).Wins)
}

func TestMatchScheduler_SeedLookup(t *testing.T) {
	s := newTestScheduler(t, 4)
	s.GenerateGroupMatches()
	s.SimulateGroupStage(brackets.PickHigherSeed(s.SeedLookup()))

	_, err := s.GenerateKnockoutBracket(4)
	require.NoError(t, err)

	assert.Equal(t, 1, s.ResolveKnockout(brackets.PickHigherSeed(s.SeedLookup())))
}

func countWinners(players []models.Player) []int {
	var winners []int
	for _, p := range players {
		if p.Status == models.StatusWinner {
			winners = append(winners, p.ID)
		}
	}
	return winners
}

func pickSecond(player1ID, player2ID int) int { return player2ID }

func TestMatchScheduler_RebuildAfterChampionCrownsOneWinner(t *testing.T) {
	s := newTestScheduler(t, 4)
	s.GenerateGroupMatches()
	require.Equal(t, 6, s.SimulateGroupStage(brackets.PickFirst).Applied)

	_, err := s.GenerateKnockoutBracket(4)
	require.NoError(t, err)
	require.Equal(t, 1, s.ResolveKnockout(brackets.PickFirst))
	require.Equal(t, []int{1}, countWinners(s.Players()))

	qualifiers, err := s.GenerateKnockoutBracket(4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, qualifiers)
	for _, id := range qualifiers {
		assert.Equal(t, models.StatusPlaying, mustPlayer(t, s, id).Status)
	}
	assert.Equal(t, 1001, s.KnockoutScheduleSnapshot()[0].MatchID)

	assert.Equal(t, 4, s.ResolveKnockout(pickSecond))
	assert.Equal(t, []int{4}, countWinners(s.Players()))
	assert.Equal(t, models.StatusEliminated, mustPlayer(t, s, 1).Status)
}

func TestMatchScheduler_RebuildDiscardsKnockoutResults(t *testing.T) {
	s := newTestScheduler(t, 4)
	s.GenerateGroupMatches()
	s.SimulateGroupStage(brackets.PickFirst)
	_, err := s.GenerateKnockoutBracket(4)
	require.NoError(t, err)

	semis := s.IngestResults([]models.ResultRecord{
		{MatchID: 1001, WinnerID: 1, LoserID: 2},
		{MatchID: 1002, WinnerID: 3, LoserID: 4},
	})
	require.Equal(t, 2, semis.Applied)
	assert.Equal(t, models.NoWinner, s.ResolveKnockout(brackets.AwaitReported))
	require.Equal(t, models.StatusFinalist, mustPlayer(t, s, 1).Status)
	require.Equal(t, 4, mustPlayer(t, s, 1).Wins)
	assert.Equal(t, 2, s.KnockoutResultCount())

	_, err = s.GenerateKnockoutBracket(4)
	require.NoError(t, err)
	assert.Zero(t, s.KnockoutResultCount())
	assert.Equal(t, 6, s.ProcessedCount())
	p1 := mustPlayer(t, s, 1)
	assert.Equal(t, 3, p1.Wins)
	assert.Equal(t, models.StatusPlaying, p1.Status)
	assert.Equal(t, models.StatusPlaying, mustPlayer(t, s, 3).Status)
	history, err := s.PlayerHistory(1)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	status, err := s.IngestResult(models.ResultRecord{MatchID: 1001, WinnerID: 1, LoserID: 2})
	require.NoError(t, err)
	assert.Equal(t, IngestApplied, status)
	p1 = mustPlayer(t, s, 1)
	assert.Equal(t, models.StatusAdvanced, p1.Status)
	assert.Equal(t, 4, p1.Wins)
	assert.Empty(t, countWinners(s.Players()))
}

func TestMatchScheduler_CheckIn(t *testing.T) {
	tests := []struct {
		name    string
		id      int
		at      time.Duration // after registeredAt; player n registered n minutes later
		prepare func(t *testing.T, s *MatchScheduler)
		wantErr error
	}{
		{name: "on time", id: 1, at: 6 * time.Minute},
		{name: "late but inside the window", id: 1, at: 25 * time.Minute},
		{name: "window closed", id: 1, at: 31 * time.Minute, wantErr: ErrCheckInClosed},
		{name: "unknown player", id: 9, at: time.Minute, wantErr: ErrPlayerNotFound},
		{
			name: "already checked in", id: 2, at: 5 * time.Minute,
			prepare: func(t *testing.T, s *MatchScheduler) {
				_, err := s.CheckIn(2, registeredAt.Add(4*time.Minute), DefaultCheckInWindow)
				require.NoError(t, err)
			},
			wantErr: ErrAlreadyCheckedIn,
		},
		{
			name: "already played", id: 1, at: 5 * time.Minute,
			prepare: func(t *testing.T, s *MatchScheduler) {
				s.GenerateGroupMatches()
				_, err := s.IngestResult(models.ResultRecord{MatchID: 1, WinnerID: 1, LoserID: 2})
				require.NoError(t, err)
			},
			wantErr: ErrCheckInNotAllowed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(t, 3)
			if tt.prepare != nil {
				tt.prepare(t, s)
			}
			before, _ := s.Player(tt.id)

			p, err := s.CheckIn(tt.id, registeredAt.Add(tt.at), DefaultCheckInWindow)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				after, _ := s.Player(tt.id)
				assert.Equal(t, before.Status, after.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.StatusPlaying, p.Status)
			assert.Equal(t, models.StatusPlaying, mustPlayer(t, s, tt.id).Status)
		})
	}
}

func TestMatchScheduler_WithdrawAndReplace(t *testing.T) {
	s := newTestScheduler(t, 3)
	withdrawnAt := registeredAt.Add(time.Hour)

	w, err := s.Withdraw(2, withdrawnAt)
	require.NoError(t, err)
	assert.Equal(t, 2, w.ID)
	assert.Equal(t, withdrawnAt, w.WithdrawnAt)
	assert.Len(t, s.Players(), 2)
	assert.Equal(t, []models.Withdrawal{w}, s.Withdrawals())
	_, err = s.Player(2)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, err = s.Withdraw(2, withdrawnAt)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, err = s.Replace(3, "Grace Hopper", models.RegistrationEarlyBird, withdrawnAt)
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)
	_, err = s.Replace(2, "Hopper, Grace", models.RegistrationEarlyBird, withdrawnAt)
	assert.ErrorIs(t, err, ErrPlayerNameInvalid)

	p, err := s.Replace(2, " Grace Hopper ", models.RegistrationEarlyBird, withdrawnAt)
	require.NoError(t, err)
	assert.Equal(t, models.Player{
		ID:           2,
		Name:         "Grace Hopper",
		RegisteredAt: withdrawnAt,
		Status:       models.StatusRegistered,
		Priority:     2,
	}, *p)
	assert.Empty(t, s.Withdrawals())
	assert.Len(t, s.Players(), 3)

	_, err = s.Replace(2, "Someone Else", models.RegistrationNormal, withdrawnAt)
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)
}

func TestMatchScheduler_WithdrawRefusesPlayersWithResults(t *testing.T) {
	s := newTestScheduler(t, 3)
	s.GenerateGroupMatches()
	_, err := s.IngestResult(models.ResultRecord{MatchID: 1, WinnerID: 1, LoserID: 2})
	require.NoError(t, err)

	_, err = s.Withdraw(2, registeredAt)
	assert.ErrorIs(t, err, ErrPlayerHasResults)
	assert.Len(t, s.Players(), 3)

	s.LoadWithdrawals([]models.Withdrawal{{ID: 1, Name: "Taken"}, {ID: 7, Name: "Gone"}})
	assert.Equal(t, []models.Withdrawal{{ID: 7, Name: "Gone"}}, s.Withdrawals())
}
