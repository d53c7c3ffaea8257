package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Dosada05/tournament-ops/config"
	"github.com/Dosada05/tournament-ops/db"
	"github.com/Dosada05/tournament-ops/models"
	"github.com/Dosada05/tournament-ops/repositories"
	"github.com/Dosada05/tournament-ops/services"
	"github.com/Dosada05/tournament-ops/utils"
)

func main() {
	app := &cli.App{
		Name:  "tournamentctl",
		Usage: "run tournament operations against the flat files",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log ingestion details to stderr"},
		},
		Commands: []*cli.Command{
			registerCommand(),
			checkInCommand(),
			withdrawCommand(),
			replaceCommand(),
			groupsCommand(),
			simulateCommand(),
			syncCommand(),
			standingsCommand(),
			knockoutCommand(),
			historyCommand(),
			exportCommand(),
			snapshotsCommand(),
			hashPasswordCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadTournament rebuilds the tournament from the files named by the environment.
func loadTournament(c *cli.Context) (*services.TournamentService, error) {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	svc := services.NewTournamentService(services.TournamentConfig{
		Name:            cfg.TournamentName,
		Format:          cfg.Format,
		IncludeKnockout: cfg.IncludeKnockout,
		OutcomeStrategy: cfg.OutcomeStrategy,
		CheckInWindow:   cfg.CheckInWindow,
	}, services.TournamentDeps{
		Files:  repositories.NewFileRepository(cfg.Files, logger),
		Logger: logger,
	})
	if _, err := svc.Bootstrap(c.Context); err != nil {
		return nil, err
	}
	return svc, nil
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "register a player and append it to the players file",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Value: string(models.RegistrationNormal), Usage: "wildcard, earlybird or normal"},
		},
		Action: func(c *cli.Context) error {
			name := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(name) == "" {
				return errors.New("player name is required")
			}
			svc, err := loadTournament(c)
			if err != nil {
				return err
			}
			p, err := svc.RegisterPlayer(c.Context, name, models.RegistrationType(c.String("type")))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "registered player %d %s (priority %d)\n", p.ID, p.Name, p.Priority)
			return nil
		},
	}
}

func checkInCommand() *cli.Command {
	return &cli.Command{
		Name:  "check-in",
		Usage: "confirm a registered player inside the check-in window",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "player", Required: true},
		},
		Action: func(c *cli.Context) error {
			svc, err := loadTournament(c)
			if err != nil {
				return err
			}
			p, err := svc.CheckIn(c.Context, c.Int("player"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "checked in player %d %s\n", p.ID, p.Name)
			return nil
		},
	}
}

func withdrawCommand() *cli.Command {
	return &cli.Command{
		Name:  "withdraw",
		Usage: "withdraw a player, or list withdrawn players when --player is omitted",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "player"},
		},
		Action: func(c *cli.Context) error {
			svc, err := loadTournament(c)
			if err != nil {
				return err
			}
			if c.Int("player") > 0 {
				w, err := svc.Withdraw(c.Context, c.Int("player"))
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "withdrew player %d %s\n", w.ID, w.Name)
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRIORITY\tWITHDRAWN AT")
			for _, w := range svc.Withdrawals() {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", w.ID, w.Name, w.Priority, w.WithdrawnAt.Format(models.RegistrationTimeLayout))
			}
			return tw.Flush()
		},
	}
}

func replaceCommand() *cli.Command {
	return &cli.Command{
		Name:      "replace",
		Usage:     "register a new player in the slot of a withdrawn one",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "player", Required: true, Usage: "id of the withdrawn player"},
			&cli.StringFlag{Name: "type", Value: string(models.RegistrationNormal), Usage: "wildcard, earlybird or normal"},
		},
		Action: func(c *cli.Context) error {
			name := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(name) == "" {
				return errors.New("player name is required")
			}
			svc, err := loadTournament(c)
			if err != nil {
				return err
			}
			p, err := svc.Replace(c.Context, c.Int("player"), name, models.RegistrationType(c.String("type")))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "player %d is now %s (priority %d)\n", p.ID, p.Name, p.Priority)
			return nil
		},
	}
}

func groupsCommand() *cli.Command {
	return &cli.Command{
		Name:  "groups",
		Usage: "generate the group stage and print its matches",
		Action: func(c *cli.Context) error {
			svc, err := loadTournament(c)
			if err != nil {
				return err
			}
			if _, err := svc.GenerateGroups(c.Context); err != nil && !errors.Is(err, services.ErrGroupStageStarted) {
				return err
			}
			return printSchedule(c.App.Writer, svc.Schedule())
		},
	}
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "decide every open group match with a strategy (not written to the results file)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "strategy", Value: "first", Usage: "first or seed"},
		},
		Action: func(c *cli.Context) error {
			svc, err := loadTournament(c)
			if err != nil {
				return err
			}
			report, err := svc.SimulateGroupStage(c.Context, c.String("strategy"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "simulated %d matches\n", report.Applied)
			return printStandings(c.App.Writer, svc.Standings())
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "ingest the results file and rewrite the standings and schedule files",
		Action: func(c *cli.Context) error {
			svc, err := loadTournament(c)
			if err != nil {
				return err
			}
			report, err := svc.SyncResults(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "applied %d, duplicates %d, skipped %d\n",
				report.Applied, report.Duplicates, len(report.Skipped))
			for _, s := range report.Skipped {
				fmt.Fprintf(c.App.Writer, "  %s: %s\n", repositories.FormatResultRecord(s.Record), s.Reason)
			}
			return nil
		},
	}
}

func standingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "standings",
		Usage: "print the current standings",
		Action: func(c *cli.Context) error {
			svc, err := loadTournament(c)
			if err != nil {
				return err
			}
			return printStandings(c.App.Writer, svc.Standings())
		},
	}
}

func knockoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "knockout",
		Usage: "build the knockout bracket from the ranking and resolve it",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "qualifiers", Usage: "number of qualifiers (default from QUALIFIER_COUNT)"},
			&cli.StringFlag{Name: "strategy", Value: "await", Usage: "await, first or seed"},
		},
		Action: func(c *cli.Context) error {
			svc, err := loadTournament(c)
			if err != nil {
				return err
			}
			if _, err := svc.GenerateKnockout(c.Context, c.Int("qualifiers")); err != nil {
				return err
			}
			champion, err := svc.ResolveKnockout(c.Context, c.String("strategy"))
			if err != nil {
				return err
			}
			printBracket(c.App.Writer, svc.Bracket())
			if champion != models.NoWinner {
				fmt.Fprintf(c.App.Writer, "champion: %d\n", champion)
			}
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "print the applied results of one player",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "player", Required: true},
		},
		Action: func(c *cli.Context) error {
			svc, err := loadTournament(c)
			if err != nil {
				return err
			}
			history, err := svc.PlayerHistory(c.Int("player"))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MATCH\tSTAGE\tWINNER\tLOSER")
			for _, r := range history {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", r.MatchID, r.Stage, r.WinnerID, r.LoserID)
			}
			return tw.Flush()
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write standings and schedule to a spreadsheet",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: "standings.xlsx"},
		},
		Action: func(c *cli.Context) error {
			svc, err := loadTournament(c)
			if err != nil {
				return err
			}
			f, err := os.Create(c.String("out"))
			if err != nil {
				return err
			}
			if err := svc.ExportXLSX(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "wrote %s\n", c.String("out"))
			return nil
		},
	}
}

// withSnapshots opens the standings snapshot store named by DATABASE_URL.
func withSnapshots(c *cli.Context, fn func(repo repositories.StandingsSnapshotRepository, tournament string) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	conn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	repo := repositories.NewPostgresStandingsSnapshotRepository(conn)
	if err := repo.EnsureSchema(c.Context); err != nil {
		return err
	}
	return fn(repo, cfg.TournamentName)
}

func snapshotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshots",
		Usage: "inspect the standings snapshots published to Postgres",
		Subcommands: []*cli.Command{
			{
				Name:  "latest",
				Usage: "print the most recent snapshot",
				Action: func(c *cli.Context) error {
					return withSnapshots(c, func(repo repositories.StandingsSnapshotRepository, tournament string) error {
						snapshot, err := repo.Latest(c.Context, tournament)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "snapshot %d taken %s\n", snapshot.ID, snapshot.TakenAt.Format(time.RFC3339))
						return printStandings(c.App.Writer, snapshot.Standings)
					})
				},
			},
			{
				Name:  "purge",
				Usage: "delete every snapshot of the tournament",
				Action: func(c *cli.Context) error {
					return withSnapshots(c, func(repo repositories.StandingsSnapshotRepository, tournament string) error {
						if err := repo.DeleteByTournament(c.Context, tournament); err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "deleted snapshots of %s\n", tournament)
						return nil
					})
				},
			},
		},
	}
}

func hashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-password",
		Usage:     "print a bcrypt hash for ORGANIZER_PASSWORD_HASH",
		ArgsUsage: "<password>",
		Action: func(c *cli.Context) error {
			hash, err := utils.HashPassword(c.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, hash)
			return nil
		},
	}
}

func printStandings(w io.Writer, standings []models.Standing) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tNAME\tSTATUS\tW\tL\tGROUP")
	for _, s := range standings {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\t%d\t%d\n", s.Rank, s.PlayerID, s.Name, s.Status, s.Wins, s.Losses, s.GroupID)
	}
	return tw.Flush()
}

func printSchedule(w io.Writer, schedule []models.ScheduledMatch) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MATCH\tPLAYER 1\tPLAYER 2\tSTAGE")
	for _, m := range schedule {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", m.MatchID, m.Player1ID, m.Player2ID, m.Stage)
	}
	return tw.Flush()
}

func printBracket(w io.Writer, levels []models.BracketLevel) {
	for _, level := range levels {
		label := fmt.Sprintf("Round %d", level.Round)
		if level.InitialPlayers {
			label = "Qualifiers"
		}
		fmt.Fprintf(w, "%s:\n", label)
		for _, n := range level.Nodes {
			if n.MatchID == models.LeafMatchID {
				fmt.Fprintf(w, "  player %d\n", n.WinnerID)
				continue
			}
			fmt.Fprintf(w, "  match %d: %d vs %d -> %d\n", n.MatchID, n.Player1ID, n.Player2ID, n.WinnerID)
		}
	}
}
