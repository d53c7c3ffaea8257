package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Dosada05/tournament-ops/models"
	"github.com/Dosada05/tournament-ops/repositories"
	"github.com/Dosada05/tournament-ops/storage"
)

var ErrPartialR2Config = errors.New("R2 configuration is incomplete: set all R2_* variables or none")

// Config holds every setting of the tournament server and CLI.
type Config struct {
	TournamentName string
	Format         models.Format
	Files          repositories.FilePaths

	ServerPort          int
	DatabaseURL         string
	JWTSecretKey        string
	OrganizerPassHash   string
	CORSAllowedOrigins  []string
	ResultsPollInterval time.Duration
	IncludeKnockout     bool
	OutcomeStrategy     string
	CheckInWindow       time.Duration

	R2 storage.CloudflareR2UploaderConfig
}

// Load reads the configuration from environment variables. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	qualifiers, err := intEnv("QUALIFIER_COUNT", models.DefaultQualifierCount)
	if err != nil {
		return nil, err
	}
	if qualifiers < 2 {
		return nil, fmt.Errorf("QUALIFIER_COUNT must be at least 2, got %d", qualifiers)
	}
	groups, err := intEnv("GROUP_COUNT", 1)
	if err != nil {
		return nil, err
	}
	if groups < 1 {
		return nil, fmt.Errorf("GROUP_COUNT must be positive, got %d", groups)
	}
	legs, err := intEnv("ROUND_ROBIN_LEGS", 1)
	if err != nil {
		return nil, err
	}
	if legs != 1 && legs != 2 {
		return nil, fmt.Errorf("ROUND_ROBIN_LEGS must be 1 or 2, got %d", legs)
	}

	pollInterval, err := durationEnv("RESULTS_POLL_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	checkInWindow, err := durationEnv("CHECK_IN_WINDOW", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	includeKnockout, err := boolEnv("SCHEDULE_INCLUDE_KNOCKOUT", true)
	if err != nil {
		return nil, err
	}

	r2 := storage.CloudflareR2UploaderConfig{
		AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		BucketName:      os.Getenv("R2_BUCKET_NAME"),
		PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}
	if !r2.Empty() && !r2.Complete() {
		return nil, ErrPartialR2Config
	}

	name := stringEnv("TOURNAMENT_NAME", "Tournament")
	cfg := &Config{
		TournamentName: name,
		Format: models.Format{
			Name:           name,
			RoundRobinLegs: legs,
			GroupCount:     groups,
			QualifierCount: qualifiers,
		},
		Files: repositories.FilePaths{
			Dir:         stringEnv("DATA_DIR", "."),
			Players:     stringEnv("PLAYERS_FILE", repositories.DefaultPlayersFile),
			Results:     stringEnv("RESULTS_FILE", repositories.DefaultResultsFile),
			Standings:   stringEnv("STANDINGS_FILE", repositories.DefaultStandingsFile),
			Schedule:    stringEnv("SCHEDULE_FILE", repositories.DefaultScheduleFile),
			Withdrawals: stringEnv("WITHDRAWALS_FILE", repositories.DefaultWithdrawalsFile),
		},
		ServerPort:          port,
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecretKey:        os.Getenv("JWT_SECRET_KEY"),
		OrganizerPassHash:   os.Getenv("ORGANIZER_PASSWORD_HASH"),
		CORSAllowedOrigins:  listEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ResultsPollInterval: pollInterval,
		IncludeKnockout:     includeKnockout,
		OutcomeStrategy:     stringEnv("OUTCOME_STRATEGY", "await"),
		CheckInWindow:       checkInWindow,
		R2:                  r2,
	}
	return cfg, nil
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.JWTSecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}
	return nil
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

func listEnv(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
