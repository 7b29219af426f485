// Package daemon manages the carepoints daemon lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"

	"github.com/rural-health/carepoints/internal/app/engagement"
	"github.com/rural-health/carepoints/internal/domain"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Scoring   ScoringConfig   `toml:"scoring"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	RateLimitRPS   float64  `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
}

// ScoringConfig controls the point table and calendar.
type ScoringConfig struct {
	Timezone         string           `toml:"timezone"`
	ActivityPoints   map[string]int64 `toml:"activity_points"`
	StreakActivities []string         `toml:"streak_activities"`
	SeedBadges       bool             `toml:"seed_badges"`
}

// ScheduleConfig holds cron expressions for period resets and a duration
// for the challenge expiry sweep.
type ScheduleConfig struct {
	WeeklyReset      string `toml:"weekly_reset"`
	MonthlyReset     string `toml:"monthly_reset"`
	ExpireChallenges string `toml:"expire_challenges"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text | json
}

// TelemetryConfig controls metrics export.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8420,
			CORSOrigins:    []string{"*"},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Scoring: ScoringConfig{
			Timezone: "UTC",
			ActivityPoints: map[string]int64{
				string(domain.ActivitySymptomLogged): 10,
				string(domain.ActivityDailyCheckin):  5,
			},
			StreakActivities: []string{
				string(domain.ActivitySymptomLogged),
				string(domain.ActivityDailyCheckin),
			},
			SeedBadges: true,
		},
		Schedule: ScheduleConfig{
			WeeklyReset:      "0 0 * * 1",
			MonthlyReset:     "0 0 1 * *",
			ExpireChallenges: "1h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from $CAREPOINTS_HOME/config.toml, falling back
// to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFile(filepath.Join(carepointsHome(), "config.toml"))
}

// LoadConfigFile decodes path over the defaults. A missing file is not an error.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $CAREPOINTS_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(carepointsHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Validate reports every problem in cfg at once.
func (c Config) Validate() error {
	var errs []error
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if c.API.RateLimitRPS < 0 || c.API.RateLimitBurst < 0 {
		errs = append(errs, errors.New("api rate limits must not be negative"))
	}
	if _, err := time.LoadLocation(c.Scoring.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scoring.timezone: %w", err))
	}
	if len(c.Scoring.ActivityPoints) == 0 {
		errs = append(errs, errors.New("scoring.activity_points is empty"))
	}
	for name, pts := range c.Scoring.ActivityPoints {
		if pts < 0 {
			errs = append(errs, fmt.Errorf("scoring.activity_points.%s: %d is negative", name, pts))
		}
	}
	for _, name := range c.Scoring.StreakActivities {
		if _, ok := c.Scoring.ActivityPoints[name]; !ok {
			errs = append(errs, fmt.Errorf("scoring.streak_activities: %q has no point value", name))
		}
	}
	if every, err := time.ParseDuration(c.Schedule.ExpireChallenges); err != nil {
		errs = append(errs, fmt.Errorf("schedule.expire_challenges: %w", err))
	} else if every <= 0 {
		errs = append(errs, fmt.Errorf("schedule.expire_challenges: %s is not positive", every))
	}
	if _, err := cron.ParseStandard(c.Schedule.WeeklyReset); err != nil {
		errs = append(errs, fmt.Errorf("schedule.weekly_reset: %w", err))
	}
	if _, err := cron.ParseStandard(c.Schedule.MonthlyReset); err != nil {
		errs = append(errs, fmt.Errorf("schedule.monthly_reset: %w", err))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// EngineConfig converts the scoring section into engine settings.
func (c Config) EngineConfig() (engagement.Config, error) {
	loc, err := time.LoadLocation(c.Scoring.Timezone)
	if err != nil {
		return engagement.Config{}, fmt.Errorf("scoring.timezone: %w", err)
	}
	cfg := engagement.Config{
		ActivityPoints: make(map[domain.ActivityType]int64, len(c.Scoring.ActivityPoints)),
		Location:       loc,
	}
	for name, pts := range c.Scoring.ActivityPoints {
		cfg.ActivityPoints[domain.ActivityType(name)] = pts
	}
	for _, name := range c.Scoring.StreakActivities {
		cfg.StreakActivities = append(cfg.StreakActivities, domain.ActivityType(name))
	}
	return cfg, nil
}

// carepointsHome returns the carepoints data directory.
func carepointsHome() string {
	if env := os.Getenv("CAREPOINTS_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".carepoints")
}

// CarepointsHome is exported for use by other packages.
func CarepointsHome() string {
	return carepointsHome()
}
