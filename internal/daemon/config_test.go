package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	_ "time/tzdata"

	"github.com/rural-health/carepoints/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8420 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8420)
	}
	if cfg.Scoring.ActivityPoints["symptom_logged"] != 10 {
		t.Errorf("symptom_logged = %d, want 10", cfg.Scoring.ActivityPoints["symptom_logged"])
	}
	if cfg.Schedule.WeeklyReset != "0 0 * * 1" {
		t.Errorf("Schedule.WeeklyReset = %q", cfg.Schedule.WeeklyReset)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfigFile() error: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Error("missing file should yield defaults")
	}
}

func TestLoadConfigFile_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[api]
port = 9000

[scoring]
timezone = "America/Chicago"
activity_points = { symptom_logged = 15, daily_checkin = 5, medication_taken = 3 }

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error: %v", err)
	}
	if cfg.API.Port != 9000 || cfg.API.Host != "127.0.0.1" {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging.format = %q", cfg.Logging.Format)
	}

	ec, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig() error: %v", err)
	}
	if ec.ActivityPoints[domain.ActivitySymptomLogged] != 15 || ec.ActivityPoints["medication_taken"] != 3 {
		t.Errorf("activity points = %v", ec.ActivityPoints)
	}
	if ec.Location.String() != "America/Chicago" {
		t.Errorf("location = %s", ec.Location)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Port = 0
	cfg.Scoring.Timezone = "Nowhere/Special"
	cfg.Scoring.ActivityPoints["daily_checkin"] = -1
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"api.port", "scoring.timezone", "daily_checkin", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_Schedule(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty interval", func(c *Config) { c.Schedule.ExpireChallenges = "" }, "schedule.expire_challenges"},
		{"zero interval", func(c *Config) { c.Schedule.ExpireChallenges = "0s" }, "schedule.expire_challenges"},
		{"negative interval", func(c *Config) { c.Schedule.ExpireChallenges = "-1h" }, "schedule.expire_challenges"},
		{"bad weekly cron", func(c *Config) { c.Schedule.WeeklyReset = "every monday" }, "schedule.weekly_reset"},
		{"bad monthly cron", func(c *Config) { c.Schedule.MonthlyReset = "0 0 32 * *" }, "schedule.monthly_reset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.want)
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestCarepointsHome_Env(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CAREPOINTS_HOME", dir)
	if got := CarepointsHome(); got != dir {
		t.Errorf("CarepointsHome() = %q, want %q", got, dir)
	}
}
