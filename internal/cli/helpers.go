package cli

import (
	"fmt"
	"time"

	"github.com/rural-health/carepoints/internal/daemon"
)

// openDaemon loads config and wires the engine without starting the
// server or scheduler.
func openDaemon() (*daemon.Daemon, error) {
	d, err := daemon.New()
	if err != nil {
		return nil, fmt.Errorf("initialize daemon: %w", err)
	}
	return d, nil
}

// parseWhen accepts RFC 3339 or a bare date. Empty means the zero time.
func parseWhen(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", s)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
