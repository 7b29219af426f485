package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/rural-health/carepoints/internal/api"
	"github.com/rural-health/carepoints/internal/app/engagement"
	"github.com/rural-health/carepoints/internal/domain"
	"github.com/rural-health/carepoints/internal/health"
	"github.com/rural-health/carepoints/internal/infra/metrics"
	"github.com/rural-health/carepoints/internal/infra/sqlite"
)

// visitorIdle is how long a client may stay silent before its rate-limit
// bucket is dropped.
const visitorIdle = 3 * time.Minute

// Daemon is the carepoints runtime. It wires together all services.
type Daemon struct {
	Config    Config
	DB        *sqlite.DB
	Engine    *engagement.Engine
	Server    *api.Server
	Health    *health.Checker
	Scheduler gocron.Scheduler
	Logger    *slog.Logger

	started bool
	cancel  context.CancelFunc
}

// job is one periodic task run by the scheduler.
type job struct {
	name string
	def  gocron.JobDefinition
	run  func(ctx context.Context) error
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	engCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}

	home := CarepointsHome()
	db, err := sqlite.Open(home)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	eng := engagement.NewEngine(db, engCfg, engagement.WithLogger(logger))

	if cfg.Scoring.SeedBadges {
		n, err := eng.SeedBadges(context.Background())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("seed badges: %w", err)
		}
		if n > 0 {
			logger.Info("seeded default badges", "count", n)
		}
	}

	checker := health.NewChecker(db, home, eng)

	srv := api.NewServer(eng, api.Options{
		CORSOrigins:    cfg.API.CORSOrigins,
		RateLimitRPS:   cfg.API.RateLimitRPS,
		RateLimitBurst: cfg.API.RateLimitBurst,
		Metrics:        cfg.Telemetry.Prometheus,
		Health:         checker,
	})

	d := &Daemon{
		Config: cfg,
		DB:     db,
		Engine: eng,
		Server: srv,
		Health: checker,
		Logger: logger,
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(engCfg.Location))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	for _, j := range d.jobs() {
		_, err := sched.NewJob(j.def, gocron.NewTask(func() {
			d.runJob(context.Background(), j)
		}), gocron.WithName(j.name))
		if err != nil {
			_ = sched.Shutdown()
			db.Close()
			return nil, fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	d.Scheduler = sched

	return d, nil
}

// jobs lists the periodic tasks. Resets fire on cron expressions in the
// scoring timezone so "Monday 00:00" means local midnight.
func (d *Daemon) jobs() []job {
	// Validate has already rejected unparsable or non-positive intervals.
	expireEvery, _ := time.ParseDuration(d.Config.Schedule.ExpireChallenges)

	return []job{
		{
			name: "weekly_reset",
			def:  gocron.CronJob(d.Config.Schedule.WeeklyReset, false),
			run: func(ctx context.Context) error {
				_, err := d.Engine.ResetPeriod(ctx, domain.PeriodWeekly)
				return err
			},
		},
		{
			name: "monthly_reset",
			def:  gocron.CronJob(d.Config.Schedule.MonthlyReset, false),
			run: func(ctx context.Context) error {
				_, err := d.Engine.ResetPeriod(ctx, domain.PeriodMonthly)
				return err
			},
		},
		{
			name: "expire_challenges",
			def:  gocron.DurationJob(expireEvery),
			run: func(ctx context.Context) error {
				_, err := d.Engine.ExpireChallenges(ctx)
				return err
			},
		},
		{
			name: "limiter_cleanup",
			def:  gocron.DurationJob(time.Minute),
			run: func(ctx context.Context) error {
				if n := d.Server.PruneVisitors(visitorIdle); n > 0 {
					d.Logger.Debug("pruned idle rate-limit visitors", "count", n)
				}
				return nil
			},
		},
	}
}

func (d *Daemon) runJob(ctx context.Context, j job) {
	start := time.Now()
	if err := j.run(ctx); err != nil {
		metrics.JobRuns.WithLabelValues(j.name, "error").Inc()
		d.Logger.Error("scheduled job failed", "job", j.name, "error", err)
		return
	}
	metrics.JobRuns.WithLabelValues(j.name, "ok").Inc()
	d.Logger.Debug("scheduled job finished", "job", j.name, "took", time.Since(start))
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Health checker (always runs)
	go d.Health.Run(ctx)

	d.Scheduler.Start()
	d.started = true

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			d.Logger.Info("shutdown signal received")
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			d.Logger.Warn("http shutdown", "error", err)
		}
	}()

	fmt.Printf("carepoints serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}
	d.Logger.Info("server started", "addr", addr, "timezone", d.Config.Scoring.Timezone)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Scheduler != nil && d.started {
		if err := d.Scheduler.Shutdown(); err != nil {
			d.Logger.Warn("scheduler shutdown", "error", err)
		}
		d.started = false
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

// newLogger builds the process logger from the [logging] section.
func newLogger(cfg LoggingConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("logging level %q: %w", cfg.Level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("logging format %q: want text or json", cfg.Format)
	}
}
