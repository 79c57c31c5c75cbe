package core

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/foreseon/IntelXScan/internal/baseline"
	"github.com/foreseon/IntelXScan/internal/config"
	"github.com/foreseon/IntelXScan/internal/fetcher"
	"github.com/foreseon/IntelXScan/internal/intelx"
	"github.com/foreseon/IntelXScan/internal/logging"
	"github.com/foreseon/IntelXScan/internal/push"
	"github.com/foreseon/IntelXScan/internal/secrets"
	"github.com/foreseon/IntelXScan/internal/source"
)

// Summary aggregates one pass over the monitored emails.
type Summary struct {
	RunID    string
	Started  time.Time
	Elapsed  time.Duration
	Outcomes []Outcome
}

func (s Summary) Failed() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}

func (s Summary) NewRecords() int {
	n := 0
	for _, o := range s.Outcomes {
		n += o.New
	}
	return n
}

// Runner processes every monitored email once per RunOnce call.
type Runner struct {
	source   source.EmailSource
	pipeline *Pipeline
	store    baseline.Store
	delay    time.Duration
	logger   *logging.Logger
}

func NewRunner(src source.EmailSource, pipeline *Pipeline, store baseline.Store, delay time.Duration, logger *logging.Logger) *Runner {
	return &Runner{source: src, pipeline: pipeline, store: store, delay: delay, logger: logger}
}

// ForEmails returns a runner over a fixed list with no inter-email delay.
func (r *Runner) ForEmails(emails ...string) *Runner {
	cp := *r
	cp.source = source.Static(emails)
	cp.delay = 0
	return &cp
}

// RunOnce processes emails sequentially, waiting r.delay between searches.
// Only a failure to list emails or take the store lock is returned as an
// error; per-email failures are reported in the Summary.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.NewString(), Started: time.Now()}
	log := r.logger.With(logging.F("run_id", sum.RunID))

	emails, err := r.source.Emails(ctx)
	if err != nil {
		log.Error("load emails failed", logging.F("err", err))
		return sum, fmt.Errorf("load emails: %w", err)
	}
	if len(emails) == 0 {
		log.Warn("no monitored emails")
		return sum, nil
	}

	if locker, ok := r.store.(baseline.Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			log.Error("baseline lock failed", logging.F("err", err))
			return sum, err
		}
		defer func() {
			if err := unlock(); err != nil {
				log.Warn("baseline unlock failed", logging.F("err", err))
			}
		}()
	}

	limit := rate.Inf
	if r.delay > 0 {
		limit = rate.Every(r.delay)
	}
	pacer := rate.NewLimiter(limit, 1)

	log.Info("run started", logging.F("emails", len(emails)))
	pipeline := *r.pipeline
	pipeline.logger = log
	var stopErr error
	for _, email := range emails {
		if stopErr = pacer.Wait(ctx); stopErr != nil {
			break
		}
		sum.Outcomes = append(sum.Outcomes, pipeline.Process(ctx, email))
	}
	sum.Elapsed = time.Since(sum.Started)
	log.Info("run done",
		logging.F("processed", len(sum.Outcomes)),
		logging.F("new", sum.NewRecords()),
		logging.F("failed", sum.Failed()),
		logging.F("elapsed_ms", sum.Elapsed.Milliseconds()))
	if stopErr != nil {
		return sum, stopErr
	}
	return sum, ctx.Err()
}

func (r *Runner) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

// Build wires every collaborator from cfg.
func Build(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Runner, error) {
	src, err := source.New(ctx, cfg.Source)
	if err != nil {
		return nil, err
	}
	return BuildWithSource(cfg, src, logger)
}

// BuildWithSource wires everything from cfg except the email source.
func BuildWithSource(cfg config.Config, src source.EmailSource, logger *logging.Logger) (*Runner, error) {
	apiKey, err := secrets.Resolve("intelx.api_key", cfg.IntelX.APIKey, cfg.IntelX.KeyringAccount)
	if err != nil {
		return nil, err
	}
	var slackToken string
	if strings.ToLower(cfg.Notify.Provider) == "slack" {
		slackToken, err = secrets.Resolve("slack.token", cfg.Slack.Token, cfg.Slack.KeyringAccount)
		if err != nil {
			return nil, err
		}
	}
	notifier, err := push.NewNotifier(cfg, slackToken)
	if err != nil {
		return nil, err
	}
	store, err := baseline.New(cfg.Storage, cfg.Redis)
	if err != nil {
		return nil, err
	}
	client := intelx.New(cfg.IntelX.BaseURL, apiKey, cfg.IntelX.Limit,
		fetcher.New(time.Duration(cfg.IntelX.TimeoutMS)*time.Millisecond))
	pipeline := NewPipeline(client, store, notifier, cfg.Parser.Fields, cfg.Notify.Template, logger)
	delay := time.Duration(cfg.Runtime.EmailDelayMS) * time.Millisecond
	return NewRunner(src, pipeline, store, delay, logger), nil
}

// Manager owns the config file and rebuilds the runner when it changes.
type Manager struct {
	cfgPath  string
	logger   *logging.Logger
	reloaded chan config.Config
}

func NewManager(cfgPath string, logger *logging.Logger) *Manager {
	return &Manager{cfgPath: cfgPath, logger: logger, reloaded: make(chan config.Config, 1)}
}

// Load reads the config and applies its logging settings.
func (m *Manager) Load() (config.Config, error) {
	cfg, err := config.Load(m.cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	m.applyRuntime(cfg)
	return cfg, nil
}

// RunOnce performs a single pass and releases every resource.
func (m *Manager) RunOnce(ctx context.Context) (Summary, error) {
	return m.run(ctx, nil)
}

// Check processes the given emails only, without the inter-email delay.
func (m *Manager) Check(ctx context.Context, emails ...string) (Summary, error) {
	return m.run(ctx, emails)
}

func (m *Manager) run(ctx context.Context, emails []string) (Summary, error) {
	cfg, err := m.Load()
	if err != nil {
		return Summary{}, err
	}
	var runner *Runner
	if len(emails) > 0 {
		runner, err = BuildWithSource(cfg, source.Static(emails), m.logger)
	} else {
		runner, err = Build(ctx, cfg, m.logger)
	}
	if err != nil {
		return Summary{}, err
	}
	defer runner.Close()
	if len(emails) > 0 {
		runner = runner.ForEmails(emails...)
	}
	return runner.RunOnce(ctx)
}

// Watch runs a pass immediately and then every watch interval until ctx is
// done. SIGHUP or the reload timer re-reads the config; the new settings
// take effect before the next pass.
func (m *Manager) Watch(ctx context.Context) error {
	cfg, err := m.Load()
	if err != nil {
		return err
	}
	runner, err := Build(ctx, cfg, m.logger)
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()

	m.handleSignals(ctx)
	m.handleReload(ctx, cfg.Runtime.ReloadIntervalSeconds)

	interval := watchInterval(cfg)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.pass(ctx, runner)
	for {
		select {
		case <-ctx.Done():
			return nil
		case next := <-m.reloaded:
			rebuilt, err := Build(ctx, next, m.logger)
			if err != nil {
				m.logger.Error("reload build failed", logging.F("err", err))
				continue
			}
			_ = runner.Close()
			runner = rebuilt
			if iv := watchInterval(next); iv != interval {
				interval = iv
				ticker.Reset(interval)
			}
			m.logger.Info("config reloaded", logging.F("interval_s", int(interval.Seconds())))
		case <-ticker.C:
			m.pass(ctx, runner)
		}
	}
}

func (m *Manager) pass(ctx context.Context, runner *Runner) {
	if _, err := runner.RunOnce(ctx); err != nil && ctx.Err() == nil {
		m.logger.Error("run failed", logging.F("err", err))
	}
}

func watchInterval(cfg config.Config) time.Duration {
	return time.Duration(cfg.Runtime.WatchIntervalSeconds) * time.Second
}

func (m *Manager) handleSignals(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				m.reload("signal")
			}
		}
	}()
}

func (m *Manager) handleReload(ctx context.Context, interval int) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Duration(interval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.reload("timer")
			}
		}
	}()
}

// reload validates the file and hands it to the watch loop, replacing any
// reload that has not been picked up yet.
func (m *Manager) reload(reason string) {
	cfg, err := m.Load()
	if err != nil {
		m.logger.Error("reload failed", logging.F("reason", reason), logging.F("err", err))
		return
	}
	select {
	case <-m.reloaded:
	default:
	}
	select {
	case m.reloaded <- cfg:
	default:
	}
}

func (m *Manager) applyRuntime(cfg config.Config) {
	m.logger.SetJSON(cfg.Logging.JSON)
	m.logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
}
