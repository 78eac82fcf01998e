// Package daemon runs the long-lived side of binlog: archivers that mirror
// streamed entries into the durable store, scheduled retention, a
// configuration watcher and the metrics endpoint.
package daemon

import (
	"context"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/binlog/internal/backend"
	"git.home.luguber.info/inful/binlog/internal/config"
	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/internal/metrics"
	"git.home.luguber.info/inful/binlog/internal/retry"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

const (
	defaultWatchDebounce = 2 * time.Second
	shutdownTimeout      = 10 * time.Second
)

type archiverHandle struct {
	archiver *Archiver
	cancel   context.CancelFunc
	done     chan struct{}
}

// Daemon owns the stores and background workers for `binlog daemon`.
type Daemon struct {
	configPath    string
	logger        *slog.Logger
	level         *slog.LevelVar
	registry      *prom.Registry
	recorder      *metrics.PrometheusRecorder
	watchDebounce time.Duration

	mu         sync.Mutex
	cfg        *config.Config
	durable    binlog.RangeableStore
	stream     binlog.SubscribeableStore
	ownsStores bool
	archivers  map[string]*archiverHandle
	scheduler  *Scheduler
	retention  *Retention
	http       *HTTPServer
	watcher    *ConfigWatcher
	running    bool
	startTime  time.Time
	runCtx     context.Context
	ready      chan struct{}
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithStores supplies already-open stores. The daemon will not close them.
func WithStores(durable binlog.RangeableStore, stream binlog.SubscribeableStore) Option {
	return func(d *Daemon) {
		d.durable = durable
		d.stream = stream
	}
}

// WithConfigPath enables the file watcher on path.
func WithConfigPath(path string) Option {
	return func(d *Daemon) { d.configPath = path }
}

// WithLogger sets the daemon logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithLevelVar lets reloads change the log level of the handler using v.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(d *Daemon) { d.level = v }
}

// WithRegistry registers daemon metrics on reg instead of a private registry.
func WithRegistry(reg *prom.Registry) Option {
	return func(d *Daemon) {
		if reg != nil {
			d.registry = reg
		}
	}
}

// WithWatchDebounce sets how long the config watcher waits for writes to
// settle before reloading.
func WithWatchDebounce(dur time.Duration) Option {
	return func(d *Daemon) { d.watchDebounce = dur }
}

// New builds a daemon for cfg. Nothing starts until Run.
func New(cfg *config.Config, opts ...Option) *Daemon {
	d := &Daemon{
		cfg:           cfg,
		logger:        slog.Default(),
		registry:      prom.NewRegistry(),
		watchDebounce: defaultWatchDebounce,
		archivers:     make(map[string]*archiverHandle),
		ready:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.registry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	d.recorder = metrics.NewPrometheusRecorder(d.registry)
	return d
}

// Ready is closed once Run has started every component.
func (d *Daemon) Ready() <-chan struct{} { return d.ready }

// GetConfig returns the active configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// MetricsAddr returns the bound metrics address, or "" when disabled.
func (d *Daemon) MetricsAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.http == nil {
		return ""
	}
	return d.http.Addr()
}

// Run starts every component and blocks until ctx is canceled, then shuts
// down in reverse order.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.start(ctx); err != nil {
		d.shutdown()
		return err
	}
	if d.configPath != "" {
		w, err := NewConfigWatcher(d.configPath, d, d.watchDebounce)
		if err == nil {
			if err = w.Start(ctx); err != nil {
				_ = w.Stop()
			}
		}
		if err != nil {
			d.shutdown()
			return errors.WrapError(err, errors.CategoryRuntime, "failed to watch configuration").
				WithContext("path", d.configPath).
				Build()
		}
		d.watcher = w
	}
	close(d.ready)
	<-ctx.Done()
	d.logger.Info("Daemon stopping")
	d.shutdown()
	return nil
}

func (d *Daemon) start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfg := d.cfg
	d.runCtx = ctx
	if d.level != nil {
		d.level.Set(cfg.Logging.Level.SlogLevel())
	}

	if d.durable == nil || d.stream == nil {
		if err := d.openStoresLocked(ctx); err != nil {
			return err
		}
	}

	sched, err := NewScheduler()
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to create scheduler").Build()
	}
	d.scheduler = sched
	if err := d.scheduleRetentionLocked(cfg.Daemon.Retention); err != nil {
		return err
	}
	d.scheduler.Start()

	for _, name := range cfg.Daemon.Archive {
		if err := d.startArchiverLocked(name, cfg.Daemon.Retry); err != nil {
			return err
		}
	}

	if cfg.Daemon.MetricsAddr != "off" {
		srv := newHTTPServer(d)
		if err := srv.Start(cfg.Daemon.MetricsAddr, cfg.Daemon.MaxConnections); err != nil {
			return err
		}
		d.http = srv
	}

	d.running = true
	d.startTime = time.Now()
	d.logger.Info("Daemon started",
		slog.Int("archivers", len(d.archivers)),
		logfields.Addr(cfg.Daemon.MetricsAddr))
	return nil
}

func (d *Daemon) openStoresLocked(ctx context.Context) error {
	deps := backend.Deps{Logger: d.logger, Recorder: d.recorder}
	durable, err := backend.OpenDurable(d.cfg.Durable, deps)
	if err != nil {
		return err
	}
	stream, err := backend.OpenStream(ctx, d.cfg.Stream, d.cfg.Durable.CompressionLevel, deps)
	if err != nil {
		_ = durable.Close()
		return err
	}
	d.durable, d.stream, d.ownsStores = durable, stream, true
	return nil
}

func (d *Daemon) scheduleRetentionLocked(rc config.RetentionConfig) error {
	d.retention = NewRetention(d.durable, rc.MaxAgeMicros, d.recorder, d.logger)
	if _, err := d.scheduler.ScheduleRetention(d.runCtx, rc.Interval.Std(), d.retention); err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to schedule retention").Build()
	}
	return nil
}

func (d *Daemon) startArchiverLocked(name string, rc config.RetryConfig) error {
	a := NewArchiver(name, d.stream, d.durable, retry.FromConfig(rc), d.recorder, d.logger)
	sub, err := a.Subscribe(d.runCtx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(d.runCtx)
	h := &archiverHandle{archiver: a, cancel: cancel, done: make(chan struct{})}
	d.archivers[name] = h
	go func() {
		defer close(h.done)
		_ = a.Run(ctx, sub)
	}()
	return nil
}

func (d *Daemon) stopArchiverLocked(name string) {
	h, ok := d.archivers[name]
	if !ok {
		return
	}
	h.cancel()
	<-h.done
	delete(d.archivers, name)
}

func (d *Daemon) archiveNamesLocked() []string {
	names := make([]string, 0, len(d.archivers))
	for name := range d.archivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RunRetention performs one retention pass immediately.
func (d *Daemon) RunRetention(ctx context.Context) (int64, error) {
	d.mu.Lock()
	r := d.retention
	d.mu.Unlock()
	if r == nil {
		return 0, errors.ClosedError("daemon is not running").Build()
	}
	return r.Run(ctx)
}

// ReloadConfig applies the parts of cfg that can change at runtime: the
// archived names, retention, retry policy and log level. Failed archivers
// are restarted. Store and listener settings need a restart.
func (d *Daemon) ReloadConfig(_ context.Context, cfg *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return errors.ClosedError("daemon is not running").Build()
	}
	old := d.cfg

	if !reflect.DeepEqual(old.Durable, cfg.Durable) || !reflect.DeepEqual(old.Stream, cfg.Stream) {
		d.logger.Warn("Store settings changed; restart the daemon to apply them")
	}
	if old.Daemon.MetricsAddr != cfg.Daemon.MetricsAddr || old.Daemon.MaxConnections != cfg.Daemon.MaxConnections {
		d.logger.Warn("Metrics listener settings changed; restart the daemon to apply them")
	}
	if d.level != nil {
		d.level.Set(cfg.Logging.Level.SlogLevel())
	}

	if old.Daemon.Retention != cfg.Daemon.Retention {
		if err := d.scheduleRetentionLocked(cfg.Daemon.Retention); err != nil {
			return err
		}
	}

	retryChanged := old.Daemon.Retry != cfg.Daemon.Retry
	for _, name := range d.archiveNamesLocked() {
		failed := d.archivers[name].archiver.State() == ArchiverFailed
		if retryChanged || failed || !slices.Contains(cfg.Daemon.Archive, name) {
			d.stopArchiverLocked(name)
		}
	}
	for _, name := range cfg.Daemon.Archive {
		if _, ok := d.archivers[name]; ok {
			continue
		}
		if err := d.startArchiverLocked(name, cfg.Daemon.Retry); err != nil {
			return err
		}
	}

	d.cfg = cfg
	d.logger.Info("Daemon configuration applied", slog.Int("archivers", len(d.archivers)))
	return nil
}

func (d *Daemon) shutdown() {
	// The watcher may be mid-reload holding d.mu; stop it first.
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			d.logger.Warn("Config watcher shutdown", logfields.Error(err))
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	d.running = false
	if d.http != nil {
		if err := d.http.Stop(ctx); err != nil {
			d.logger.Warn("Metrics server shutdown", logfields.Error(err))
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil {
			d.logger.Warn("Scheduler shutdown", logfields.Error(err))
		}
	}
	for _, name := range d.archiveNamesLocked() {
		d.stopArchiverLocked(name)
	}
	if d.ownsStores {
		if d.stream != nil {
			_ = d.stream.Close()
		}
		if d.durable != nil {
			_ = d.durable.Close()
		}
	}
	d.logger.Info("Daemon stopped")
}
