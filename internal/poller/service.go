package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"netpulse/internal/config"
	"netpulse/internal/history"
	"netpulse/internal/probe"
	"netpulse/internal/probe/httpprobe"
	"netpulse/internal/probe/speedtestprobe"
	"netpulse/internal/repeat"
	logx "netpulse/pkg/logx"
)

var ErrUnknownProbe = errors.New("unknown probe")

// ProbeStatus is a read-only snapshot of one runner.
type ProbeStatus struct {
	Name  string
	Last  *probe.Sample // nil until the first successful cycle
	Every time.Duration
}

type runnerEntry struct {
	probe  probe.Probe
	runner *repeat.Runner[*probe.Sample]
	every  time.Duration
}

// Service drives all configured probes. New/Apply/Start/Stop follow the
// usual service lifecycle; Apply rebuilds runners when the probe set or
// report schedule changes.
type Service struct {
	log   logx.Logger
	store history.Store
	clock repeat.Clock

	mu      sync.Mutex
	cfg     *config.Config
	entries map[string]*runnerEntry
	cron    *cron.Cron

	runCtx    context.Context
	runCancel context.CancelFunc
	// genCancel cancels the current runner generation's context; in-flight
	// cycles observe it and halt instead of re-arming after a teardown.
	genCancel context.CancelFunc
	kickWG    sync.WaitGroup

	// failLog throttles warn logs for swallowed probe failures so a dead
	// target cannot flood the log at poll cadence.
	failLog *rate.Limiter
}

// Option customizes the Service.
type Option func(*Service)

// WithClock injects the runners' scheduling facility (tests use a fake).
func WithClock(c repeat.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func New(cfg *config.Config, store history.Store, log logx.Logger, opts ...Option) *Service {
	s := &Service{
		log:     log,
		store:   store,
		clock:   repeat.WallClock(),
		cfg:     cfg,
		entries: map[string]*runnerEntry{},
		failLog: rate.NewLimiter(rate.Every(time.Minute), 3),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start builds the runners and kicks each probe's first cycle on its own
// goroutine; after that the cadence self-sustains on timer firings.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx != nil {
		return nil // already running
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	if err := s.rebuildLocked(); err != nil {
		s.runCancel()
		s.runCtx, s.runCancel = nil, nil
		return err
	}
	s.log.Info("poller started", logx.Int("probes", len(s.entries)))
	return nil
}

// Stop cancels every pending firing and the report scheduler. In-flight
// cycles are not interrupted beyond context cancellation; Stop waits for the
// initial kicks best-effort until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.runCtx == nil {
		s.mu.Unlock()
		return
	}
	cancel := s.runCancel
	s.runCtx, s.runCancel = nil, nil
	s.teardownLocked()
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.kickWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.log.Info("poller stopped")
}

// haltErr reports whether err is just the shutdown/teardown context.
func haltErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Apply swaps in a new config. When running, every runner is cancelled and
// rebuilt; a runner whose cadence had halted on an unexpected failure is
// revived by this. If the new probe set cannot be built the previous config
// is restored, so a bad reload never leaves the daemon running nothing.
func (s *Service) Apply(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg
	s.cfg = cfg
	if s.runCtx == nil {
		return nil
	}
	s.teardownLocked()
	err := s.rebuildLocked()
	if err == nil {
		return nil
	}

	// Roll back whatever partial state the failed rebuild left behind.
	s.teardownLocked()
	s.cfg = prev
	if rbErr := s.rebuildLocked(); rbErr != nil {
		s.log.Error("config rollback failed", logx.Err(rbErr))
	} else {
		s.log.Warn("new config rejected at build; previous probe set restored", logx.Err(err))
	}
	return err
}

// Reset forces an out-of-cycle run of one probe right now and re-establishes
// its cadence from this point.
func (s *Service) Reset(ctx context.Context, name string) (*probe.Sample, bool, error) {
	s.mu.Lock()
	e := s.entries[name]
	s.mu.Unlock()
	if e == nil {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownProbe, name)
	}
	return e.runner.Reset(ctx)
}

// Snapshot reports each probe's last successful sample.
func (s *Service) Snapshot() []ProbeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProbeStatus, 0, len(s.entries))
	for name, e := range s.entries {
		st := ProbeStatus{Name: name, Every: e.every}
		if last, ok := e.runner.LastResult(); ok {
			st.Last = last
		}
		out = append(out, st)
	}
	return out
}

// rebuildLocked constructs runners and the report scheduler from s.cfg and
// kicks first cycles. Caller holds s.mu and s.runCtx is set.
func (s *Service) rebuildLocked() error {
	cfg := s.cfg
	genCtx, genCancel := context.WithCancel(s.runCtx)
	s.genCancel = genCancel
	runCtx := genCtx

	for _, pc := range cfg.Probes {
		p, err := buildProbe(pc)
		if err != nil {
			return err
		}
		every, err := pc.Interval()
		if err != nil {
			return err
		}
		name := p.Name()
		plog := s.log.With(logx.String("probe", name))

		r, err := repeat.New(
			s.callbackFor(p, plog),
			every,
			repeat.WithClock[*probe.Sample](s.clock),
			repeat.WithTransient[*probe.Sample](probe.IsTransient),
			repeat.WithLogger[*probe.Sample](plog),
			repeat.WithOnError[*probe.Sample](func(err error) {
				if haltErr(err) {
					return
				}
				plog.Error("probe cadence halted; reload config or restart to resume", logx.Err(err))
			}),
		)
		if err != nil {
			return fmt.Errorf("probe %s: %w", name, err)
		}
		s.entries[name] = &runnerEntry{probe: p, runner: r, every: every}

		// First cycle is explicit and runs off the caller's goroutine so a
		// slow measurement doesn't block startup.
		s.kickWG.Add(1)
		go func() {
			defer s.kickWG.Done()
			defer func() {
				if rec := recover(); rec != nil {
					plog.Error("panic in probe kick",
						logx.Any("panic", rec), logx.Stack(string(debug.Stack())))
				}
			}()
			if _, _, err := r.RunOnce(runCtx); err != nil && !haltErr(err) {
				plog.Error("initial cycle failed; cadence not started", logx.Err(err))
			}
		}()
		plog.Info("probe scheduled", logx.Duration("every", every))
	}

	return s.startCronLocked()
}

// teardownLocked cancels all runners and stops the report scheduler.
// Cancelling the generation context makes in-flight cycles fail with a
// context error, which the runner does not reschedule.
func (s *Service) teardownLocked() {
	for _, e := range s.entries {
		e.runner.Cancel()
	}
	s.entries = map[string]*runnerEntry{}
	if s.genCancel != nil {
		s.genCancel()
		s.genCancel = nil
	}
	if s.cron != nil {
		// Don't wait for running jobs here: report() takes s.mu too.
		s.cron.Stop()
		s.cron = nil
	}
}

func (s *Service) startCronLocked() error {
	cfg := s.cfg
	c := cron.New()
	added := false

	if cfg.Report.Enabled {
		spec := strings.TrimSpace(cfg.Report.Schedule)
		if spec == "" {
			spec = config.DefaultReportSchedule
		}
		if _, err := c.AddFunc(spec, func() { s.report(context.Background()) }); err != nil {
			return fmt.Errorf("report schedule: %w", err)
		}
		added = true
	}
	if s.store != nil {
		if _, err := c.AddFunc("@daily", func() { s.prune(context.Background()) }); err != nil {
			return fmt.Errorf("prune schedule: %w", err)
		}
		added = true
	}

	if added {
		c.Start()
		s.cron = c
	}
	return nil
}

// callbackFor wraps one probe into the runner callback: measure, log,
// persist. Persistence failures are logged but never halt the cadence.
func (s *Service) callbackFor(p probe.Probe, plog logx.Logger) repeat.Callback[*probe.Sample] {
	return func(ctx context.Context) (*probe.Sample, error) {
		sm, err := p.Run(ctx)
		if err != nil {
			// Teardown in progress: surface the context error so the runner
			// halts instead of swallowing it as a transient probe failure.
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			if probe.IsTransient(err) && s.failLog.Allow() {
				plog.Warn("probe failed; retrying on cadence", logx.Err(err))
			}
			return nil, err
		}

		plog.Info("sample",
			logx.String("summary", sm.Summary),
			logx.Duration("took", sm.Took),
		)
		if s.store != nil {
			if err := s.store.AppendSample(ctx, sm); err != nil {
				plog.Error("history append failed", logx.Err(err))
			}
		}
		return sm, nil
	}
}

func (s *Service) prune(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := s.store.Prune(ctx)
	if err != nil {
		s.log.Warn("history prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("history pruned", logx.Int64("removed", n))
	}
}

func buildProbe(pc config.ProbeConfig) (probe.Probe, error) {
	timeout, err := config.ParseDurationField("timeout", pc.Timeout)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(pc.Type)) {
	case "speedtest":
		return speedtestprobe.New(speedtestprobe.Config{
			Name:           pc.Name,
			Timeout:        timeout,
			ServerCount:    pc.ServerCount,
			MaxConnections: pc.MaxConnections,
			SavingMode:     pc.SavingMode,
		})
	case "http":
		return httpprobe.New(httpprobe.Config{
			Name:    pc.Name,
			URL:     pc.URL,
			Timeout: timeout,
		})
	default:
		return nil, fmt.Errorf("unknown probe type %q", pc.Type)
	}
}
