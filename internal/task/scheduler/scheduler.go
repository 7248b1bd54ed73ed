package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "redditcord/pkg/logx"
)

// ErrOverlapSkip is returned by a run that found the previous one still going.
var ErrOverlapSkip = errors.New("job skipped: previous run still in progress")

var ErrUnknownJob = errors.New("unknown job")

type Job func(ctx context.Context) error

type entry struct {
	name    string
	spec    ParsedSpec
	timeout time.Duration
	job     Job
	id      cron.EntryID

	running atomic.Bool
	runs    atomic.Uint64
	skips   atomic.Uint64
	fails   atomic.Uint64

	mu      sync.Mutex
	lastErr string
	lastRun time.Time
}

// JobInfo is a point-in-time view of a registered job.
type JobInfo struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
	Running bool
	Runs    uint64
	Skips   uint64
	Fails   uint64
	LastErr string
}

type Service struct {
	log logx.Logger
	loc *time.Location

	mu     sync.Mutex
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	jobs   map[string]*entry
}

// New returns a stopped scheduler. A nil loc means time.Local.
func New(log logx.Logger, loc *time.Location) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{log: log, loc: loc, jobs: map[string]*entry{}}
}

// Add registers job under name, replacing any job with the same name.
// timeout bounds each run; 0 disables it.
func (s *Service) Add(name, schedule string, timeout time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	ps, err := Validate(schedule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.jobs[name]; ok && s.c != nil {
		s.c.Remove(old.id)
	}
	e := &entry{name: name, spec: ps, timeout: timeout, job: job}
	s.jobs[name] = e
	if s.c != nil {
		if err := s.registerLocked(e); err != nil {
			delete(s.jobs, name)
			return err
		}
	}
	s.log.Debug("job registered", logx.String("name", name), logx.String("spec", ps.String()), logx.Duration("timeout", timeout))
	return nil
}

// Reschedule changes the schedule of an existing job in place. An unchanged
// schedule is a no-op. Counters and the in-flight guard carry over, so a
// run in progress still blocks the next tick.
func (s *Service) Reschedule(name, schedule string) error {
	ps, err := Validate(schedule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if ps.CronSpec() == e.spec.CronSpec() {
		return nil
	}
	prev := e.spec
	e.spec = ps
	if s.c != nil {
		s.c.Remove(e.id)
		if err := s.registerLocked(e); err != nil {
			e.spec = prev
			if rerr := s.registerLocked(e); rerr != nil {
				s.log.Error("job lost after failed reschedule", logx.String("name", name), logx.Err(rerr))
			}
			return err
		}
	}
	s.log.Info("job rescheduled", logx.String("name", name), logx.String("from", prev.String()), logx.String("to", ps.String()))
	return nil
}

func (s *Service) registerLocked(e *entry) error {
	id, err := s.c.AddFunc(e.spec.CronSpec(), func() { _ = s.run(e) })
	if err != nil {
		return fmt.Errorf("register %s: %w", e.name, err)
	}
	e.id = id
	return nil
}

// Start begins firing registered jobs. Runs derive their context from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithParser(parser), cron.WithLocation(s.loc))
	for _, e := range s.jobs {
		if err := s.registerLocked(e); err != nil {
			s.log.Error("job register failed", logx.String("name", e.name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.jobs)))
}

// Stop stops firing, cancels running jobs and waits for them until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) rootContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

func (s *Service) run(e *entry) (err error) {
	log := s.log.With(logx.String("job", e.name))
	if !e.running.CompareAndSwap(false, true) {
		e.skips.Add(1)
		log.Warn("tick skipped: previous run still in progress")
		return ErrOverlapSkip
	}
	defer e.running.Store(false)

	ctx := s.rootContext()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				log.Error("job panic", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		err = e.job(ctx)
	}()
	e.runs.Add(1)

	e.mu.Lock()
	e.lastRun = start
	e.lastErr = ""
	if err != nil {
		e.lastErr = err.Error()
	}
	e.mu.Unlock()

	if err != nil {
		e.fails.Add(1)
		log.Error("job failed", logx.Duration("took", time.Since(start)), logx.Err(err))
		return err
	}
	log.Debug("job done", logx.Duration("took", time.Since(start)))
	return nil
}

// Snapshot lists registered jobs sorted by name.
func (s *Service) Snapshot() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, e := range s.jobs {
		info := JobInfo{
			Name:    e.name,
			Spec:    e.spec.String(),
			Timeout: e.timeout,
			Running: e.running.Load(),
			Runs:    e.runs.Load(),
			Skips:   e.skips.Load(),
			Fails:   e.fails.Load(),
		}
		e.mu.Lock()
		info.LastErr = e.lastErr
		info.Prev = e.lastRun
		e.mu.Unlock()
		if s.c != nil {
			info.Next = s.c.Entry(e.id).Next
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
