package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/catalog-seeder/errors"
	"github.com/yashrajoria/catalog-seeder/kv"
	"github.com/yashrajoria/catalog-seeder/logger"
	"github.com/yashrajoria/catalog-seeder/markers"
	"github.com/yashrajoria/catalog-seeder/models"
)

// State is a run orchestrator state.
type State string

const (
	StateIdle        State = models.RunStateIdle
	StateGating      State = models.RunStateGating
	StateDryRunning  State = models.RunStateDryRunning
	StateNothingToDo State = models.RunStateNothingToDo
	StateImporting   State = models.RunStateImporting
	StateDone        State = models.RunStateDone
	StateErrored     State = models.RunStateErrored
	StateSkipped     State = models.RunStateSkipped
)

// DefaultLockKey is the distributed lease taken for the duration of a run.
const DefaultLockKey = "seed:run:lock"

// DefaultLockTTL bounds how long a crashed run can hold the lease.
const DefaultLockTTL = 10 * time.Minute

// Sink receives every timestamped log line of a run.
type Sink func(line string)

// Importer is the part of ImportService the orchestrator drives.
type Importer interface {
	Configured() bool
	ImportSmart(ctx context.Context, req ImportRequest) (*models.DryRunReport, *models.ImportOutcome, error)
}

// Observer is told about every run that got past gating.
type Observer interface {
	ObserveRun(ctx context.Context, rec *models.RunRecord) error
}

// RunOptions parameterizes one RunIfNeeded call. A nil Overwrite uses the
// stored overwrite marker.
type RunOptions struct {
	Overwrite         *bool
	ChecksumNamespace string
	PruneMissing      bool
	Force             bool
	Sources           SourceNames
	Trigger           string
}

// RunResult describes how a run ended.
type RunResult struct {
	RunID       string
	State       State
	Path        []State
	NothingToDo bool
	Report      *models.DryRunReport
	Outcome     *models.ImportOutcome
	Elapsed     time.Duration
	Err         error
}

// Orchestrator decides whether a seed run is due and drives it through
// dry-run and import, updating the run markers on success.
type Orchestrator struct {
	importer  Importer
	markers   *markers.Store
	sink      Sink
	now       func() time.Time
	locker    kv.Locker
	lockKey   string
	lockTTL   time.Duration
	observers []Observer
	logger    *zap.Logger

	running atomic.Bool
	mu      sync.RWMutex
	state   State
	last    *RunResult
}

type OrchestratorOption func(*Orchestrator)

// WithSink routes run log lines to sink instead of the logger.
func WithSink(sink Sink) OrchestratorOption {
	return func(o *Orchestrator) { o.sink = sink }
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithLocker makes runs take a lease on key for at most ttl.
func WithLocker(locker kv.Locker, key string, ttl time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.locker = locker
		if key != "" {
			o.lockKey = key
		}
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

func WithObservers(obs ...Observer) OrchestratorOption {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs...) }
}

func WithOrchestratorLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger.OrNop(l) }
}

func NewOrchestrator(importer Importer, m *markers.Store, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		importer: importer,
		markers:  m,
		now:      time.Now,
		lockKey:  DefaultLockKey,
		lockTTL:  DefaultLockTTL,
		logger:   zap.NewNop(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sink == nil {
		l := o.logger
		o.sink = func(line string) { l.Info(line) }
	}
	return o
}

// State returns the current state; Idle between runs.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// LastResult returns the most recent finished run, if any.
func (o *Orchestrator) LastResult() *RunResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// Running reports whether a run is in flight in this process.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	o.sink(fmt.Sprintf("[%s] %s", o.now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...)))
}

type runTracker struct {
	o      *Orchestrator
	result *RunResult
}

func (t *runTracker) enter(s State) {
	t.result.State = s
	t.result.Path = append(t.result.Path, s)
	t.o.mu.Lock()
	t.o.state = s
	t.o.mu.Unlock()
}

// RunIfNeeded runs the gate and, when a run is due, dry-run and import.
// It never panics and never returns an error directly; the outcome,
// including any failure, is in the result.
func (o *Orchestrator) RunIfNeeded(ctx context.Context, opts RunOptions) *RunResult {
	if !o.running.CompareAndSwap(false, true) {
		o.log("Seed run already in progress, skipping")
		return &RunResult{
			State: StateSkipped,
			Path:  []State{StateSkipped},
			Err:   apperrors.Wrap(apperrors.ErrRunInProgress, nil),
		}
	}
	defer o.running.Store(false)

	started := o.now()
	result := &RunResult{RunID: uuid.NewString()}
	ctx = logger.WithRunID(ctx, result.RunID)
	t := &runTracker{o: o, result: result}

	defer func() {
		result.Elapsed = o.now().Sub(started)
		o.mu.Lock()
		o.state = StateIdle
		o.last = result
		o.mu.Unlock()
	}()

	t.enter(StateGating)
	required, proceed, err := o.gate(ctx, opts.Force)
	if err != nil {
		o.fail(ctx, t, opts, started, required, err)
		return result
	}
	if !proceed {
		t.enter(StateSkipped)
		return result
	}

	if o.locker != nil {
		release, ok, err := o.locker.TryLock(ctx, o.lockKey, o.lockTTL)
		if err != nil {
			o.fail(ctx, t, opts, started, required, fmt.Errorf("acquire run lease: %w", err))
			return result
		}
		if !ok {
			o.log("Another seed run holds the lease, skipping")
			t.enter(StateSkipped)
			return result
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				o.logger.Warn("failed to release run lease", zap.Error(err))
			}
		}()
	}

	overwrite, err := o.resolveOverwrite(ctx, opts.Overwrite)
	if err != nil {
		o.fail(ctx, t, opts, started, required, err)
		return result
	}
	req := ImportRequest{
		Overwrite:         overwrite,
		Sources:           opts.Sources,
		ChecksumNamespace: opts.ChecksumNamespace,
		PruneMissing:      opts.PruneMissing,
	}

	t.enter(StateDryRunning)
	dry := req
	dry.DryRun = true
	report, _, err := o.importer.ImportSmart(ctx, dry)
	if err != nil {
		o.fail(ctx, t, opts, started, required, fmt.Errorf("dry-run: %w", err))
		return result
	}
	result.Report = report
	o.log("Dry-run report:")
	for _, line := range report.SummaryLines() {
		o.log("%s", strings.TrimSpace(line))
	}

	if report.NothingToDo() {
		t.enter(StateNothingToDo)
		result.NothingToDo = true
		o.log("Nothing to do, remote data is up to date")
		if err := o.markers.MarkSeeded(ctx, required); err != nil {
			o.fail(ctx, t, opts, started, required, err)
			return result
		}
		t.enter(StateDone)
		o.observe(ctx, result, opts, started, required)
		return result
	}

	t.enter(StateImporting)
	_, outcome, err := o.importer.ImportSmart(ctx, req)
	if err != nil {
		o.fail(ctx, t, opts, started, required, fmt.Errorf("import: %w", err))
		return result
	}
	result.Outcome = outcome
	if err := o.markers.MarkSeeded(ctx, required); err != nil {
		o.fail(ctx, t, opts, started, required, err)
		return result
	}

	o.log("Import done in %.2fs", o.now().Sub(started).Seconds())
	for _, sec := range report.Sections {
		wr := outcome.Get(sec.Name)
		o.log("%s: upserted %d, deleted %d", sec.Name, wr.Upserted, wr.Deleted)
	}
	t.enter(StateDone)
	o.observe(ctx, result, opts, started, required)
	return result
}

// gate returns the required seed version and whether a run is due.
func (o *Orchestrator) gate(ctx context.Context, force bool) (int, bool, error) {
	if !o.importer.Configured() {
		o.log("Remote store is not configured, skipping seed run")
		return 0, false, nil
	}

	enabled, err := o.markers.Enabled(ctx)
	if err != nil {
		return 0, false, err
	}
	if !enabled {
		o.log("Seed importer is disabled, skipping")
		return 0, false, nil
	}

	required, err := o.markers.RequiredSeedVersion(ctx)
	if err != nil {
		return 0, false, err
	}
	didSeed, err := o.markers.DidSeed(ctx)
	if err != nil {
		return required, false, err
	}
	current, err := o.markers.SeedVersion(ctx)
	if err != nil {
		return required, false, err
	}

	if force || !didSeed || current != required {
		return required, true, nil
	}
	o.log("Seed already applied (version %d), skipping", current)
	return required, false, nil
}

func (o *Orchestrator) resolveOverwrite(ctx context.Context, override *bool) (bool, error) {
	if override != nil {
		return *override, nil
	}
	return o.markers.Overwrite(ctx)
}

func (o *Orchestrator) fail(ctx context.Context, t *runTracker, opts RunOptions, started time.Time, required int, err error) {
	t.result.Err = err
	t.enter(StateErrored)
	o.log("Seed run failed: %v", err)
	o.observe(ctx, t.result, opts, started, required)
}

func (o *Orchestrator) observe(ctx context.Context, result *RunResult, opts RunOptions, started time.Time, required int) {
	if len(o.observers) == 0 {
		return
	}
	rec := o.record(result, opts, started, required)
	for _, obs := range o.observers {
		if err := obs.ObserveRun(context.WithoutCancel(ctx), rec); err != nil {
			logger.For(ctx, o.logger).Warn("run observer failed", zap.Error(err))
		}
	}
}

func (o *Orchestrator) record(result *RunResult, opts RunOptions, started time.Time, required int) *models.RunRecord {
	rec := &models.RunRecord{
		Trigger:           opts.Trigger,
		State:             string(result.State),
		Forced:            opts.Force,
		SeedVersion:       required,
		ChecksumNamespace: opts.ChecksumNamespace,
		StartedAt:         started.UTC(),
		DurationMs:        o.now().Sub(started).Milliseconds(),
		Report:            result.Report,
		Outcome:           result.Outcome,
	}
	if id, err := uuid.Parse(result.RunID); err == nil {
		rec.ID = id
	}
	if rec.Trigger == "" {
		rec.Trigger = "manual"
	}
	if result.NothingToDo {
		rec.State = string(StateNothingToDo)
	}
	rec.Upserted, rec.Deleted = result.Outcome.Totals()
	if result.Report != nil {
		if b, err := json.Marshal(result.Report); err == nil {
			rec.ReportJSON = string(b)
		}
	}
	if result.Outcome != nil {
		if b, err := json.Marshal(result.Outcome); err == nil {
			rec.OutcomeJSON = string(b)
		}
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	return rec
}

// ResetMarkers clears the seeded flag so the next run is due. It makes no
// remote store calls.
func (o *Orchestrator) ResetMarkers(ctx context.Context) error {
	if err := o.markers.Reset(ctx); err != nil {
		return err
	}
	o.log("Seed markers reset")
	return nil
}
