// Package pipeline implements the real-time analysis scheduling and
// backpressure core: request queue and batcher, deadline tracking,
// bounded result history, intervention debouncing, and an auto-tuner that
// tightens batch parameters when the pipeline falls behind.
//
// One coordinator goroutine owns every piece of mutable pipeline state;
// classification runs on a bounded pool of workers that communicate with
// the coordinator exclusively through channels. Callers never block the
// coordinator: Analyze hands back a future immediately.
package pipeline

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/velvetlabs/signalpipe/internal/apperrors"
	"github.com/velvetlabs/signalpipe/internal/classifier"
	"github.com/velvetlabs/signalpipe/internal/debounce"
	"github.com/velvetlabs/signalpipe/internal/monitoring"
	"github.com/velvetlabs/signalpipe/internal/ringbuf"
	"github.com/velvetlabs/signalpipe/internal/types"
)

// maintenanceInterval spaces the debouncer eviction passes.
const maintenanceInterval = 15 * time.Second

// Settings are the pipeline tunables. The auto-tuner only ever tightens
// BatchSize toward MaxBatchSize and BatchInterval toward MinBatchInterval;
// loosening requires an explicit ResetTuning or Reconfigure.
type Settings struct {
	BatchSize        int
	MaxBatchSize     int
	BatchInterval    time.Duration
	MinBatchInterval time.Duration
	WorkerTimeout    time.Duration
	MaxQueueDepth    int
	WorkerCount      int
	HistoryCapacity  int

	EmissionConfidenceThreshold float64
	InterventionCooldown        time.Duration
	DebounceRetention           time.Duration

	MemoryCeiling   uint64
	LatencyCeiling  time.Duration
	MonitorInterval time.Duration
}

// DefaultSettings returns the stock configuration: 200ms end-to-end budget
// with a 150ms worker timeout leaving margin for batching overhead.
func DefaultSettings() Settings {
	return Settings{
		BatchSize:        8,
		MaxBatchSize:     64,
		BatchInterval:    50 * time.Millisecond,
		MinBatchInterval: 10 * time.Millisecond,
		WorkerTimeout:    150 * time.Millisecond,
		MaxQueueDepth:    100,
		WorkerCount:      4,
		HistoryCapacity:  200,

		EmissionConfidenceThreshold: 0.8,
		InterventionCooldown:        time.Second,
		DebounceRetention:           60 * time.Second,

		MemoryCeiling:   100 * 1024 * 1024,
		LatencyCeiling:  200 * time.Millisecond,
		MonitorInterval: 10 * time.Second,
	}
}

// normalize fills zero values with defaults so a partially populated
// Settings literal behaves sensibly.
func (s *Settings) normalize() {
	def := DefaultSettings()
	if s.BatchSize <= 0 {
		s.BatchSize = def.BatchSize
	}
	if s.MaxBatchSize <= 0 {
		s.MaxBatchSize = def.MaxBatchSize
	}
	if s.MaxBatchSize < s.BatchSize {
		s.MaxBatchSize = s.BatchSize
	}
	if s.BatchInterval <= 0 {
		s.BatchInterval = def.BatchInterval
	}
	if s.MinBatchInterval <= 0 {
		s.MinBatchInterval = def.MinBatchInterval
	}
	if s.MinBatchInterval > s.BatchInterval {
		s.MinBatchInterval = s.BatchInterval
	}
	if s.WorkerTimeout <= 0 {
		s.WorkerTimeout = def.WorkerTimeout
	}
	if s.MaxQueueDepth <= 0 {
		s.MaxQueueDepth = def.MaxQueueDepth
	}
	if s.WorkerCount <= 0 {
		s.WorkerCount = def.WorkerCount
	}
	if s.HistoryCapacity <= 0 {
		s.HistoryCapacity = def.HistoryCapacity
	}
	if s.EmissionConfidenceThreshold <= 0 {
		s.EmissionConfidenceThreshold = def.EmissionConfidenceThreshold
	}
	if s.InterventionCooldown <= 0 {
		s.InterventionCooldown = def.InterventionCooldown
	}
	if s.DebounceRetention <= 0 {
		s.DebounceRetention = def.DebounceRetention
	}
	if s.MemoryCeiling == 0 {
		s.MemoryCeiling = def.MemoryCeiling
	}
	if s.LatencyCeiling <= 0 {
		s.LatencyCeiling = def.LatencyCeiling
	}
	if s.MonitorInterval <= 0 {
		s.MonitorInterval = def.MonitorInterval
	}
}

// Options carries the pipeline's observability collaborators. All fields
// are optional.
type Options struct {
	Logger  *monitoring.Logger
	Tracker *monitoring.PerformanceTracker
	Metrics *monitoring.PipelineMetrics
}

// workerResult is what a classification worker reports back.
type workerResult struct {
	id       string
	outcome  types.ClassificationOutcome
	err      error
	duration time.Duration
}

// Pipeline schedules analysis requests against a pluggable classifier.
type Pipeline struct {
	cls     classifier.Classifier
	logger  *monitoring.Logger
	tracker *monitoring.PerformanceTracker
	metrics *monitoring.PipelineMetrics

	submitCh chan *request
	resultCh chan workerResult
	ctrlCh   chan func()
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// Everything below is owned by the coordinator goroutine.
	settings Settings
	baseline Settings
	pending  map[string]*request
	arrival  []*request // enqueue order, for oldest-first eviction

	batch         []*request
	batchOpenedAt time.Time
	batchTimer    *time.Timer
	batchC        <-chan time.Time

	deadlines deadlineHeap
	dlTimer   *time.Timer
	dlC       <-chan time.Time

	monitorTick *time.Ticker

	history       *ringbuf.Ring[types.AnalysisResult]
	interventions *ringbuf.Ring[types.InterventionRecord]
	deb           *debounce.Debouncer
	sem           chan struct{}

	onResult       []func(types.AnalysisResult)
	onIntervention []func(types.InterventionRecord)
}

// New creates a pipeline. Call Start before submitting work and Stop to
// shut down.
func New(cls classifier.Classifier, settings Settings, opts Options) *Pipeline {
	settings.normalize()

	logger := opts.Logger
	if logger == nil {
		logger = monitoring.NewLogger()
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = monitoring.NewPerformanceTracker()
	}

	return &Pipeline{
		cls:     cls,
		logger:  logger,
		tracker: tracker,
		metrics: opts.Metrics,

		submitCh: make(chan *request, settings.MaxQueueDepth),
		resultCh: make(chan workerResult, settings.MaxQueueDepth),
		ctrlCh:   make(chan func()),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),

		settings: settings,
		baseline: settings,
		pending:  make(map[string]*request),

		history:       ringbuf.New[types.AnalysisResult](settings.HistoryCapacity),
		interventions: ringbuf.New[types.InterventionRecord](settings.HistoryCapacity),
		deb: debounce.New(debounce.Config{
			ConfidenceThreshold: settings.EmissionConfidenceThreshold,
			Cooldown:            settings.InterventionCooldown,
			Retention:           settings.DebounceRetention,
		}),
		sem: make(chan struct{}, settings.WorkerCount),
	}
}

// OnAnalysisComplete registers a fire-and-forget completion callback.
// Register before Start; delivery is at-most-once and panics are swallowed.
func (p *Pipeline) OnAnalysisComplete(fn func(types.AnalysisResult)) {
	p.onResult = append(p.onResult, fn)
}

// OnIntervention registers a fire-and-forget intervention callback.
// Register before Start.
func (p *Pipeline) OnIntervention(fn func(types.InterventionRecord)) {
	p.onIntervention = append(p.onIntervention, fn)
}

// Start launches the coordinator goroutine.
func (p *Pipeline) Start() {
	go p.run()
}

// Stop shuts the pipeline down, resolving any outstanding requests with a
// queue-full error, and waits for the coordinator to exit.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	<-p.done
}

// Analyze enqueues a fragment for classification and returns a future
// that resolves exactly once. It never blocks: a saturated submit channel
// rejects immediately with QueueFull.
func (p *Pipeline) Analyze(text string, meta map[string]any) (<-chan Outcome, error) {
	select {
	case <-p.stopCh:
		return nil, apperrors.NewQueueFull("pipeline stopped")
	default:
	}

	req := &request{
		id:         uuid.NewString(),
		text:       text,
		meta:       meta,
		enqueuedAt: time.Now(),
		future:     make(chan Outcome, 1),
		heapIndex:  -1,
	}

	select {
	case p.submitCh <- req:
		return req.future, nil
	default:
		return nil, apperrors.NewQueueFull("submit channel saturated")
	}
}

// AnalyzeWait enqueues a fragment and awaits its resolution or ctx expiry.
func (p *Pipeline) AnalyzeWait(ctx context.Context, text string, meta map[string]any) (types.AnalysisResult, error) {
	future, err := p.Analyze(text, meta)
	if err != nil {
		return types.AnalysisResult{}, err
	}

	select {
	case out := <-future:
		return out.Result, out.Err
	case <-ctx.Done():
		return types.AnalysisResult{}, ctx.Err()
	}
}

// Metrics returns a point-in-time performance snapshot.
func (p *Pipeline) Metrics() types.PerformanceSample {
	return p.tracker.Snapshot(monitoring.MemoryEstimate())
}

// History returns the retained results oldest-to-newest.
func (p *Pipeline) History() []types.AnalysisResult {
	var out []types.AnalysisResult
	p.do(func() { out = p.history.ToSlice() })
	return out
}

// Interventions returns the retained interventions oldest-to-newest.
func (p *Pipeline) Interventions() []types.InterventionRecord {
	var out []types.InterventionRecord
	p.do(func() { out = p.interventions.ToSlice() })
	return out
}

// Settings returns the active settings, including any tuner adjustments.
func (p *Pipeline) Settings() Settings {
	var out Settings
	p.do(func() { out = p.settings })
	return out
}

// Reconfigure replaces the settings and re-baselines the tuner. Applies to
// subsequent batches; in-flight work is unaffected.
func (p *Pipeline) Reconfigure(settings Settings) {
	settings.normalize()
	p.do(func() {
		p.applySettings(settings)
		p.baseline = settings
	})
}

// ResetTuning restores the baseline batch parameters. This is the only
// path that loosens what the auto-tuner tightened; automatic loosening
// would oscillate and destabilize latency.
func (p *Pipeline) ResetTuning() {
	p.do(func() {
		p.applySettings(p.baseline)
		p.tracker.ResetRolling()
		p.logger.SystemLogger("tuning_reset", "batch parameters restored to baseline")
	})
}

// do runs fn on the coordinator goroutine and waits for it, returning
// early if the pipeline stops first.
func (p *Pipeline) do(fn func()) {
	executed := make(chan struct{})
	wrapped := func() {
		fn()
		close(executed)
	}

	select {
	case p.ctrlCh <- wrapped:
	case <-p.done:
		return
	}

	select {
	case <-executed:
	case <-p.done:
	}
}

// run is the coordinator loop. All pipeline state mutation happens here.
func (p *Pipeline) run() {
	defer close(p.done)

	p.monitorTick = time.NewTicker(p.settings.MonitorInterval)
	defer p.monitorTick.Stop()

	maintenance := time.NewTicker(maintenanceInterval)
	defer maintenance.Stop()

	if p.metrics != nil {
		p.metrics.SetBatchSettings(p.settings.BatchSize, p.settings.BatchInterval)
	}

	for {
		select {
		case req := <-p.submitCh:
			p.handleSubmit(req, time.Now())

		case res := <-p.resultCh:
			p.handleResult(res, time.Now())

		case <-p.batchC:
			p.batchC = nil
			p.dispatchBatch()

		case <-p.dlC:
			p.dlC = nil
			p.expireDeadlines(time.Now())

		case <-p.monitorTick.C:
			p.monitorPass(time.Now())

		case <-maintenance.C:
			p.deb.Evict(time.Now())

		case fn := <-p.ctrlCh:
			fn()

		case <-p.stopCh:
			p.shutdown()
			return
		}
	}
}

func (p *Pipeline) handleSubmit(req *request, now time.Time) {
	req.state = stateQueued
	req.deadline = now.Add(p.settings.WorkerTimeout)

	p.pending[req.id] = req
	p.arrival = append(p.arrival, req)
	heap.Push(&p.deadlines, req)
	if p.dlC == nil {
		p.resetDeadlineTimer(now)
	}

	// Shed the oldest outstanding work first: conversation context ages
	// quickly, so recency wins over fairness.
	for len(p.pending) > p.settings.MaxQueueDepth {
		if !p.evictOldest(now) {
			break
		}
	}

	if req.terminal() {
		p.updateDepth()
		return
	}

	if len(p.batch) == 0 {
		p.openBatch(now)
	}
	req.state = stateBatched
	p.batch = append(p.batch, req)

	if p.liveBatchSize() >= p.settings.BatchSize {
		p.dispatchBatch()
	}
	p.updateDepth()
}

// liveBatchSize counts batch members not already resolved by eviction or
// timeout.
func (p *Pipeline) liveBatchSize() int {
	n := 0
	for _, req := range p.batch {
		if !req.terminal() {
			n++
		}
	}
	return n
}

func (p *Pipeline) openBatch(now time.Time) {
	p.batchOpenedAt = now
	p.batchTimer = time.NewTimer(p.settings.BatchInterval)
	p.batchC = p.batchTimer.C
}

// dispatchBatch closes the open batch and submits every live member to the
// worker pool in enqueue order, without waiting on completions.
func (p *Pipeline) dispatchBatch() {
	if p.batchTimer != nil {
		p.batchTimer.Stop()
		p.batchTimer = nil
	}
	p.batchC = nil

	batch := p.batch
	p.batch = nil
	if len(batch) == 0 {
		return
	}

	assembly := time.Since(p.batchOpenedAt)
	dispatched := 0
	for _, req := range batch {
		if req.terminal() {
			continue
		}
		req.state = stateDispatched
		dispatched++
		p.spawnWorker(req.id, req.text, req.meta, req.deadline)
	}
	if dispatched == 0 {
		return
	}

	p.tracker.RecordBatch(dispatched, assembly)
	if p.metrics != nil {
		p.metrics.ObserveBatch()
	}
}

// spawnWorker runs one classification off the coordinator. The semaphore
// bounds classifier concurrency; results come back over resultCh so the
// worker never touches coordinator state.
func (p *Pipeline) spawnWorker(id, text string, meta map[string]any, deadline time.Time) {
	go func() {
		select {
		case p.sem <- struct{}{}:
		case <-p.stopCh:
			return
		}
		defer func() { <-p.sem }()

		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		defer cancel()

		start := time.Now()
		outcome, err := p.cls.Classify(ctx, text, meta)

		select {
		case p.resultCh <- workerResult{id: id, outcome: outcome, err: err, duration: time.Since(start)}:
		case <-p.stopCh:
		}
	}()
}

func (p *Pipeline) handleResult(res workerResult, now time.Time) {
	req, ok := p.pending[res.id]
	if !ok {
		// Deadline already fired or the request was superseded; the late
		// result is discarded, never entering history.
		p.tracker.RecordLateDiscard()
		return
	}

	latency := now.Sub(req.enqueuedAt)

	if res.err != nil {
		p.resolve(req, Outcome{Err: apperrors.NewClassifierError(res.err)}, stateCompleted)
		p.tracker.RecordClassifierError()
		if p.metrics != nil {
			p.metrics.ObserveOutcome("classifier_error", latency)
		}
		p.updateDepth()
		return
	}

	result := types.AnalysisResult{
		RequestID:      req.id,
		Text:           req.text,
		Signal:         res.outcome.Signal,
		Confidence:     res.outcome.Confidence,
		Derived:        res.outcome.Derived,
		ProcessingTime: res.duration,
		CompletedAt:    now,
	}

	p.resolve(req, Outcome{Result: result}, stateCompleted)
	p.tracker.RecordCompletion(latency)
	if p.metrics != nil {
		p.metrics.ObserveOutcome("completed", latency)
	}
	p.logger.AnalysisLogger(result, latency, false)

	// History is ordered by completion time, not enqueue time.
	p.history.Push(result)
	p.emitResult(result)

	if rec, emitted := p.deb.Decide(result, now); emitted {
		p.interventions.Push(rec)
		if p.metrics != nil {
			p.metrics.ObserveIntervention(rec.Signal)
		}
		p.logger.InterventionLogger(rec)
		p.emitIntervention(rec)
	}
	p.updateDepth()
}

func (p *Pipeline) expireDeadlines(now time.Time) {
	for p.deadlines.Len() > 0 {
		next := p.deadlines.peek()
		if next.deadline.After(now) {
			break
		}
		p.resolve(next, Outcome{Err: apperrors.NewTimeout(p.settings.WorkerTimeout)}, stateTimedOut)
		p.tracker.RecordTimeout(p.settings.WorkerTimeout)
		if p.metrics != nil {
			p.metrics.ObserveOutcome("timeout", now.Sub(next.enqueuedAt))
		}
	}
	p.resetDeadlineTimer(now)
	p.updateDepth()
}

// resetDeadlineTimer arms the single deadline timer for the earliest
// pending deadline. Deadlines are monotone in enqueue order, so the armed
// timer never needs to move earlier.
func (p *Pipeline) resetDeadlineTimer(now time.Time) {
	if p.dlTimer != nil {
		p.dlTimer.Stop()
		p.dlTimer = nil
		p.dlC = nil
	}
	if p.deadlines.Len() == 0 {
		return
	}

	wait := p.deadlines.peek().deadline.Sub(now)
	if wait < 0 {
		wait = 0
	}
	p.dlTimer = time.NewTimer(wait)
	p.dlC = p.dlTimer.C
}

// evictOldest resolves the oldest outstanding request with Superseded.
// Returns false when nothing evictable remains.
func (p *Pipeline) evictOldest(now time.Time) bool {
	for len(p.arrival) > 0 {
		oldest := p.arrival[0]
		p.arrival = p.arrival[1:]
		if oldest.terminal() {
			continue
		}

		age := now.Sub(oldest.enqueuedAt)
		p.resolve(oldest, Outcome{Err: apperrors.NewSuperseded(age)}, stateSuperseded)
		p.tracker.RecordSuperseded()
		if p.metrics != nil {
			p.metrics.ObserveOutcome("superseded", age)
		}
		return true
	}
	return false
}

// resolve settles a request into a terminal state. The terminal guard
// makes double resolution impossible; the buffered future never blocks.
func (p *Pipeline) resolve(req *request, out Outcome, terminal requestState) {
	if req.terminal() {
		return
	}
	req.state = terminal

	delete(p.pending, req.id)
	if req.heapIndex >= 0 {
		heap.Remove(&p.deadlines, req.heapIndex)
	}

	req.future <- out
}

// monitorPass samples performance and, when the latency ceiling is
// breached, tightens batch parameters. The control loop is single
// direction: it only tightens, never loosens.
func (p *Pipeline) monitorPass(now time.Time) {
	mem := monitoring.MemoryEstimate()
	p.tracker.SetQueueDepth(len(p.pending))
	sample := p.tracker.Snapshot(mem)

	if p.metrics != nil {
		p.metrics.SetQueueDepth(sample.QueueDepth)
		p.metrics.SetBatchSettings(p.settings.BatchSize, p.settings.BatchInterval)
	}
	p.logger.PerformanceLogger("avg_latency", float64(sample.AverageLatency.Milliseconds()), "ms")

	switch {
	case sample.AnalysisCount > 0 && sample.AverageLatency > p.settings.LatencyCeiling:
		p.tighten()
		p.cleanup(now, false)
		// Future averages reflect the new configuration instead of being
		// dragged down by historical slowness.
		p.tracker.ResetRolling()

	case mem > p.settings.MemoryCeiling:
		p.cleanup(now, true)
	}
}

func (p *Pipeline) tighten() {
	size := p.settings.BatchSize * 2
	if size > p.settings.MaxBatchSize {
		size = p.settings.MaxBatchSize
	}
	interval := p.settings.BatchInterval / 2
	if interval < p.settings.MinBatchInterval {
		interval = p.settings.MinBatchInterval
	}

	p.settings.BatchSize = size
	p.settings.BatchInterval = interval

	p.logger.TuningLogger("latency ceiling exceeded", size, interval)
	if p.metrics != nil {
		p.metrics.SetBatchSettings(size, interval)
	}
}

// cleanup evicts stale debouncer entries, compacts the arrival queue, and
// optionally forces a GC cycle for memory-triggered passes.
func (p *Pipeline) cleanup(now time.Time, forceGC bool) {
	p.deb.Evict(now)

	live := p.arrival[:0]
	for _, req := range p.arrival {
		if !req.terminal() {
			live = append(live, req)
		}
	}
	p.arrival = live

	p.tracker.RecordCleanup()
	if forceGC {
		monitoring.ForceGC(p.logger)
	}
}

func (p *Pipeline) applySettings(s Settings) {
	if s.HistoryCapacity != p.history.Cap() {
		fresh := ringbuf.New[types.AnalysisResult](s.HistoryCapacity)
		for _, item := range p.history.ToSlice() {
			fresh.Push(item)
		}
		p.history = fresh
	}

	p.settings = s
	p.deb.SetCooldown(s.InterventionCooldown)
	p.deb.SetConfidenceThreshold(s.EmissionConfidenceThreshold)
	p.monitorTick.Reset(s.MonitorInterval)

	if p.metrics != nil {
		p.metrics.SetBatchSettings(s.BatchSize, s.BatchInterval)
	}
}

func (p *Pipeline) updateDepth() {
	depth := len(p.pending)
	p.tracker.SetQueueDepth(depth)
	if p.metrics != nil {
		p.metrics.SetQueueDepth(depth)
	}
}

// shutdown resolves every outstanding request so no caller hangs, then
// releases timers.
func (p *Pipeline) shutdown() {
	for _, req := range p.pending {
		if req.terminal() {
			continue
		}
		req.state = stateSuperseded
		req.future <- Outcome{Err: apperrors.NewQueueFull("pipeline stopping")}
	}

	// Requests still sitting in the submit buffer get resolved too.
	for {
		select {
		case req := <-p.submitCh:
			req.state = stateSuperseded
			req.future <- Outcome{Err: apperrors.NewQueueFull("pipeline stopping")}
			continue
		default:
		}
		break
	}
	p.pending = make(map[string]*request)
	p.arrival = nil
	p.batch = nil
	p.deadlines = nil

	if p.batchTimer != nil {
		p.batchTimer.Stop()
	}
	if p.dlTimer != nil {
		p.dlTimer.Stop()
	}
}

func (p *Pipeline) emitResult(result types.AnalysisResult) {
	for _, fn := range p.onResult {
		p.safeInvoke(func() { fn(result) })
	}
}

func (p *Pipeline) emitIntervention(rec types.InterventionRecord) {
	for _, fn := range p.onIntervention {
		p.safeInvoke(func() { fn(rec) })
	}
}

// safeInvoke shields the coordinator from consumer panics; delivery is
// fire-and-forget with no retry.
func (p *Pipeline) safeInvoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("sink callback panicked", "panic", r)
		}
	}()
	fn()
}
