package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/consentscan/internal/logging"
	"github.com/raysh454/consentscan/internal/model"
	"github.com/raysh454/consentscan/internal/store"
)

var (
	ErrClosed    = errors.New("orchestrator is closed")
	ErrNoStore   = errors.New("no analysis store configured")
	ErrEmptyURL  = errors.New("url is required")
	ErrNoScanner = errors.New("no scanner configured")
)

// SiteScanner scans one site. Implemented by *scanner.Scanner.
type SiteScanner interface {
	ScanSite(ctx context.Context, rawURL string) (*model.ScanResult, error)
}

// AnalysisStore persists analyses. Implemented by *store.Store.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, userID, url string, result *model.ScanResult) (*store.Analysis, error)
	ListAnalyses(ctx context.Context, userID string, limit int) ([]store.Analysis, error)
	GetAnalysis(ctx context.Context, id string) (*store.Analysis, error)
}

type JobEventType string

const (
	JobEventStatus JobEventType = "status"
	JobEventResult JobEventType = "result"
)

type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// Set on result events.
	Result     *model.ScanResult `json:"result,omitempty"`
	AnalysisID string            `json:"analysis_id,omitempty"`
}

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

// Finished reports whether s is terminal.
func (s JobStatus) Finished() bool {
	return s == JobDone || s == JobFailed || s == JobCanceled
}

type Job struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"` // "scan"
	UserID    string        `json:"user_id,omitempty"`
	URL       string        `json:"url"`
	Status    JobStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Events    chan JobEvent `json:"-"`

	Result     *model.ScanResult `json:"result,omitempty"`
	AnalysisID string            `json:"analysis_id,omitempty"`
}

const jobEventBuffer = 16

// Orchestrator runs scans synchronously or as background jobs and keeps
// the job table.
type Orchestrator struct {
	cfg     *Config
	scanner SiteScanner
	store   AnalysisStore
	logger  logging.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	jobsMu     sync.Mutex
	closed     bool
	jobs       map[string]*Job
	jobCancels map[string]context.CancelFunc
	evictions  map[string]*time.Timer
}

// NewOrchestrator ties together config, scanner, store and logger. A nil
// store disables persistence; scans still work.
func NewOrchestrator(cfg *Config, sc SiteScanner, st AnalysisStore, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:        cfg,
		scanner:    sc,
		store:      st,
		logger:     logger.With(logging.Field{Key: "component", Value: "orchestrator"}),
		baseCtx:    ctx,
		baseCancel: cancel,
		jobs:       make(map[string]*Job),
		jobCancels: make(map[string]context.CancelFunc),
		evictions:  make(map[string]*time.Timer),
	}
}

// ─── Synchronous operations ────────────────────────────────────────────

// Scan scans rawURL without persisting the result.
func (o *Orchestrator) Scan(ctx context.Context, rawURL string) (*model.ScanResult, error) {
	if o.scanner == nil {
		return nil, ErrNoScanner
	}
	if strings.TrimSpace(rawURL) == "" {
		return nil, ErrEmptyURL
	}
	return o.scanner.ScanSite(ctx, rawURL)
}

// ScanAndSave scans rawURL and stores the result for userID. Failed scans
// are not stored.
func (o *Orchestrator) ScanAndSave(ctx context.Context, userID, rawURL string) (*store.Analysis, error) {
	if o.store == nil {
		return nil, ErrNoStore
	}
	res, err := o.Scan(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return o.store.SaveAnalysis(ctx, userID, rawURL, res)
}

func (o *Orchestrator) ListAnalyses(ctx context.Context, userID string, limit int) ([]store.Analysis, error) {
	if o.store == nil {
		return nil, ErrNoStore
	}
	return o.store.ListAnalyses(ctx, userID, limit)
}

func (o *Orchestrator) GetAnalysis(ctx context.Context, id string) (*store.Analysis, error) {
	if o.store == nil {
		return nil, ErrNoStore
	}
	return o.store.GetAnalysis(ctx, id)
}

// ─── Jobs ──────────────────────────────────────────────────────────────

func (o *Orchestrator) newJob(userID, rawURL string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Type:      "scan",
		UserID:    userID,
		URL:       rawURL,
		Status:    JobPending,
		StartedAt: time.Now().UTC(),
		Events:    make(chan JobEvent, jobEventBuffer),
	}
}

func (o *Orchestrator) emitJobEvent(job *Job, ev JobEvent) {
	ev.JobID = job.ID
	// Non-blocking send; drop if the buffer is full.
	select {
	case job.Events <- ev:
	default:
		o.logger.Debug("dropped job event",
			logging.Field{Key: "job_id", Value: job.ID},
			logging.Field{Key: "type", Value: string(ev.Type)})
	}
}

func (o *Orchestrator) updateJob(jobID string, fn func(j *Job)) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if j, ok := o.jobs[jobID]; ok {
		fn(j)
	}
}

// StartScanJob scans rawURL in the background and, when userID is set,
// stores the analysis. The job is cancelled when ctx is done, when
// CancelJob is called or when the orchestrator closes. Events is closed
// once the job has finished.
func (o *Orchestrator) StartScanJob(ctx context.Context, userID, rawURL string) (*Job, error) {
	if o.scanner == nil {
		return nil, ErrNoScanner
	}
	if strings.TrimSpace(rawURL) == "" {
		return nil, ErrEmptyURL
	}
	if userID != "" && o.store == nil {
		return nil, ErrNoStore
	}

	job := o.newJob(userID, rawURL)
	jobCtx, cancel := context.WithCancel(o.baseCtx)
	stop := context.AfterFunc(ctx, cancel)

	o.jobsMu.Lock()
	if o.closed {
		o.jobsMu.Unlock()
		stop()
		cancel()
		return nil, ErrClosed
	}
	o.jobs[job.ID] = job
	o.jobCancels[job.ID] = cancel
	o.wg.Add(1)
	o.jobsMu.Unlock()

	o.emitJobEvent(job, JobEvent{Type: JobEventStatus, Status: JobPending})
	o.logger.Info("scan job queued",
		logging.Field{Key: "job_id", Value: job.ID},
		logging.Field{Key: "url", Value: rawURL})

	go func() {
		defer o.wg.Done()
		defer func() {
			stop()
			cancel()
			o.jobsMu.Lock()
			delete(o.jobCancels, job.ID)
			job.EndedAt = time.Now().UTC()
			o.scheduleEvictionLocked(job.ID)
			o.jobsMu.Unlock()
			// Close events so websocket loops can terminate cleanly.
			close(job.Events)
		}()
		o.runScanJob(jobCtx, job)
	}()

	return job, nil
}

func (o *Orchestrator) runScanJob(ctx context.Context, job *Job) {
	o.updateJob(job.ID, func(j *Job) { j.Status = JobRunning })
	o.emitJobEvent(job, JobEvent{Type: JobEventStatus, Status: JobRunning})

	var (
		res        *model.ScanResult
		analysisID string
		err        error
	)
	if job.UserID != "" {
		var a *store.Analysis
		a, err = o.ScanAndSave(ctx, job.UserID, job.URL)
		if a != nil {
			res, analysisID = a.Result(), a.ID
		}
	} else {
		res, err = o.Scan(ctx, job.URL)
	}

	// A stored analysis outlives a late cancel; report it as done.
	if err == nil {
		o.finishJob(job, JobDone, "", res, analysisID)
		return
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		o.finishJob(job, JobCanceled, ctxErr.Error(), nil, "")
		return
	}
	o.finishJob(job, JobFailed, jobErrorMessage(err), nil, "")
}

func (o *Orchestrator) finishJob(job *Job, status JobStatus, errMsg string, res *model.ScanResult, analysisID string) {
	o.updateJob(job.ID, func(j *Job) {
		j.Status = status
		j.Error = errMsg
		j.Result = res
		j.AnalysisID = analysisID
	})

	ev := JobEvent{Type: JobEventStatus, Status: status, Error: errMsg}
	if status == JobDone {
		ev.Type = JobEventResult
		ev.Result = res
		ev.AnalysisID = analysisID
	}
	o.emitJobEvent(job, ev)

	fields := []logging.Field{
		{Key: "job_id", Value: job.ID},
		{Key: "status", Value: string(status)},
	}
	if errMsg != "" {
		fields = append(fields, logging.Field{Key: "error", Value: errMsg})
	}
	o.logger.Info("scan job finished", fields...)
}

// jobErrorMessage surfaces the scan failure reason verbatim.
func jobErrorMessage(err error) string {
	var se *model.ScanError
	if errors.As(err, &se) {
		return se.Reason()
	}
	return err.Error()
}

// scheduleEvictionLocked drops a finished job after JobRetentionTime.
// Callers hold jobsMu.
func (o *Orchestrator) scheduleEvictionLocked(jobID string) {
	ttl := o.cfg.JobRetentionTime
	if ttl <= 0 || o.closed {
		return
	}
	o.evictions[jobID] = time.AfterFunc(ttl, func() {
		o.jobsMu.Lock()
		defer o.jobsMu.Unlock()
		delete(o.jobs, jobID)
		delete(o.evictions, jobID)
	})
}

// CancelJob cancels a running job. It reports whether the job was running.
func (o *Orchestrator) CancelJob(jobID string) bool {
	o.jobsMu.Lock()
	cancel := o.jobCancels[jobID]
	o.jobsMu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// GetJob returns a snapshot of the job, or nil when unknown.
func (o *Orchestrator) GetJob(jobID string) *Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

// ListJobs returns snapshots of all retained jobs, oldest first.
func (o *Orchestrator) ListJobs() []*Job {
	o.jobsMu.Lock()
	out := make([]*Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		cp := *j
		out = append(out, &cp)
	}
	o.jobsMu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].StartedAt.Equal(out[b].StartedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].StartedAt.Before(out[b].StartedAt)
	})
	return out
}

// Close cancels running jobs, waits for them to finish and rejects new
// ones. It is safe to call more than once.
func (o *Orchestrator) Close() {
	o.jobsMu.Lock()
	if o.closed {
		o.jobsMu.Unlock()
		return
	}
	o.closed = true
	for id, t := range o.evictions {
		t.Stop()
		delete(o.evictions, id)
	}
	o.jobsMu.Unlock()

	o.baseCancel()
	o.wg.Wait()
	o.logger.Info("orchestrator closed")
}
