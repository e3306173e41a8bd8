package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planilimpa/planilimpa/internal/audit"
	"github.com/planilimpa/planilimpa/internal/config"
	"github.com/planilimpa/planilimpa/internal/dedupe"
	"github.com/planilimpa/planilimpa/internal/enrich"
	"github.com/planilimpa/planilimpa/internal/ingest"
	"github.com/planilimpa/planilimpa/internal/table"
)

// resultRetention is how long a finished job stays queryable.
var resultRetention = 15 * time.Minute

// Service runs cleaning pipelines as asynchronous jobs.
type Service struct {
	cfg     *config.Config
	audit   *audit.Store // nil when no audit database is configured
	limiter *runLimiter

	mu   sync.RWMutex
	jobs map[string]*activeJob
}

type activeJob struct {
	ID     string
	Cancel context.CancelFunc
	Done   chan struct{}

	mu       sync.Mutex
	progress Progress
	result   *Result
}

// NewService creates a Service. The audit store may be nil.
func NewService(cfg *config.Config, auditStore *audit.Store) *Service {
	return &Service{
		cfg:     cfg,
		audit:   auditStore,
		limiter: newRunLimiter(cfg.Upload.MaxConcurrent),
		jobs:    make(map[string]*activeJob),
	}
}

// StartRun validates the configuration and inputs, then processes the files
// in the background. It returns the job ID immediately; configuration
// defects fail synchronously so callers see them on submission.
func (s *Service) StartRun(ctx context.Context, files []ingest.File, rc *config.RunConfig) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("no files supplied")
	}
	if len(files) > s.cfg.Upload.MaxFiles {
		return "", fmt.Errorf("too many files: %d (limit %d)", len(files), s.cfg.Upload.MaxFiles)
	}
	for _, f := range files {
		if int64(len(f.Data)) > s.cfg.Upload.MaxFileSize {
			return "", fmt.Errorf("file %s exceeds size limit (%d bytes)", f.Name, s.cfg.Upload.MaxFileSize)
		}
	}
	if rc == nil {
		rc = &config.RunConfig{}
	}
	if err := rc.Validate(); err != nil {
		return "", err
	}

	if !s.limiter.tryAcquire() {
		return "", ErrTooManyRuns
	}

	jobID := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Upload.Timeout)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}

	job := &activeJob{
		ID:     jobID,
		Cancel: cancel,
		Done:   make(chan struct{}),
		progress: Progress{
			JobID:     jobID,
			Phase:     PhaseStarting,
			FileNames: names,
		},
	}

	s.mu.Lock()
	s.jobs[jobID] = job
	s.mu.Unlock()

	go s.run(runCtx, job, files, rc)

	return jobID, nil
}

// run executes the pipeline for one job.
func (s *Service) run(ctx context.Context, job *activeJob, files []ingest.File, rc *config.RunConfig) {
	start := time.Now()
	logger := slog.Default().With("job_id", job.ID)

	defer func() {
		close(job.Done)
		job.Cancel()
		s.limiter.release()
		s.cleanup(job.ID, resultRetention)
	}()

	result, err := s.Run(ctx, files, rc, func(phase Phase, rows int) {
		job.setPhase(phase, rows)
	})
	result.JobID = job.ID
	result.Duration = time.Since(start)
	result.DurationMs = result.Duration.Milliseconds()

	if err != nil {
		logger.Error("pipeline run failed", "error", err, "duration", result.Duration)
		result.Error = err.Error()
		job.finish(PhaseFailed, result)
		return
	}

	phase := PhaseComplete
	if ctx.Err() != nil {
		// The run was cut short; partial duplicate results were kept.
		phase = PhaseCancelled
	}
	job.finish(phase, result)

	logger.Info("pipeline run finished",
		"phase", phase,
		"rows", result.TotalRows,
		"filled", result.Stats.FieldsFilled,
		"corrected", result.Stats.AbbreviationsCorrected,
		"duplicate_groups", len(result.Duplicates.Groups),
		"partial", result.Duplicates.Partial,
		"duration", result.Duration,
	)

	if err := s.recordAudit(result); err != nil {
		logger.Warn("audit record failed", "error", err)
	}
}

// Run executes the pipeline synchronously: parse and merge, enrich, detect.
// onPhase, if non-nil, observes phase transitions. The returned Result is
// valid even when err is non-nil (its fields describe what completed).
func (s *Service) Run(ctx context.Context, files []ingest.File, rc *config.RunConfig, onPhase func(Phase, int)) (*Result, error) {
	notify := func(p Phase, rows int) {
		if onPhase != nil {
			onPhase(p, rows)
		}
	}
	result := &Result{}
	for _, f := range files {
		result.FileNames = append(result.FileNames, f.Name)
	}

	notify(PhaseParsing, 0)
	sources := make([]table.Source, 0, len(files))
	for _, f := range files {
		parsed, err := ingest.Parse(f)
		if err != nil {
			return result, err
		}
		sources = append(sources, table.Source{File: f.Name, Table: parsed})
	}

	notify(PhaseMerging, 0)
	tbl := table.Merge(sources)
	result.TotalRows = tbl.Len()
	result.Analyzed = tbl

	notify(PhaseEnriching, tbl.Len())
	enriched, stats, err := enrich.Enrich(tbl, rc.Policies, rc.Abbreviations)
	if err != nil {
		return result, err
	}
	result.Enriched = enriched
	result.Stats = stats

	notify(PhaseDetecting, tbl.Len())
	report, err := dedupe.Detect(ctx, tbl, rc.Policies, dedupe.Options{
		Threshold:   pickThreshold(rc.Threshold, s.cfg.Detect.Threshold),
		NameColumns: rc.NameColumns,
		CodeColumns: rc.CodeColumns,
		Workers:     s.cfg.Detect.Workers,
	})
	if err != nil {
		return result, err
	}
	result.Duplicates = report

	return result, nil
}

func pickThreshold(runValue, configured float64) float64 {
	if runValue > 0 {
		return runValue
	}
	return configured
}

func (s *Service) recordAudit(result *Result) error {
	if s.audit == nil {
		return nil
	}
	crossFile := 0
	for _, g := range result.Duplicates.Groups {
		if g.CrossFile {
			crossFile++
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.audit.RecordRun(ctx, audit.RunRecord{
		JobID:                  result.JobID,
		FileNames:              result.FileNames,
		TotalRows:              result.TotalRows,
		FieldsFilled:           result.Stats.FieldsFilled,
		AbbreviationsCorrected: result.Stats.AbbreviationsCorrected,
		FieldsProtected:        result.Stats.FieldsProtected,
		FieldsIgnored:          result.Stats.FieldsIgnored,
		DuplicateGroups:        len(result.Duplicates.Groups),
		CrossFileGroups:        crossFile,
		Partial:                result.Duplicates.Partial,
		Duration:               result.Duration,
	})
}

// RecentRuns proxies the audit history; empty when audit is disabled.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]audit.RunRecord, error) {
	return s.audit.RecentRuns(ctx, limit)
}

// AuditEnabled reports whether run history is being persisted.
func (s *Service) AuditEnabled() bool { return s.audit != nil }

// Progress returns the current progress of a job.
func (s *Service) Progress(jobID string) (Progress, bool) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return Progress{}, false
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.progress, true
}

// Result returns the final result of a job, or ok=false while it is still
// running or after it has been cleaned up.
func (s *Service) Result(jobID string) (*Result, bool) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	if job.result == nil {
		return nil, false
	}
	return job.result, true
}

// ActiveRuns returns the number of runs currently executing.
func (s *Service) ActiveRuns() int {
	return s.limiter.activeCount()
}

// WaitForRuns blocks until all active runs finish or ctx is done. Used
// during shutdown so in-flight batches are not abandoned mid-pipeline.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.waitForDrain(ctx)
}

// Wait blocks until the job finishes or ctx is done.
func (s *Service) Wait(ctx context.Context, jobID string) error {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job: %s", jobID)
	}
	select {
	case <-job.Done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelRun aborts the fuzzy phase of a running job. The job still
// completes, with whatever groups were found so far.
func (s *Service) CancelRun(jobID string) bool {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	job.Cancel()
	return true
}

// cleanup drops a finished job after the retention window.
func (s *Service) cleanup(jobID string, after time.Duration) {
	time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
	})
}

func (j *activeJob) setPhase(phase Phase, rows int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress.Phase = phase
	if rows > 0 {
		j.progress.TotalRows = rows
	}
}

func (j *activeJob) finish(phase Phase, result *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress.Phase = phase
	j.progress.TotalRows = result.TotalRows
	j.progress.Error = result.Error
	j.result = result
}
