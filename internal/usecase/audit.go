package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"SejmAudit/internal/domain"
	"SejmAudit/internal/infrastructure/cache"
	"SejmAudit/internal/ports"
	"SejmAudit/internal/report"
	"SejmAudit/internal/risk"
	"SejmAudit/internal/tree"
)

// AuditorDeps wires all driven adapters into the audit orchestrator.
type AuditorDeps struct {
	Source     ports.MetadataSource
	Fetcher    ports.Fetcher
	Extractor  ports.Extractor
	Builder    *tree.Builder
	Engine     *risk.Engine
	Cache      *cache.Store
	Repository ports.AuditRepository
	Notifier   ports.Notifier
	Logger     *slog.Logger

	Workers             int
	DocWorkers          int
	DownloadAttachments bool
	OutputDir           string
}

// Auditor drives the per-process state machine across the requested scope
// with two bounded pools: an outer pool across processes and an inner pool
// across documents within one process (optical recognition is CPU-heavy and
// must not be over-subscribed). Failures below the process level never abort
// the run.
type Auditor struct {
	deps AuditorDeps
}

// NewAuditor constructs the orchestration component.
func NewAuditor(deps AuditorDeps) *Auditor {
	if deps.Workers <= 0 {
		deps.Workers = 4
	}
	if deps.DocWorkers <= 0 {
		deps.DocWorkers = 2
	}
	return &Auditor{deps: deps}
}

// checkpoint is the per-process resume marker kept in the cache directory.
type checkpoint struct {
	State     domain.ProcessState `json:"state"`
	MetaHash  string              `json:"metaHash"`
	DocHashes map[string]string   `json:"docHashes,omitempty"`
}

// Run audits the requested scope. Linked sub-processes are traversed
// breadth-first with a visited set, so circular references terminate and
// every process is reported exactly once.
func (a *Auditor) Run(ctx context.Context, scope domain.RunScope) (*domain.AuditRun, error) {
	run := &domain.AuditRun{Scope: scope, Started: time.Now().UTC()}

	frontier, err := a.seedScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		visited = map[domain.ProcessID]struct{}{}
	)
	for _, id := range frontier {
		visited[id] = struct{}{}
	}

	for len(frontier) > 0 && ctx.Err() == nil {
		var next []domain.ProcessID

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.deps.Workers)

		for _, id := range frontier {
			id := id
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				outcome, links := a.auditProcess(gctx, id)

				mu.Lock()
				run.Outcomes = append(run.Outcomes, outcome)
				for _, l := range links {
					if _, seen := visited[l.ID]; !seen {
						visited[l.ID] = struct{}{}
						next = append(next, l.ID)
					}
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			// Cancellation: stop submitting new work; completed outcomes stay.
			break
		}
		frontier = next
	}

	run.Finished = time.Now().UTC()
	a.finishRun(ctx, run)
	return run, nil
}

func (a *Auditor) seedScope(ctx context.Context, scope domain.RunScope) ([]domain.ProcessID, error) {
	if scope.SingleProcess() {
		return []domain.ProcessID{{Term: scope.Term, Number: scope.Number}}, nil
	}

	headers, err := a.deps.Source.ListProcesses(ctx, scope.Term)
	if err != nil {
		return nil, fmt.Errorf("list term %d: %w", scope.Term, err)
	}
	ids := make([]domain.ProcessID, 0, len(headers))
	for _, h := range headers {
		ids = append(ids, h.ID)
	}
	a.info("scope resolved", "term", scope.Term, "processes", len(ids))
	return ids, nil
}

// auditProcess walks one process through the state machine. Any error after
// retry exhaustion lands in the FAILED absorbing state; document-level
// failures degrade the outcome to partial instead.
func (a *Auditor) auditProcess(ctx context.Context, id domain.ProcessID) (domain.ProcessOutcome, []domain.ProcessLink) {
	cp := a.loadCheckpoint(id)
	if cp.State != domain.StatePending && cp.State != domain.StateDone && cp.State != domain.StateFailed {
		a.info("resuming interrupted process", "process", id.String(), "state", string(cp.State))
	}
	cp.State = domain.StateFetchingMetadata
	a.saveCheckpoint(id, cp)

	rawJSON, raw, err := a.fetchMetadata(ctx, id)
	if err != nil {
		return a.fail(id, cp, fmt.Sprintf("metadata: %v", err)), nil
	}
	metaHash := cache.HashBytes(rawJSON)
	cp.MetaHash = metaHash

	auditKey := id.String() + "@" + metaHash
	if a.deps.Repository != nil {
		done, err := a.deps.Repository.AlreadyAudited(ctx, []string{auditKey})
		if err != nil {
			a.info("history lookup failed", "process", id.String(), "error", err)
		} else if done[auditKey] {
			// Skip re-scoring only. Linked processes may have changed even
			// though this one did not, so graph expansion continues.
			a.info("unchanged since last audit", "process", id.String())
			links := a.deps.Builder.Build(raw).Links
			return domain.ProcessOutcome{ID: id, Status: domain.OutcomeSuccess, Reason: "unchanged since last audit"}, links
		}
	}

	cp.State = domain.StateBuildingTree
	a.saveCheckpoint(id, cp)
	process := a.deps.Builder.Build(raw)

	docsFailed := 0
	if a.deps.DownloadAttachments {
		cp.State = domain.StateFetchingDocs
		a.saveCheckpoint(id, cp)
		docsFailed = a.processDocuments(ctx, id, &cp, process.AllDocuments())
	}

	cp.State = domain.StateScoring
	a.saveCheckpoint(id, cp)
	assessment := a.deps.Engine.Assess(process, time.Now().UTC())

	if err := a.emitArtifacts(process, assessment); err != nil {
		return a.fail(id, cp, fmt.Sprintf("emit artifacts: %v", err)), process.Links
	}

	status := domain.OutcomeSuccess
	reason := ""
	if docsFailed > 0 {
		status = domain.OutcomePartial
		reason = fmt.Sprintf("%d of %d documents without text", docsFailed, len(process.AllDocuments()))
	}

	if a.deps.Repository != nil {
		if err := a.deps.Repository.SaveAssessment(ctx, auditKey, assessment, status); err != nil {
			a.info("history save failed", "process", id.String(), "error", err)
		}
	}

	cp.State = domain.StateDone
	a.saveCheckpoint(id, cp)
	a.info("process audited", "process", id.String(), "score", assessment.Score, "status", string(status))

	return domain.ProcessOutcome{ID: id, Status: status, Reason: reason, Score: assessment.Score}, process.Links
}

// fetchMetadata reads the raw metadata JSON from the cache or the source.
// The cached bytes are the canonical input: re-running on an unchanged cache
// yields a byte-identical tree.
func (a *Auditor) fetchMetadata(ctx context.Context, id domain.ProcessID) ([]byte, domain.RawProcess, error) {
	key := "meta:" + id.String()

	if data, ok := a.deps.Cache.Get(key); ok {
		var raw domain.RawProcess
		if err := json.Unmarshal(data, &raw); err == nil {
			return data, raw, nil
		}
		// Corrupt entry: drop it and refetch.
		_ = a.deps.Cache.Delete(key)
	}

	raw, err := a.deps.Source.ProcessMetadata(ctx, id)
	if err != nil {
		return nil, domain.RawProcess{}, err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, domain.RawProcess{}, fmt.Errorf("encode metadata: %w", err)
	}
	if err := a.deps.Cache.Put(key, data); err != nil {
		a.info("metadata cache write failed", "process", id.String(), "error", err)
	}
	return data, raw, nil
}

// processDocuments fetches and extracts every attachment with the inner
// bounded pool. Returns how many documents ended without text; document
// failures never abort the process.
func (a *Auditor) processDocuments(ctx context.Context, id domain.ProcessID, cp *checkpoint, docs []*domain.Document) int {
	if cp.DocHashes == nil {
		cp.DocHashes = map[string]string{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.deps.DocWorkers)

	var mu sync.Mutex
	failed := 0

	for _, doc := range docs {
		doc := doc
		mu.Lock()
		wantHash := cp.DocHashes[doc.URL]
		mu.Unlock()
		g.Go(func() error {
			a.handleDocument(gctx, doc, wantHash)

			mu.Lock()
			if doc.SHA256 != "" {
				cp.DocHashes[doc.URL] = doc.SHA256
			}
			if !doc.HasText() {
				failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	cp.State = domain.StateExtracting
	a.saveCheckpoint(id, *cp)
	return failed
}

// handleDocument resolves one attachment. wantHash is the content hash the
// checkpoint recorded for this URL; cached bytes that no longer match it are
// discarded and refetched.
func (a *Auditor) handleDocument(ctx context.Context, doc *domain.Document, wantHash string) {
	data, ok := a.deps.Cache.Get("doc:" + doc.URL)
	if ok && wantHash != "" && cache.HashBytes(data) != wantHash {
		a.info("cached document diverged from checkpoint", "url", doc.URL)
		_ = a.deps.Cache.Delete("doc:" + doc.URL)
		ok = false
	}
	if !ok {
		var err error
		data, err = a.deps.Fetcher.Fetch(ctx, doc.URL)
		if err != nil {
			doc.FetchErr = err.Error()
			return
		}
		if err := a.deps.Cache.Put("doc:"+doc.URL, data); err != nil {
			a.info("document cache write failed", "url", doc.URL, "error", err)
		}
	}

	doc.Bytes = data
	doc.Size = int64(len(data))
	doc.SHA256 = cache.HashBytes(data)
	defer doc.ReleaseBytes()

	res, err := a.deps.Extractor.Extract(ctx, doc.Bytes, doc.MediaType)
	if err != nil {
		doc.ExtractErr = err.Error()
		return
	}
	doc.Text = res.Text
	doc.Method = res.Method
	doc.Confidence = res.Confidence
	doc.Author = res.Author
	doc.FileDate = res.FileDate
}

// emitArtifacts writes the four per-process artifacts atomically (temp file
// then rename) so cancellation never leaves a torn file behind.
func (a *Auditor) emitArtifacts(p domain.Process, assessment domain.RiskAssessment) error {
	dir := filepath.Join(a.deps.OutputDir, fmt.Sprintf("term%d", p.ID.Term), p.ID.Number)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	generatedAt := assessment.SnapshotAt

	raw, err := report.RenderJSON(p, assessment, generatedAt)
	if err != nil {
		return err
	}

	files := map[string][]byte{
		"process.json":  raw,
		"structure.txt": []byte(report.RenderStructureTree(p, generatedAt)),
		"timeline.txt":  []byte(report.RenderTimeline(p, generatedAt)),
		"summary.txt":   []byte(report.RenderSummary(p, assessment, generatedAt)),
	}
	for name, data := range files {
		if err := writeFileAtomic(filepath.Join(dir, name), data); err != nil {
			return err
		}
	}
	return nil
}

func (a *Auditor) finishRun(ctx context.Context, run *domain.AuditRun) {
	summary := report.RenderRunSummary(*run)

	if a.deps.OutputDir != "" {
		if err := os.MkdirAll(a.deps.OutputDir, 0o755); err == nil {
			path := filepath.Join(a.deps.OutputDir, "run_summary.txt")
			if err := writeFileAtomic(path, []byte(summary)); err != nil {
				a.info("run summary write failed", "error", err)
			}
		}
	}

	if a.deps.Notifier != nil {
		if err := a.deps.Notifier.PublishSummary(ctx, summary); err != nil {
			a.info("summary notification failed", "error", err)
		}
	}
}

func (a *Auditor) fail(id domain.ProcessID, cp checkpoint, reason string) domain.ProcessOutcome {
	cp.State = domain.StateFailed
	a.saveCheckpoint(id, cp)
	a.info("process failed", "process", id.String(), "reason", reason)
	return domain.ProcessOutcome{ID: id, Status: domain.OutcomeFailed, Reason: reason}
}

func (a *Auditor) loadCheckpoint(id domain.ProcessID) checkpoint {
	var cp checkpoint
	if data, ok := a.deps.Cache.Get("checkpoint:" + id.String()); ok {
		if err := json.Unmarshal(data, &cp); err == nil {
			return cp
		}
	}
	return checkpoint{State: domain.StatePending}
}

func (a *Auditor) saveCheckpoint(id domain.ProcessID, cp checkpoint) {
	data, err := json.Marshal(cp)
	if err != nil {
		return
	}
	if err := a.deps.Cache.Put("checkpoint:"+id.String(), data); err != nil {
		a.info("checkpoint write failed", "process", id.String(), "error", err)
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func (a *Auditor) info(msg string, args ...any) {
	if a.deps.Logger != nil {
		a.deps.Logger.Info(msg, args...)
	}
}
