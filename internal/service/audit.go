// Package service orchestrates audit runs: fetching platform data, running
// the correlation engine, and persisting run snapshots.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"genie-audit/internal/domain"
	"genie-audit/internal/engine"
)

// messageFetchConcurrency bounds parallel per-conversation message fetches.
// The warehouse client rate-limits underneath; this just keeps goroutine
// fan-out proportional to useful work.
const messageFetchConcurrency = 4

// AuditService runs audits and serves stored reports.
type AuditService struct {
	history       domain.QueryHistorySource
	conversations domain.ConversationSource
	sources       domain.MessageSourceProvider
	runs          domain.RunRepository
	engine        *engine.Engine
	logger        *slog.Logger

	windowHours      float64
	maxConversations int

	mu      sync.Mutex
	running map[string]bool // space ID -> audit in progress
}

// NewAuditService wires the audit orchestrator.
func NewAuditService(
	history domain.QueryHistorySource,
	conversations domain.ConversationSource,
	sources domain.MessageSourceProvider,
	runs domain.RunRepository,
	eng *engine.Engine,
	windowHours float64,
	maxConversations int,
	logger *slog.Logger,
) *AuditService {
	if windowHours <= 0 {
		windowHours = 24
	}
	if maxConversations <= 0 {
		maxConversations = 100
	}
	return &AuditService{
		history:          history,
		conversations:    conversations,
		sources:          sources,
		runs:             runs,
		engine:           eng,
		logger:           logger.With("component", "audit"),
		windowHours:      windowHours,
		maxConversations: maxConversations,
		running:          make(map[string]bool),
	}
}

// RunAudit performs one full audit of a space and persists the snapshot.
// At most one audit per space runs at a time; a second request while one is
// in flight is a conflict.
func (s *AuditService) RunAudit(ctx context.Context, spaceID string, windowHours float64) (*domain.AuditRun, error) {
	if spaceID == "" {
		return nil, domain.ErrValidation("space_id is required")
	}
	if windowHours <= 0 {
		windowHours = s.windowHours
	}

	s.mu.Lock()
	if s.running[spaceID] {
		s.mu.Unlock()
		return nil, domain.ErrConflict("audit already running for space %s", spaceID)
	}
	s.running[spaceID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, spaceID)
		s.mu.Unlock()
	}()

	startedAt := time.Now().UTC()
	window := domain.WindowEnding(startedAt, windowHours)

	input, err := s.collect(ctx, spaceID, window)
	if err != nil {
		return nil, err
	}

	report := s.engine.BuildReport(*input)

	queryCount := 0
	for i := range report.Conversations {
		queryCount += report.Conversations[i].TotalQueries
	}

	run := &domain.AuditRun{
		SpaceID:           spaceID,
		WindowHours:       windowHours,
		StartedAt:         startedAt,
		FinishedAt:        time.Now().UTC(),
		ConversationCount: len(report.Conversations),
		QueryCount:        queryCount,
		Report:            report,
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info("audit complete",
		"space_id", spaceID,
		"run_id", run.ID,
		"conversations", run.ConversationCount,
		"queries", run.QueryCount,
		"elapsed", run.FinishedAt.Sub(run.StartedAt))
	return run, nil
}

// collect gathers every input the engine needs for one space window.
func (s *AuditService) collect(ctx context.Context, spaceID string, window domain.Window) (*engine.Input, error) {
	conversations, err := s.conversations.FetchConversations(ctx, spaceID, s.maxConversations)
	if err != nil {
		return nil, err
	}

	pool, err := s.history.FetchQueries(ctx, spaceID, window)
	if err != nil {
		return nil, err
	}

	var (
		msgMu    sync.Mutex
		messages = make(map[string][]domain.Message, len(conversations))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(messageFetchConcurrency)
	for _, conv := range conversations {
		convID := conv.ConversationID
		g.Go(func() error {
			msgs, err := s.conversations.FetchMessages(gctx, spaceID, convID)
			if err != nil {
				return err
			}
			msgMu.Lock()
			messages[convID] = msgs
			msgMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Directly referenced statements can predate the window or belong to
	// other users, so any reference missing from the bulk fetch is looked up
	// individually.
	if missing := missingReferences(messages, pool); len(missing) > 0 {
		extra, err := s.history.FetchQueriesByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		pool = append(pool, extra...)
	}

	// Audit-log enrichment is best effort: a space without audit access
	// still gets a report, just with weaker user and source attribution.
	sources, err := s.sources.FetchMessageSources(ctx, spaceID, window)
	if err != nil {
		s.logger.Warn("message source lookup failed", "space_id", spaceID, "error", err)
		sources = map[string]domain.SourceInfo{}
	}

	return &engine.Input{
		SpaceID:                spaceID,
		Window:                 window,
		Conversations:          conversations,
		MessagesByConversation: messages,
		Pool:                   pool,
		Sources:                sources,
	}, nil
}

// missingReferences returns attachment statement IDs absent from the pool.
func missingReferences(messages map[string][]domain.Message, pool []domain.QueryExecution) []string {
	inPool := make(map[string]struct{}, len(pool))
	for i := range pool {
		inPool[pool[i].StatementID] = struct{}{}
	}

	seen := make(map[string]struct{})
	var missing []string
	for _, msgs := range messages {
		for i := range msgs {
			for _, att := range msgs[i].Attachments {
				id := att.StatementID
				if id == "" {
					continue
				}
				if _, ok := inPool[id]; ok {
					continue
				}
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				missing = append(missing, id)
			}
		}
	}
	return missing
}

// LatestReport returns the most recent stored report for a space.
func (s *AuditService) LatestReport(ctx context.Context, spaceID string) (*domain.SpaceReport, error) {
	if spaceID == "" {
		return nil, domain.ErrValidation("space_id is required")
	}
	run, err := s.runs.LatestRun(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	return run.Report, nil
}

// GetRun returns one stored run snapshot by ID.
func (s *AuditService) GetRun(ctx context.Context, id string) (*domain.AuditRun, error) {
	if id == "" {
		return nil, domain.ErrValidation("run id is required")
	}
	return s.runs.GetRun(ctx, id)
}

// ListRuns returns stored run metadata, newest first.
func (s *AuditService) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.AuditRun, int64, error) {
	return s.runs.ListRuns(ctx, filter)
}

// ConversationReport returns one conversation from the latest stored report.
func (s *AuditService) ConversationReport(ctx context.Context, spaceID, conversationID string) (*domain.ConversationReport, error) {
	report, err := s.LatestReport(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	for i := range report.Conversations {
		if report.Conversations[i].ConversationID == conversationID {
			return &report.Conversations[i], nil
		}
	}
	return nil, domain.ErrNotFound("conversation %s not found in latest report for space %s", conversationID, spaceID)
}

// QueryDetail is a single statement's full diagnosis: classification,
// phase timeline, tuning recommendations, and investigation SQL.
type QueryDetail struct {
	Query          domain.QueryExecution    `json:"query"`
	AIOverheadSec  float64                  `json:"ai_overhead_sec"`
	Timeline       []domain.TimelinePhase   `json:"timeline"`
	Optimizations  []domain.Optimization    `json:"optimizations"`
	Diagnostics    []domain.DiagnosticQuery `json:"diagnostics"`
	Recommendation string                   `json:"recommendation"`
}

// QueryDetailReport locates a statement in the latest stored report and
// builds its full diagnosis.
func (s *AuditService) QueryDetailReport(ctx context.Context, spaceID, statementID string) (*QueryDetail, error) {
	report, err := s.LatestReport(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	for ci := range report.Conversations {
		conv := &report.Conversations[ci]
		for mi := range conv.Messages {
			msg := &conv.Messages[mi]
			for qi := range msg.Queries {
				q := &msg.Queries[qi]
				if q.StatementID != statementID {
					continue
				}
				return &QueryDetail{
					Query:          *q,
					AIOverheadSec:  msg.AIOverheadSec,
					Timeline:       engine.Timeline(q),
					Optimizations:  engine.Optimizations(q, msg.AIOverheadSec),
					Diagnostics:    engine.DiagnosticQueries(q, spaceID),
					Recommendation: engine.RecommendationFor(q.Bottleneck),
				}, nil
			}
		}
	}
	return nil, domain.ErrNotFound("statement %s not found in latest report for space %s", statementID, spaceID)
}
