// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"

	"genie-audit/internal/domain"
)

// === Query History Source Mock ===

// MockQueryHistorySource implements domain.QueryHistorySource for testing.
type MockQueryHistorySource struct {
	FetchQueriesFn      func(ctx context.Context, spaceID string, window domain.Window) ([]domain.QueryExecution, error)
	FetchQueriesByIDsFn func(ctx context.Context, statementIDs []string) ([]domain.QueryExecution, error)
}

func (m *MockQueryHistorySource) FetchQueries(ctx context.Context, spaceID string, window domain.Window) ([]domain.QueryExecution, error) {
	if m.FetchQueriesFn != nil {
		return m.FetchQueriesFn(ctx, spaceID, window)
	}
	return nil, nil
}

func (m *MockQueryHistorySource) FetchQueriesByIDs(ctx context.Context, statementIDs []string) ([]domain.QueryExecution, error) {
	if m.FetchQueriesByIDsFn != nil {
		return m.FetchQueriesByIDsFn(ctx, statementIDs)
	}
	return nil, nil
}

// === Conversation Source Mock ===

// MockConversationSource implements domain.ConversationSource for testing.
type MockConversationSource struct {
	FetchConversationsFn func(ctx context.Context, spaceID string, maxCount int) ([]domain.Conversation, error)
	FetchMessagesFn      func(ctx context.Context, spaceID, conversationID string) ([]domain.Message, error)
}

func (m *MockConversationSource) FetchConversations(ctx context.Context, spaceID string, maxCount int) ([]domain.Conversation, error) {
	if m.FetchConversationsFn != nil {
		return m.FetchConversationsFn(ctx, spaceID, maxCount)
	}
	return nil, nil
}

func (m *MockConversationSource) FetchMessages(ctx context.Context, spaceID, conversationID string) ([]domain.Message, error) {
	if m.FetchMessagesFn != nil {
		return m.FetchMessagesFn(ctx, spaceID, conversationID)
	}
	return nil, nil
}

// === Message Source Provider Mock ===

// MockMessageSourceProvider implements domain.MessageSourceProvider for testing.
type MockMessageSourceProvider struct {
	FetchMessageSourcesFn func(ctx context.Context, spaceID string, window domain.Window) (map[string]domain.SourceInfo, error)
}

func (m *MockMessageSourceProvider) FetchMessageSources(ctx context.Context, spaceID string, window domain.Window) (map[string]domain.SourceInfo, error) {
	if m.FetchMessageSourcesFn != nil {
		return m.FetchMessageSourcesFn(ctx, spaceID, window)
	}
	return map[string]domain.SourceInfo{}, nil
}

// === Run Repository Mock ===

// MockRunRepo implements domain.RunRepository for testing. Saved runs are
// collected in memory for assertions.
type MockRunRepo struct {
	SaveRunFn   func(ctx context.Context, run *domain.AuditRun) error
	GetRunFn    func(ctx context.Context, id string) (*domain.AuditRun, error)
	LatestRunFn func(ctx context.Context, spaceID string) (*domain.AuditRun, error)
	ListRunsFn  func(ctx context.Context, filter domain.RunFilter) ([]domain.AuditRun, int64, error)
	Runs        []*domain.AuditRun // collected runs for assertions
}

func (m *MockRunRepo) SaveRun(ctx context.Context, run *domain.AuditRun) error {
	if m.SaveRunFn != nil {
		if err := m.SaveRunFn(ctx, run); err != nil {
			return err
		}
	}
	if run.ID == "" {
		run.ID = "run-mock"
	}
	m.Runs = append(m.Runs, run)
	return nil
}

func (m *MockRunRepo) GetRun(ctx context.Context, id string) (*domain.AuditRun, error) {
	if m.GetRunFn != nil {
		return m.GetRunFn(ctx, id)
	}
	for _, run := range m.Runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, domain.ErrNotFound("audit run %s not found", id)
}

func (m *MockRunRepo) LatestRun(ctx context.Context, spaceID string) (*domain.AuditRun, error) {
	if m.LatestRunFn != nil {
		return m.LatestRunFn(ctx, spaceID)
	}
	for i := len(m.Runs) - 1; i >= 0; i-- {
		if m.Runs[i].SpaceID == spaceID {
			return m.Runs[i], nil
		}
	}
	return nil, domain.ErrNotFound("no audit runs for space %s", spaceID)
}

func (m *MockRunRepo) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.AuditRun, int64, error) {
	if m.ListRunsFn != nil {
		return m.ListRunsFn(ctx, filter)
	}
	var out []domain.AuditRun
	for _, run := range m.Runs {
		if filter.SpaceID != nil && run.SpaceID != *filter.SpaceID {
			continue
		}
		out = append(out, *run)
	}
	return out, int64(len(out)), nil
}

// LastRun returns the last saved run, or nil if none.
func (m *MockRunRepo) LastRun() *domain.AuditRun {
	if len(m.Runs) == 0 {
		return nil
	}
	return m.Runs[len(m.Runs)-1]
}
