package engine

import (
	"log/slog"
	"time"

	"genie-audit/internal/domain"
)

// Input is everything one audit run needs, fetched up front so report
// construction is pure and deterministic.
type Input struct {
	SpaceID                string
	Window                 domain.Window
	Conversations          []domain.Conversation
	MessagesByConversation map[string][]domain.Message
	Pool                   []domain.QueryExecution
	Sources                map[string]domain.SourceInfo // keyed by message ID
}

// Engine builds space reports from pre-fetched inputs.
type Engine struct {
	tuning Tuning
	logger *slog.Logger
}

func New(tuning Tuning, logger *slog.Logger) *Engine {
	tuning = tuning.Normalize()
	return &Engine{tuning: tuning, logger: logger.With("component", "engine")}
}

func (e *Engine) Tuning() Tuning { return e.tuning }

// BuildReport runs correlation, classification, overhead estimation, and
// aggregation over one space. Conversations are processed sequentially
// against a single claim set so a statement lands on at most one message
// across the whole run; running conversations concurrently would make
// assignment order nondeterministic.
func (e *Engine) BuildReport(in Input) *domain.SpaceReport {
	correlator := NewCorrelator(in.Pool, e.tuning.CorrelationWindow())
	claims := NewClaimSet()

	report := &domain.SpaceReport{
		SpaceID:       in.SpaceID,
		WindowStart:   in.Window.Start,
		WindowEnd:     in.Window.End,
		GeneratedAt:   time.Now().UTC(),
		Conversations: make([]domain.ConversationReport, 0, len(in.Conversations)),
	}

	for ci := range in.Conversations {
		conv := &in.Conversations[ci]
		messages := in.MessagesByConversation[conv.ConversationID]

		var msgReports []domain.MessageReport
		for mi := range messages {
			msg := &messages[mi]

			var source *domain.SourceInfo
			if s, ok := in.Sources[msg.MessageID]; ok {
				source = &s
			}

			userEmail := conv.UserEmail
			if source != nil && source.UserEmail != "" {
				userEmail = source.UserEmail
			}

			assigned := correlator.Resolve(msg, userEmail, claims)

			// System turns produce neither content nor statements; keeping
			// them would skew the response-time distribution.
			if msg.Content == "" && len(assigned) == 0 {
				continue
			}

			for i := range assigned {
				Classify(&assigned[i])
			}

			overheadSec := EstimateOverhead(msg, assigned, correlator.Pool(), source, e.tuning.OverheadSearchWindow())

			msgSource := domain.SourceUnknown
			if source != nil && source.Source != "" {
				msgSource = source.Source
			}

			msgReports = append(msgReports, buildMessageReport(msg, assigned, overheadSec, msgSource, e.tuning))
		}

		report.Conversations = append(report.Conversations, buildConversationReport(conv, msgReports))
	}

	e.logger.Info("report built",
		"space_id", in.SpaceID,
		"conversations", len(report.Conversations),
		"claimed_statements", claims.Len(),
		"pool_size", len(in.Pool))

	return report
}
