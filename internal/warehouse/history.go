package warehouse

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"genie-audit/internal/domain"
)

// historyRequest is the filter payload for the statement-history endpoint.
type historyRequest struct {
	FilterBy       historyFilter `json:"filter_by"`
	MaxResults     int           `json:"max_results"`
	PageToken      string        `json:"page_token,omitempty"`
	IncludeMetrics bool          `json:"include_metrics"`
}

type historyFilter struct {
	QueryStartTimeRange *timeRange `json:"query_start_time_range,omitempty"`
	StatementIDs        []string   `json:"statement_ids,omitempty"`
	SpaceIDs            []string   `json:"space_ids,omitempty"`
}

type timeRange struct {
	StartTimeMs int64 `json:"start_time_ms"`
	EndTimeMs   int64 `json:"end_time_ms"`
}

type historyResponse struct {
	Res           []historyRecord `json:"res"`
	NextPageToken string          `json:"next_page_token,omitempty"`
	HasNextPage   bool            `json:"has_next_page,omitempty"`
}

// historyRecord is the wire shape of one statement history entry. Metric
// fields arrive untyped in some API versions, so they are coerced rather
// than decoded strictly.
type historyRecord struct {
	StatementID   string         `json:"statement_id"`
	StatementText string         `json:"statement_text"`
	StartTimeMs   int64          `json:"start_time_ms"`
	DurationMs    int64          `json:"duration"`
	ExecutedBy    string         `json:"executed_by"`
	Status        string         `json:"status"`
	Metrics       historyMetrics `json:"metrics"`
	QuerySource   querySource    `json:"query_source"`
}

type historyMetrics struct {
	TotalTimeMs       interface{} `json:"total_time_ms"`
	CompilationTimeMs interface{} `json:"compilation_time_ms"`
	ExecutionTimeMs   interface{} `json:"execution_time_ms"`
	QueueWaitMs       interface{} `json:"overloading_queue_start_timestamp_duration_ms"`
	ComputeWaitMs     interface{} `json:"provisioning_queue_start_timestamp_duration_ms"`
	ResultFetchMs     interface{} `json:"result_fetch_time_ms"`
	ReadBytes         interface{} `json:"read_bytes"`
	RowsRead          interface{} `json:"rows_read_count"`
	RowsProduced      interface{} `json:"rows_produced_count"`
}

type querySource struct {
	SpaceID        string `json:"genie_space_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (r *historyRecord) toDomain() domain.QueryExecution {
	totalMs := domain.CoerceInt64(r.Metrics.TotalTimeMs, r.DurationMs)
	return domain.QueryExecution{
		StatementID:     r.StatementID,
		QueryText:       r.StatementText,
		StartTime:       time.UnixMilli(r.StartTimeMs).UTC(),
		TotalDurationMs: totalMs,
		CompilationMs:   domain.CoerceInt64(r.Metrics.CompilationTimeMs, 0),
		ExecutionMs:     domain.CoerceInt64(r.Metrics.ExecutionTimeMs, 0),
		QueueWaitMs:     domain.CoerceInt64(r.Metrics.QueueWaitMs, 0),
		ComputeWaitMs:   domain.CoerceInt64(r.Metrics.ComputeWaitMs, 0),
		ResultFetchMs:   domain.CoerceInt64(r.Metrics.ResultFetchMs, 0),
		BytesScanned:    domain.CoerceInt64(r.Metrics.ReadBytes, 0),
		RowsScanned:     domain.CoerceInt64(r.Metrics.RowsRead, 0),
		RowsReturned:    domain.CoerceInt64(r.Metrics.RowsProduced, 0),
		ExecutedBy:      r.ExecutedBy,
		ConversationID:  r.QuerySource.ConversationID,
		ExecutionStatus: r.Status,
	}
}

// FetchQueries returns all statement executions for the space within the
// window, following pagination until exhausted.
func (c *Client) FetchQueries(ctx context.Context, spaceID string, window domain.Window) ([]domain.QueryExecution, error) {
	req := historyRequest{
		FilterBy: historyFilter{
			QueryStartTimeRange: &timeRange{
				StartTimeMs: window.Start.UnixMilli(),
				EndTimeMs:   window.End.UnixMilli(),
			},
			SpaceIDs: []string{spaceID},
		},
		MaxResults:     pageSize,
		IncludeMetrics: true,
	}
	return c.fetchHistoryPages(ctx, req)
}

// FetchQueriesByIDs performs bulk point lookups, chunked to the endpoint's
// filter-size limit. Chunks are fetched concurrently and the union is
// deduplicated by statement ID.
func (c *Client) FetchQueriesByIDs(ctx context.Context, statementIDs []string) ([]domain.QueryExecution, error) {
	if len(statementIDs) == 0 {
		return nil, nil
	}

	var (
		mu  sync.Mutex
		all []domain.QueryExecution
	)
	g, gctx := errgroup.WithContext(ctx)

	for start := 0; start < len(statementIDs); start += maxIDsPerRequest {
		end := start + maxIDsPerRequest
		if end > len(statementIDs) {
			end = len(statementIDs)
		}
		chunk := statementIDs[start:end]

		g.Go(func() error {
			req := historyRequest{
				FilterBy:       historyFilter{StatementIDs: chunk},
				MaxResults:     pageSize,
				IncludeMetrics: true,
			}
			queries, err := c.fetchHistoryPages(gctx, req)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, queries...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(all))
	out := all[:0]
	for _, q := range all {
		if _, ok := seen[q.StatementID]; ok {
			continue
		}
		seen[q.StatementID] = struct{}{}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StatementID < out[j].StatementID })
	return out, nil
}

func (c *Client) fetchHistoryPages(ctx context.Context, req historyRequest) ([]domain.QueryExecution, error) {
	var out []domain.QueryExecution
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		var page historyResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&page).
			Post(historyPath)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, apiError("fetch history", resp)
		}

		for i := range page.Res {
			out = append(out, page.Res[i].toDomain())
		}

		if page.NextPageToken == "" {
			break
		}
		req.PageToken = page.NextPageToken
	}

	c.logger.Debug("history fetched", "count", len(out))
	return out, nil
}
