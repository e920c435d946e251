package warehouse

import (
	"context"
	"fmt"

	"genie-audit/internal/domain"
)

// The audit-log query correlates message-submission events with the first
// statement-execution event per message. Timestamps in the log are epoch
// milliseconds; the overhead is the submit-to-execute gap in seconds.
const messageSourcesSQL = `
SELECT
  request_params.message_id AS message_id,
  MIN(CASE WHEN action_name = 'executeMessageAttachmentQuery'
           THEN (event_epoch_ms - submit_epoch_ms) / 1000.0 END) AS ai_overhead_sec,
  MAX(user_identity.email) AS user_email,
  MAX(CASE WHEN request_params.client_type = 'API' THEN 'API' ELSE 'Space' END) AS source,
  MIN(submit_epoch_ms) AS timestamp_ms
FROM system.access.audit
WHERE service_name = 'genie'
  AND request_params.space_id = '%s'
  AND event_time >= from_unixtime(%d / 1000)
  AND event_time <= from_unixtime(%d / 1000)
GROUP BY request_params.message_id`

type statementRequest struct {
	WarehouseID string `json:"warehouse_id"`
	Statement   string `json:"statement"`
	WaitTimeout string `json:"wait_timeout"`
}

type statementResponse struct {
	Status struct {
		State string `json:"state"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"status"`
	Result struct {
		DataArray [][]interface{} `json:"data_array"`
	} `json:"result"`
}

// FetchMessageSources runs the audit-log correlation query and returns
// fallback data keyed by message ID. Returns an empty map when no SQL
// warehouse is configured; the audit path is an optional enrichment, not a
// hard dependency.
func (c *Client) FetchMessageSources(ctx context.Context, spaceID string, window domain.Window) (map[string]domain.SourceInfo, error) {
	out := make(map[string]domain.SourceInfo)
	if c.sqlWarehouseID == "" {
		return out, nil
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req := statementRequest{
		WarehouseID: c.sqlWarehouseID,
		Statement:   fmt.Sprintf(messageSourcesSQL, spaceID, window.Start.UnixMilli(), window.End.UnixMilli()),
		WaitTimeout: "30s",
	}

	var result statementResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post(statementsPath)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError("fetch message sources", resp)
	}
	if result.Status.State == "FAILED" {
		return nil, fmt.Errorf("fetch message sources: audit query failed: %s", result.Status.Error.Message)
	}

	for _, row := range result.Result.DataArray {
		if len(row) < 5 {
			continue
		}
		messageID, _ := row[0].(string)
		if messageID == "" {
			continue
		}
		email, _ := row[2].(string)
		source, _ := row[3].(string)
		out[messageID] = domain.SourceInfo{
			AIOverheadSec: domain.CoerceFloat64(row[1], 0),
			UserEmail:     email,
			Source:        source,
			TimestampMs:   domain.CoerceInt64(row[4], 0),
		}
	}

	c.logger.Debug("message sources fetched", "space_id", spaceID, "count", len(out))
	return out, nil
}
