package warehouse

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genie-audit/internal/config"
	"genie-audit/internal/domain"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.WarehouseConfig{
		Host:           server.URL,
		Token:          "test-token",
		SQLWarehouseID: "wh-1",
		RateRPS:        1000,
		RateBurst:      1000,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchQueries(t *testing.T) {
	t.Run("maps_metrics_and_follows_pagination", func(t *testing.T) {
		calls := 0
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/2.0/sql/history/queries", r.URL.Path)
			require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			var req historyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotNil(t, req.FilterBy.QueryStartTimeRange)
			assert.Equal(t, []string{"space-1"}, req.FilterBy.SpaceIDs)

			calls++
			w.Header().Set("Content-Type", "application/json")
			if calls == 1 {
				assert.Empty(t, req.PageToken)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"res": []map[string]interface{}{{
						"statement_id":   "s1",
						"statement_text": "SELECT 1",
						"start_time_ms":  1700000000000,
						"duration":       5000,
						"executed_by":    "alice@example.com",
						"status":         "FINISHED",
						"metrics": map[string]interface{}{
							"total_time_ms":       "5200",
							"compilation_time_ms": 300,
							"execution_time_ms":   4500.0,
							"read_bytes":          2048,
						},
						"query_source": map[string]interface{}{
							"genie_space_id":  "space-1",
							"conversation_id": "conv-1",
						},
					}},
					"next_page_token": "page-2",
				})
				return
			}
			assert.Equal(t, "page-2", req.PageToken)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"res": []map[string]interface{}{{
					"statement_id": "s2",
					"duration":     100,
					"status":       "FAILED",
				}},
			})
		}))

		window := domain.WindowEnding(time.Now(), 24)
		got, err := client.FetchQueries(context.Background(), "space-1", window)
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, "s1", got[0].StatementID)
		assert.Equal(t, int64(5200), got[0].TotalDurationMs, "string metric coerced")
		assert.Equal(t, int64(300), got[0].CompilationMs)
		assert.Equal(t, int64(4500), got[0].ExecutionMs)
		assert.Equal(t, int64(2048), got[0].BytesScanned)
		assert.Equal(t, "conv-1", got[0].ConversationID)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), got[0].StartTime)

		assert.Equal(t, int64(100), got[1].TotalDurationMs, "falls back to duration without metrics")
	})

	t.Run("api_error_surfaces", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"bad filter"}`, http.StatusBadRequest)
		}))
		_, err := client.FetchQueries(context.Background(), "space-1", domain.Window{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}

func TestFetchQueriesByIDs(t *testing.T) {
	t.Run("empty_input_skips_request", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		}))
		got, err := client.FetchQueriesByIDs(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("chunks_and_deduplicates", func(t *testing.T) {
		ids := make([]string, 0, 150)
		for i := 0; i < 150; i++ {
			ids = append(ids, "s-"+string(rune('a'+i%26))+"-"+string(rune('0'+i/26)))
		}

		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req historyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.LessOrEqual(t, len(req.FilterBy.StatementIDs), 100)

			res := make([]map[string]interface{}, 0, len(req.FilterBy.StatementIDs)+1)
			for _, id := range req.FilterBy.StatementIDs {
				res = append(res, map[string]interface{}{"statement_id": id, "status": "FINISHED"})
			}
			// Duplicate entry in every chunk's response.
			res = append(res, map[string]interface{}{"statement_id": ids[0], "status": "FINISHED"})

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"res": res})
		}))

		got, err := client.FetchQueriesByIDs(context.Background(), ids)
		require.NoError(t, err)
		assert.Len(t, got, 150)
	})
}

func TestFetchConversations(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/2.0/genie/spaces/space-1/conversations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page_token") == "" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"conversations": []map[string]interface{}{
					{"conversation_id": "conv-1", "title": "Revenue", "user_email": "alice@example.com"},
					{"id": "conv-2", "title": "Churn"},
				},
				"next_page_token": "p2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"conversations": []map[string]interface{}{
				{"conversation_id": "conv-3", "title": "Growth"},
			},
		})
	}))

	t.Run("follows_pagination_and_alternate_id_field", func(t *testing.T) {
		got, err := client.FetchConversations(context.Background(), "space-1", 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "conv-1", got[0].ConversationID)
		assert.Equal(t, "conv-2", got[1].ConversationID)
	})

	t.Run("max_count_truncates", func(t *testing.T) {
		got, err := client.FetchConversations(context.Background(), "space-1", 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestFetchMessages(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/2.0/genie/spaces/space-1/conversations/conv-1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]interface{}{{
				"message_id":        "m1",
				"content":           "total revenue",
				"status":            "COMPLETED",
				"created_timestamp": 1700000000000,
				"attachments": []map[string]interface{}{
					{"attachment_id": "a1", "query": map[string]interface{}{"statement_id": "s1", "query": "SELECT 1"}},
					{"attachment_id": "a2", "text": map[string]interface{}{"content": "here you go"}},
				},
			}},
		})
	}))

	got, err := client.FetchMessages(context.Background(), "space-1", "conv-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].MessageID)
	assert.Equal(t, "conv-1", got[0].ConversationID, "conversation ID backfilled")
	require.Len(t, got[0].Attachments, 2)
	assert.Equal(t, "s1", got[0].Attachments[0].StatementID)
	assert.Equal(t, "text", got[0].Attachments[1].Type)
}

func TestFetchMessageSources(t *testing.T) {
	t.Run("parses_rows", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/2.0/sql/statements", r.URL.Path)
			var req statementRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "wh-1", req.WarehouseID)
			assert.Contains(t, req.Statement, "space-1")

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": map[string]interface{}{"state": "SUCCEEDED"},
				"result": map[string]interface{}{
					"data_array": [][]interface{}{
						{"m1", "4.5", "alice@example.com", "API", "1700000000000"},
						{"", "1.0", "x@example.com", "Space", "0"},
						{"m2", nil, "bob@example.com", "Space", 1700000005000.0},
					},
				},
			})
		}))

		got, err := client.FetchMessageSources(context.Background(), "space-1", domain.Window{Start: time.Now().Add(-time.Hour), End: time.Now()})
		require.NoError(t, err)
		require.Len(t, got, 2, "row without message ID dropped")

		assert.InDelta(t, 4.5, got["m1"].AIOverheadSec, 0.001)
		assert.Equal(t, "alice@example.com", got["m1"].UserEmail)
		assert.Equal(t, domain.SourceAPI, got["m1"].Source)
		assert.Equal(t, int64(1700000000000), got["m1"].TimestampMs)

		assert.Zero(t, got["m2"].AIOverheadSec)
		assert.Equal(t, int64(1700000005000), got["m2"].TimestampMs)
	})

	t.Run("disabled_without_warehouse_id", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		}))
		client.sqlWarehouseID = ""

		got, err := client.FetchMessageSources(context.Background(), "space-1", domain.Window{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("failed_statement_is_an_error", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": map[string]interface{}{
					"state": "FAILED",
					"error": map[string]interface{}{"message": "table not found"},
				},
			})
		}))

		_, err := client.FetchMessageSources(context.Background(), "space-1", domain.Window{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "table not found")
	})
}
