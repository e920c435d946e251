// Package warehouse implements the REST client for the analytics platform:
// SQL statement history, assistant conversations, and audit-log lookups.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"genie-audit/internal/config"
	"genie-audit/internal/domain"
)

const (
	historyPath       = "/api/2.0/sql/history/queries"
	statementsPath    = "/api/2.0/sql/statements"
	conversationsPath = "/api/2.0/genie/spaces/%s/conversations"
	messagesPath      = "/api/2.0/genie/spaces/%s/conversations/%s/messages"

	// The history endpoint rejects filters with more than 100 statement IDs.
	maxIDsPerRequest = 100
	// Page size for bulk listings.
	pageSize = 100
)

// Client talks to the platform REST API. All fetches go through a shared
// rate limiter so bulk audits stay under the platform's request quotas.
type Client struct {
	http           *resty.Client
	limiter        *rate.Limiter
	sqlWarehouseID string
	logger         *slog.Logger
}

var (
	_ domain.QueryHistorySource    = (*Client)(nil)
	_ domain.ConversationSource    = (*Client)(nil)
	_ domain.MessageSourceProvider = (*Client)(nil)
)

// NewClient builds a client from warehouse configuration.
func NewClient(cfg config.WarehouseConfig, logger *slog.Logger) *Client {
	if cfg.RateRPS <= 0 {
		cfg.RateRPS = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}

	http := resty.New().
		SetBaseURL(cfg.Host).
		SetAuthToken(cfg.Token).
		SetTimeout(60 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && (r.StatusCode() == 429 || r.StatusCode() >= 500)
		})

	return &Client{
		http:           http,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
		sqlWarehouseID: cfg.SQLWarehouseID,
		logger:         logger.With("component", "warehouse"),
	}
}

// wait blocks until the rate limiter admits one request.
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// apiError normalizes a non-2xx platform response into an error.
func apiError(op string, resp *resty.Response) error {
	return fmt.Errorf("%s: platform API returned %d: %s", op, resp.StatusCode(), resp.String())
}
