package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"genie-audit/internal/domain"
	"genie-audit/internal/service"
)

// APIError carries the status and message returned by the audit API.
type APIError struct {
	HTTPStatus int    `json:"http_status"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.HTTPStatus, e.Message)
}

// Client talks to the audit HTTP API.
type Client struct {
	http *resty.Client
}

// NewClient builds a client against the given base URL.
func NewClient(host string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(host).
			SetTimeout(5 * time.Minute),
	}
}

// SetHost updates the base URL after flag resolution.
func (c *Client) SetHost(host string) {
	c.http.SetBaseURL(host)
}

type apiErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		body, _ := resp.Error().(*apiErrorBody)
		msg := resp.Status()
		if body != nil && body.Message != "" {
			msg = body.Message
		}
		return &APIError{HTTPStatus: resp.StatusCode(), Message: msg}
	}
	return nil
}

// Refresh triggers a fresh audit of the space. windowHours of zero uses
// the server's configured lookback.
func (c *Client) Refresh(ctx context.Context, spaceID string, windowHours float64) (*domain.AuditRun, error) {
	var run domain.AuditRun
	req := c.http.R().SetContext(ctx).
		SetResult(&run).
		SetError(&apiErrorBody{})
	if windowHours > 0 {
		req.SetQueryParam("window_hours", fmt.Sprintf("%g", windowHours))
	}
	resp, err := req.Post(fmt.Sprintf("/v1/spaces/%s/refresh", spaceID))
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &run, nil
}

// Report fetches the latest stored report for the space.
func (c *Client) Report(ctx context.Context, spaceID string) (*domain.SpaceReport, error) {
	var report domain.SpaceReport
	resp, err := c.http.R().SetContext(ctx).
		SetResult(&report).
		SetError(&apiErrorBody{}).
		Get(fmt.Sprintf("/v1/spaces/%s/report", spaceID))
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &report, nil
}

// Conversation fetches one conversation from the latest report.
func (c *Client) Conversation(ctx context.Context, spaceID, conversationID string) (*domain.ConversationReport, error) {
	var conv domain.ConversationReport
	resp, err := c.http.R().SetContext(ctx).
		SetResult(&conv).
		SetError(&apiErrorBody{}).
		Get(fmt.Sprintf("/v1/spaces/%s/conversations/%s", spaceID, conversationID))
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Query fetches one statement's diagnosis from the latest report.
func (c *Client) Query(ctx context.Context, spaceID, statementID string) (*service.QueryDetail, error) {
	var detail service.QueryDetail
	resp, err := c.http.R().SetContext(ctx).
		SetResult(&detail).
		SetError(&apiErrorBody{}).
		Get(fmt.Sprintf("/v1/spaces/%s/queries/%s", spaceID, statementID))
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &detail, nil
}

// RunList is one page of stored runs.
type RunList struct {
	Data          []domain.AuditRun `json:"data"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

// Runs lists stored run metadata, newest first.
func (c *Client) Runs(ctx context.Context, spaceID string, maxResults int, pageToken string) (*RunList, error) {
	var list RunList
	req := c.http.R().SetContext(ctx).
		SetResult(&list).
		SetError(&apiErrorBody{})
	if spaceID != "" {
		req.SetQueryParam("space_id", spaceID)
	}
	if maxResults > 0 {
		req.SetQueryParam("max_results", fmt.Sprintf("%d", maxResults))
	}
	if pageToken != "" {
		req.SetQueryParam("page_token", pageToken)
	}
	resp, err := req.Get("/v1/runs")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &list, nil
}

// Run fetches one stored run snapshot, report included.
func (c *Client) Run(ctx context.Context, runID string) (*domain.AuditRun, error) {
	var run domain.AuditRun
	resp, err := c.http.R().SetContext(ctx).
		SetResult(&run).
		SetError(&apiErrorBody{}).
		Get(fmt.Sprintf("/v1/runs/%s", runID))
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &run, nil
}
