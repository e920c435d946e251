package warehouse

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"genie-audit/internal/domain"
)

type conversationsResponse struct {
	Conversations []conversationRecord `json:"conversations"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

type conversationRecord struct {
	ConversationID string `json:"conversation_id"`
	ID             string `json:"id"` // some API versions use "id" instead
	Title          string `json:"title"`
	// CreatedTime arrives as a string in some API versions and epoch
	// milliseconds in others.
	CreatedTime interface{} `json:"created_timestamp"`
	UserEmail   string      `json:"user_email"`
}

func (r *conversationRecord) createdTime() string {
	switch v := r.CreatedTime.(type) {
	case string:
		return v
	case float64:
		if v <= 0 {
			return ""
		}
		return time.UnixMilli(int64(v)).UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

type messagesResponse struct {
	Messages      []messageRecord `json:"messages"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

type messageRecord struct {
	MessageID          string             `json:"message_id"`
	ID                 string             `json:"id"`
	ConversationID     string             `json:"conversation_id"`
	Content            string             `json:"content"`
	Status             string             `json:"status"`
	CreatedTimestampMs int64              `json:"created_timestamp"`
	Attachments        []attachmentRecord `json:"attachments"`
}

type attachmentRecord struct {
	AttachmentID string           `json:"attachment_id"`
	Text         *textAttachment  `json:"text,omitempty"`
	Query        *queryAttachment `json:"query,omitempty"`
}

type textAttachment struct {
	Content string `json:"content"`
}

type queryAttachment struct {
	StatementID string `json:"statement_id"`
	Query       string `json:"query"`
}

// FetchConversations lists the space's conversations, newest first, following
// pagination up to maxCount entries.
func (c *Client) FetchConversations(ctx context.Context, spaceID string, maxCount int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	pageToken := ""
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		var page conversationsResponse
		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("page_size", strconv.Itoa(pageSize)).
			SetResult(&page)
		if pageToken != "" {
			req.SetQueryParam("page_token", pageToken)
		}
		resp, err := req.Get(fmt.Sprintf(conversationsPath, spaceID))
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, apiError("fetch conversations", resp)
		}

		for _, rec := range page.Conversations {
			id := rec.ConversationID
			if id == "" {
				id = rec.ID
			}
			out = append(out, domain.Conversation{
				ConversationID: id,
				Title:          rec.Title,
				CreatedTime:    rec.createdTime(),
				UserEmail:      rec.UserEmail,
			})
			if maxCount > 0 && len(out) >= maxCount {
				return out, nil
			}
		}

		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

// FetchMessages returns all messages of a conversation in creation order.
func (c *Client) FetchMessages(ctx context.Context, spaceID, conversationID string) ([]domain.Message, error) {
	var out []domain.Message
	pageToken := ""
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		var page messagesResponse
		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("page_size", strconv.Itoa(pageSize)).
			SetResult(&page)
		if pageToken != "" {
			req.SetQueryParam("page_token", pageToken)
		}
		resp, err := req.Get(fmt.Sprintf(messagesPath, spaceID, conversationID))
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, apiError("fetch messages", resp)
		}

		for i := range page.Messages {
			out = append(out, page.Messages[i].toDomain(conversationID))
		}

		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (m *messageRecord) toDomain(conversationID string) domain.Message {
	id := m.MessageID
	if id == "" {
		id = m.ID
	}
	convID := m.ConversationID
	if convID == "" {
		convID = conversationID
	}

	var attachments []domain.Attachment
	for _, att := range m.Attachments {
		switch {
		case att.Query != nil:
			attachments = append(attachments, domain.Attachment{
				Type:        "query",
				StatementID: att.Query.StatementID,
				SQLContent:  att.Query.Query,
			})
		case att.Text != nil:
			attachments = append(attachments, domain.Attachment{Type: "text"})
		}
	}

	return domain.Message{
		MessageID:          id,
		ConversationID:     convID,
		Content:            m.Content,
		Status:             m.Status,
		CreatedTimestampMs: m.CreatedTimestampMs,
		Attachments:        attachments,
	}
}
