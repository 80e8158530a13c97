package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"waveline/models"
)

const (
	// DefaultRequestTimeout bounds each REST call when the caller supplies
	// no custom HTTP client.
	DefaultRequestTimeout = 15 * time.Second
)

var (
	// ErrNotFound indicates the backend does not know the requested entity.
	ErrNotFound = errors.New("api: not found")
)

// Error carries a non-2xx backend response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: backend returned status %d: %s", e.StatusCode, e.Message)
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	HTTPClient *http.Client
	AuthToken  string
}

// Client talks to the chat backend's REST surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

// NewClient creates a REST client for the given base URL.
func NewClient(baseURL string, options Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		authToken:  options.AuthToken,
	}, nil
}

// SendRequest is the body of a text, sticker, or pre-uploaded media send.
type SendRequest struct {
	ConversationID string             `json:"conversationId"`
	SenderID       string             `json:"senderId"`
	Content        string             `json:"content,omitempty"`
	Type           models.MessageType `json:"type"`
}

// SendMessage posts a message and returns the server-confirmed entity,
// including its assigned id.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (models.Message, error) {
	if req.ConversationID == "" {
		return models.Message{}, errors.New("api: conversation id is required")
	}
	if req.SenderID == "" {
		return models.Message{}, errors.New("api: sender id is required")
	}
	if req.Type == "" {
		req.Type = models.MessageTypeText
	}

	var msg models.Message
	if err := c.doJSON(ctx, http.MethodPost, "/chat/send", req, &msg); err != nil {
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// AttachmentRequest uploads a file alongside the send metadata.
type AttachmentRequest struct {
	ConversationID string
	SenderID       string
	Type           models.MessageType
	Filename       string
	Size           int64
	Body           io.Reader
}

// SendAttachment posts a multipart send for image, video, and raw file
// messages.
func (c *Client) SendAttachment(ctx context.Context, req AttachmentRequest) (models.Message, error) {
	if req.ConversationID == "" {
		return models.Message{}, errors.New("api: conversation id is required")
	}
	if req.Filename == "" || req.Body == nil {
		return models.Message{}, errors.New("api: attachment filename and body are required")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := map[string]string{
		"conversationId": req.ConversationID,
		"senderId":       req.SenderID,
		"type":           string(req.Type),
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return models.Message{}, fmt.Errorf("send attachment: write field %q: %w", name, err)
		}
	}
	part, err := form.CreateFormFile("file", req.Filename)
	if err != nil {
		return models.Message{}, fmt.Errorf("send attachment: create file part: %w", err)
	}
	if _, err := io.Copy(part, req.Body); err != nil {
		return models.Message{}, fmt.Errorf("send attachment: copy file body: %w", err)
	}
	if err := form.Close(); err != nil {
		return models.Message{}, fmt.Errorf("send attachment: finalize form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/send", &buf)
	if err != nil {
		return models.Message{}, fmt.Errorf("send attachment: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	var msg models.Message
	if err := c.do(httpReq, &msg); err != nil {
		return models.Message{}, fmt.Errorf("send attachment: %w", err)
	}
	return msg, nil
}

// RecallMessage retracts a sent message. Recall is irreversible.
func (c *Client) RecallMessage(ctx context.Context, messageID string) error {
	if messageID == "" {
		return errors.New("api: message id is required")
	}
	if err := c.doJSON(ctx, http.MethodPut, "/chat/recall/"+url.PathEscape(messageID), nil, nil); err != nil {
		return fmt.Errorf("recall message %q: %w", messageID, err)
	}
	return nil
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	if messageID == "" {
		return errors.New("api: message id is required")
	}
	if err := c.doJSON(ctx, http.MethodDelete, "/chat/delete/"+url.PathEscape(messageID), nil, nil); err != nil {
		return fmt.Errorf("delete message %q: %w", messageID, err)
	}
	return nil
}

// EditMessage replaces a message's content and returns the updated entity.
func (c *Client) EditMessage(ctx context.Context, messageID, newContent string) (models.Message, error) {
	if messageID == "" {
		return models.Message{}, errors.New("api: message id is required")
	}
	body := struct {
		NewContent string `json:"newContent"`
	}{NewContent: newContent}

	var msg models.Message
	if err := c.doJSON(ctx, http.MethodPut, "/chat/edit/"+url.PathEscape(messageID), body, &msg); err != nil {
		return models.Message{}, fmt.Errorf("edit message %q: %w", messageID, err)
	}
	return msg, nil
}

// Messages fetches one page of conversation history. An empty cursor
// requests the newest page.
func (c *Client) Messages(ctx context.Context, conversationID, cursor string) (models.MessagePage, error) {
	if conversationID == "" {
		return models.MessagePage{}, errors.New("api: conversation id is required")
	}

	path := "/chat/messages/" + url.PathEscape(conversationID)
	if cursor != "" {
		path += "?cursor=" + url.QueryEscape(cursor)
	}

	var page models.MessagePage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return models.MessagePage{}, fmt.Errorf("fetch messages for %q: %w", conversationID, err)
	}
	return page, nil
}

// Media lists a conversation's media messages of one kind.
func (c *Client) Media(ctx context.Context, conversationID string, mediaType models.MessageType, limit int) (models.MessagePage, error) {
	if conversationID == "" {
		return models.MessagePage{}, errors.New("api: conversation id is required")
	}
	switch mediaType {
	case models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeRaw:
	default:
		return models.MessagePage{}, fmt.Errorf("api: invalid media type %q", mediaType)
	}
	if limit <= 0 {
		limit = 30
	}

	query := url.Values{}
	query.Set("type", string(mediaType))
	query.Set("limit", strconv.Itoa(limit))
	path := "/chat/media/" + url.PathEscape(conversationID) + "?" + query.Encode()

	var page models.MessagePage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return models.MessagePage{}, fmt.Errorf("fetch media for %q: %w", conversationID, err)
	}
	return page, nil
}

// Conversations lists the viewer's conversations with previews and unread
// counts.
func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var out struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/chat/conversations", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch conversations: %w", err)
	}
	return out.Conversations, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Message: backendErrorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// backendErrorMessage extracts the backend's error text from a failure body.
func backendErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 8*1024))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
