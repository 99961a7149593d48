// Package api implements the client for the remote persistence service:
// REST with JSON bodies, plus the acting-user header on chat listing.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/classline/classline/internal/logging"
	"github.com/classline/classline/internal/metrics"
	"github.com/classline/classline/internal/models"
)

const actingUserHeader = "X-Acting-User"

// ConversationResolver maps a conversation ID onto its wire identifiers.
// For a topic the owning chat ID and the topic ID, for a chat just the
// chat ID.
type ConversationResolver func(conversationID string) (chatID, topicID string)

// Client talks to the persistence service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
	resolve ConversationResolver

	mu           sync.RWMutex
	actingUserID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client (tests).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

// WithConversationResolver installs the conversation-to-wire-ID mapping.
func WithConversationResolver(resolve ConversationResolver) Option {
	return func(c *Client) { c.resolve = resolve }
}

// NewClient creates a Client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logging.Component("api"),
		resolve: func(conversationID string) (string, string) { return conversationID, "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetActingUser records the user ID sent on role-scoped requests.
func (c *Client) SetActingUser(userID string) {
	c.mu.Lock()
	c.actingUserID = userID
	c.mu.Unlock()
}

func (c *Client) actingUser() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.actingUserID
}

// Login exchanges credentials for the authenticated user. A non-2xx
// response is an *AuthError.
func (c *Client) Login(ctx context.Context, phone, password string) (*models.User, error) {
	body := map[string]string{"phone": phone, "password": password}
	var out struct {
		User *models.User `json:"user"`
	}

	status, err := c.doJSON(ctx, http.MethodPost, "/auth", body, &out)
	if err != nil {
		// Transport failure, not rejected credentials.
		metrics.FetchErrors.WithLabelValues("auth").Inc()
		return nil, &FetchError{Op: "auth", StatusCode: status, Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &AuthError{StatusCode: status}
	}
	if out.User == nil {
		return nil, &AuthError{StatusCode: status, Message: "empty user in response"}
	}
	return out.User, nil
}

// ListUsers fetches the full directory.
func (c *Client) ListUsers(ctx context.Context) ([]*models.User, error) {
	var out struct {
		Users []*models.User `json:"users"`
	}
	if err := c.read(ctx, "users", http.MethodGet, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// CreateUser registers a new directory entry.
func (c *Client) CreateUser(ctx context.Context, user *models.User) error {
	return c.write(ctx, "user-create", http.MethodPost, "/users", user)
}

// UpdateUser replaces a directory entry.
func (c *Client) UpdateUser(ctx context.Context, user *models.User) error {
	return c.write(ctx, "user-update", http.MethodPut, "/users/"+url.PathEscape(user.ID), user)
}

// DeleteUser removes a directory entry.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.write(ctx, "user-delete", http.MethodDelete, "/users/"+url.PathEscape(userID), nil)
}

// ChatsSnapshot is the remote chat/topic summary.
type ChatsSnapshot struct {
	Chats  []*models.Chat             `json:"chats"`
	Topics map[string][]*models.Topic `json:"topics"`
}

// ListChats fetches the chat and topic summaries visible to the acting user.
func (c *Client) ListChats(ctx context.Context) (*ChatsSnapshot, error) {
	var out ChatsSnapshot
	if err := c.read(ctx, "chats", http.MethodGet, "/chats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateChatRequest carries the group creation payload.
type CreateChatRequest struct {
	Chat   *models.Chat    `json:"chat"`
	Topics []*models.Topic `json:"topics,omitempty"`
}

// CreateChat creates a group chat with participants, topics and schedule.
func (c *Client) CreateChat(ctx context.Context, req *CreateChatRequest) error {
	return c.write(ctx, "chat-create", http.MethodPost, "/chats", req)
}

// ListMessages fetches a conversation's message list, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	chatID, topicID := c.resolve(conversationID)
	query := url.Values{}
	query.Set("chatId", chatID)
	if topicID != "" {
		query.Set("topicId", topicID)
	}

	var out struct {
		Messages []*models.Message `json:"messages"`
	}
	if err := c.read(ctx, "messages", http.MethodGet, "/messages?"+query.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// PostMessage persists a composed message.
func (c *Client) PostMessage(ctx context.Context, conversationID string, message *models.Message) error {
	chatID, topicID := c.resolve(conversationID)
	payload := struct {
		ID          string              `json:"id"`
		ChatID      string              `json:"chat_id"`
		TopicID     string              `json:"topic_id,omitempty"`
		SenderID    string              `json:"sender_id"`
		Text        string              `json:"text,omitempty"`
		Attachments []models.Attachment `json:"attachments,omitempty"`
	}{
		ID:          message.ID,
		ChatID:      chatID,
		TopicID:     topicID,
		SenderID:    message.SenderID,
		Text:        message.Text,
		Attachments: message.Attachments,
	}
	return c.write(ctx, "message", http.MethodPost, "/messages", payload)
}

func (c *Client) read(ctx context.Context, op, method, path string, body, out any) error {
	status, err := c.doJSON(ctx, method, path, body, out)
	if err != nil {
		metrics.FetchErrors.WithLabelValues(op).Inc()
		return &FetchError{Op: op, StatusCode: status, Err: err}
	}
	if status < 200 || status >= 300 {
		metrics.FetchErrors.WithLabelValues(op).Inc()
		return &FetchError{Op: op, StatusCode: status}
	}
	return nil
}

func (c *Client) write(ctx context.Context, op, method, path string, body any) error {
	status, err := c.doJSON(ctx, method, path, body, nil)
	if err != nil {
		metrics.SendErrors.Inc()
		return &SendError{Op: op, StatusCode: status, Err: err}
	}
	if status < 200 || status >= 300 {
		metrics.SendErrors.Inc()
		return &SendError{Op: op, StatusCode: status}
	}
	return nil
}

// doJSON issues one request and decodes a JSON response into out when
// provided. Returns the HTTP status code alongside any transport or
// decoding error.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if acting := c.actingUser(); acting != "" {
		req.Header.Set(actingUserHeader, acting)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	}
	return resp.StatusCode, nil
}
