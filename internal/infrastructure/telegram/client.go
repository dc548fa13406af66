// Package telegram reads channel posts through the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/config"
)

const maxResponseBytes = 10 << 20

// Chat is the chat a message was posted in
type Chat struct {
	ID       int64  `json:"id"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Message is a Telegram message or channel post
type Message struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// Content returns the message text, falling back to a media caption
func (m *Message) Content() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// Source names the chat for logs and provenance
func (m *Message) Source() string {
	if m.Chat.Username != "" {
		return "@" + m.Chat.Username
	}
	return strconv.FormatInt(m.Chat.ID, 10)
}

// Update is one entry returned by getUpdates or pushed to a webhook
type Update struct {
	UpdateID    int64    `json:"update_id"`
	Message     *Message `json:"message,omitempty"`
	ChannelPost *Message `json:"channel_post,omitempty"`
}

// Post returns the carried message, preferring channel posts
func (u *Update) Post() *Message {
	if u.ChannelPost != nil {
		return u.ChannelPost
	}
	return u.Message
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// Client polls the Bot API and tracks the update offset
type Client struct {
	http     *http.Client
	baseURL  string
	token    string
	channels ChannelFilter
	logger   *zap.Logger

	mu     sync.Mutex
	offset int64
}

// NewClient creates a new Bot API client
func NewClient(cfg config.TelegramConfig, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		http:     &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(cfg.APIURL, "/"),
		token:    cfg.BotToken,
		channels: NewChannelFilter(cfg.Channels),
		logger:   logger,
	}
}

// Enabled reports whether a bot token is configured
func (c *Client) Enabled() bool {
	return c.token != ""
}

// Channels returns the allow-list applied to updates
func (c *Client) Channels() ChannelFilter {
	return c.channels
}

// Poll fetches pending updates, advances the offset past them and returns the
// messages posted in allowed channels
func (c *Client) Poll(ctx context.Context) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	updates, err := c.getUpdates(ctx, c.offset)
	if err != nil {
		return nil, err
	}

	var messages []Message
	for _, u := range updates {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
		post := u.Post()
		if post == nil || post.Content() == "" {
			continue
		}
		if !c.channels.Allows(post.Chat) {
			continue
		}
		messages = append(messages, *post)
	}
	return messages, nil
}

// Offset returns the next update id to request
func (c *Client) Offset() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

func (c *Client) getUpdates(ctx context.Context, offset int64) ([]Update, error) {
	q := url.Values{}
	q.Set("timeout", "0")
	q.Set("allowed_updates", `["message","channel_post"]`)
	if offset > 0 {
		q.Set("offset", strconv.FormatInt(offset, 10))
	}
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", c.baseURL, c.token, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// the url carries the bot token
		return nil, fmt.Errorf("failed to call getUpdates: %w", redact(err, c.token))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read getUpdates response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode getUpdates response (status %d): %w", resp.StatusCode, err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("getUpdates failed (status %d): %s", resp.StatusCode, envelope.Description)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(envelope.Result, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}

	updates := make([]Update, 0, len(raw))
	for _, item := range raw {
		var u Update
		if err := json.Unmarshal(item, &u); err != nil {
			c.logger.Warn("Skipping malformed update", zap.Error(err))
			continue
		}
		updates = append(updates, u)
	}
	return updates, nil
}

func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<redacted>"))
}

// ChannelFilter is the set of monitored channels. Entries may be a numeric
// chat id, a username or an @username. An empty filter allows every chat.
type ChannelFilter map[string]struct{}

// NewChannelFilter builds a filter from configured entries
func NewChannelFilter(entries []string) ChannelFilter {
	f := make(ChannelFilter, len(entries))
	for _, e := range entries {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "@"))
		if e != "" {
			f[e] = struct{}{}
		}
	}
	return f
}

// Allows reports whether messages from chat should be processed
func (f ChannelFilter) Allows(chat Chat) bool {
	if len(f) == 0 {
		return true
	}
	if chat.Username != "" {
		if _, ok := f[strings.ToLower(chat.Username)]; ok {
			return true
		}
	}
	_, ok := f[strconv.FormatInt(chat.ID, 10)]
	return ok
}
