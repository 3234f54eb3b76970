package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// LarkConfig configures the Lark (Feishu) custom-bot webhook Messenger.
type LarkConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
}

func DefaultLarkConfig() LarkConfig {
	return LarkConfig{Timeout: 10 * time.Second}
}

// LarkMessenger implements publish.Messenger against Lark's custom-bot
// webhook API, grounded on DiscordNotifier's webhook-POST/retry/rate-limit
// shape in discord.go: same JSON-POST-plus-retry structure, Lark's own
// msg_type/content envelope in place of Discord's embeds.
type LarkMessenger struct {
	cfg         LarkConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

func NewLarkMessenger(cfg LarkConfig) *LarkMessenger {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &LarkMessenger{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(5, 10), // Lark custom bots: 5 msg/s per webhook
	}
}

type larkTextPayload struct {
	MsgType string `json:"msg_type"`
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
}

type larkPostPayload struct {
	MsgType string `json:"msg_type"`
	Content struct {
		Post struct {
			ZhCN larkPostBody `json:"zh_cn"`
		} `json:"post"`
	} `json:"content"`
}

type larkPostBody struct {
	Title   string           `json:"title"`
	Content [][]larkPostElem `json:"content"`
}

type larkPostElem struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

type larkAPIResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// SendText posts a plain-text message. chatID is unused: Lark custom-bot
// webhooks are bound to a single target chat at creation time.
func (l *LarkMessenger) SendText(ctx context.Context, chatID, text string) error {
	payload := larkTextPayload{MsgType: "text"}
	payload.Content.Text = text
	return l.post(ctx, payload)
}

// SendRichPost posts a titled rich-text message, one paragraph per line.
func (l *LarkMessenger) SendRichPost(ctx context.Context, chatID, title string, paragraphs []string) error {
	var payload larkPostPayload
	payload.MsgType = "post"
	payload.Content.Post.ZhCN.Title = title
	for _, p := range paragraphs {
		payload.Content.Post.ZhCN.Content = append(payload.Content.Post.ZhCN.Content, []larkPostElem{{Tag: "text", Text: p}})
	}
	return l.post(ctx, payload)
}

func (l *LarkMessenger) post(ctx context.Context, payload any) error {
	if !l.cfg.Enabled {
		return fmt.Errorf("lark messenger disabled")
	}

	if err := l.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("lark rate limiter: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal lark payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build lark request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lark request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Message: "lark rate limit exceeded", RetryAfter: 5 * time.Second}
	}
	if resp.StatusCode >= 400 {
		return &ClientError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("lark webhook http error: %s", string(respBody))}
	}

	var apiResp larkAPIResponse
	if err := json.Unmarshal(respBody, &apiResp); err == nil && apiResp.Code != 0 {
		slog.Warn("lark webhook returned non-zero code", slog.Int("code", apiResp.Code), slog.String("msg", apiResp.Msg))
		return fmt.Errorf("lark webhook error %d: %s", apiResp.Code, apiResp.Msg)
	}

	return nil
}
