// Package webhook implements the EventServer (C18): Lark's inbound event
// webhook, verified and decoded, deduplicated against redelivery, and
// dispatched to the QA engine with the expensive work offloaded to a
// detached task so the HTTP response returns immediately. Grounded on the
// original Feishu event server (signature/decrypt/dedup/dispatch shape),
// restructured into the teacher's net/http handler-struct convention (see
// internal/handler/http/article) with a bounded worker pool replacing the
// source's one-goroutine-per-event model, per the spec's worker-pool
// redesign note.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/vigilfeed/vigilfeed/internal/handler/http/respond"
	"github.com/vigilfeed/vigilfeed/internal/usecase/qa"
)

// QAProcessor answers a user's question. Satisfied directly by *qa.Engine.
type QAProcessor interface {
	ProcessQuery(ctx context.Context, query, userID string) qa.Response
}

// RateDecision mirrors ratelimit.Decision's fields the handler needs,
// without binding to the qa/ratelimit package's concrete type.
type RateDecision struct {
	Allowed bool
}

// RateLimiter gates QA processing per user.
type RateLimiter interface {
	Allow(ctx context.Context, userID string) (RateDecision, error)
}

// Replier sends the answer back to the chat the question came from.
// Satisfied directly by *notifier.LarkMessenger.
type Replier interface {
	SendText(ctx context.Context, chatID, text string) error
}

// FeedbackRecorder records a quick-rating callback from a feedback card.
// Optional: a nil Recorder on Config simply acknowledges the callback.
type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, userID, eventID, rating string) error
}

// Config configures webhook verification and the bot's own identity.
type Config struct {
	VerificationToken string
	EncryptKey        string
	BotOpenID         string
	DedupMaxSize      int
	DedupTTLSeconds   int
	TaskPoolSize      int // bounded worker pool for detached QA tasks, default 10
}

// Handler implements the three EventServer routes.
type Handler struct {
	cfg      Config
	qa       QAProcessor
	limiter  RateLimiter
	replier  Replier
	feedback FeedbackRecorder
	dedup    *Deduplicator
	logger   *slog.Logger
	tasks    *errgroup.Group
}

func New(cfg Config, qaEngine QAProcessor, limiter RateLimiter, replier Replier, feedback FeedbackRecorder, logger *slog.Logger) *Handler {
	if cfg.TaskPoolSize <= 0 {
		cfg.TaskPoolSize = 10
	}
	tasks := &errgroup.Group{}
	tasks.SetLimit(cfg.TaskPoolSize)
	return &Handler{
		cfg:      cfg,
		qa:       qaEngine,
		limiter:  limiter,
		replier:  replier,
		feedback: feedback,
		dedup:    NewDeduplicator(cfg.DedupMaxSize, time.Duration(cfg.DedupTTLSeconds)*time.Second),
		logger:   logger,
		tasks:    tasks,
	}
}

type eventEnvelope struct {
	Schema    string          `json:"schema"`
	Header    *eventHeader    `json:"header"`
	Event     json.RawMessage `json:"event"`
	Challenge string          `json:"challenge"`
	Token     string          `json:"token"`
	Encrypt   string          `json:"encrypt"`
	UUID      string          `json:"uuid"`
	Type      string          `json:"type"`
}

type eventHeader struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Token     string `json:"token"`
}

// ServeHTTP implements POST /webhook/event per spec §4.18.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respond.JSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(body) == 0 {
		respond.JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if h.cfg.EncryptKey != "" {
		if sig := r.Header.Get("X-Lark-Signature"); sig != "" {
			timestamp := r.Header.Get("X-Lark-Request-Timestamp")
			nonce := r.Header.Get("X-Lark-Request-Nonce")
			if !verifySignature(timestamp, nonce, h.cfg.EncryptKey, body, []byte(sig)) {
				h.logger.Warn("webhook signature mismatch", slog.String("remote_addr", r.RemoteAddr))
			}
		}

		if env.Encrypt != "" {
			plaintext, err := decryptPayload(h.cfg.EncryptKey, env.Encrypt)
			if err != nil {
				h.logger.Warn("webhook decrypt failed", slog.Any("error", err))
				respond.JSON(w, http.StatusBadRequest, map[string]string{"error": "decrypt failed"})
				return
			}
			if err := json.Unmarshal(plaintext, &env); err != nil {
				respond.JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid decrypted json"})
				return
			}
		}
	}

	if env.Challenge != "" {
		if !h.tokenOK(env.Token, "") {
			respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		respond.JSON(w, http.StatusOK, map[string]string{"challenge": env.Challenge})
		return
	}

	headerToken := ""
	if env.Header != nil {
		headerToken = env.Header.Token
	}
	if !h.tokenOK(env.Token, headerToken) {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}

	eventID := h.eventID(env)
	if eventID != "" && h.dedup.SeenBefore(eventID) {
		respond.JSON(w, http.StatusOK, map[string]any{"code": 0, "msg": "ok"})
		return
	}

	eventType := env.Type
	if env.Header != nil && env.Header.EventType != "" {
		eventType = env.Header.EventType
	}

	switch eventType {
	case "im.message.receive_v1", "message":
		h.dispatchMessage(r.Context(), env.Event, eventID)
	case "card.action.trigger", "interactive":
		h.dispatchCardAction(r.Context(), env.Event, eventID)
	}

	respond.JSON(w, http.StatusOK, map[string]any{"code": 0, "msg": "ok"})
}

func (h *Handler) tokenOK(rootToken, headerToken string) bool {
	if h.cfg.VerificationToken == "" {
		return true
	}
	want := []byte(h.cfg.VerificationToken)
	if rootToken != "" && subtle.ConstantTimeCompare([]byte(rootToken), want) == 1 {
		return true
	}
	if headerToken != "" && subtle.ConstantTimeCompare([]byte(headerToken), want) == 1 {
		return true
	}
	return false
}

func (h *Handler) eventID(env eventEnvelope) string {
	if env.Header != nil && env.Header.EventID != "" {
		return env.Header.EventID
	}
	if env.UUID != "" {
		return env.UUID
	}
	messageID := gjsonString(env.Event, "message.message_id")
	if messageID != "" {
		return "msg_" + messageID
	}
	return ""
}

// dispatchMessage decides whether a reply is owed, then offloads the
// expensive retrieval+LLM work to a bounded worker-pool task so the HTTP
// response path stays immediate, per spec §5's scheduling model.
func (h *Handler) dispatchMessage(ctx context.Context, rawEvent json.RawMessage, eventID string) {
	msg := parseInboundMessage(rawEvent, h.cfg.BotOpenID)
	if !requiresResponse(msg) {
		return
	}

	question := extractQuestion(msg.Text)
	if question == "" {
		return
	}

	started := h.tasks.TryGo(func() error {
		h.processMessage(context.WithoutCancel(ctx), msg, question)
		return nil
	})
	if !started {
		h.logger.Warn("qa task pool saturated, dropping event", slog.String("event_id", eventID))
	}
}

func (h *Handler) processMessage(ctx context.Context, msg inboundMessage, question string) {
	decision, err := h.limiter.Allow(ctx, msg.SenderID)
	if err != nil {
		h.logger.Error("rate limiter check failed", slog.Any("error", err))
		return
	}
	if !decision.Allowed {
		_ = h.replier.SendText(ctx, msg.ChatID, "您发送消息过于频繁，请稍后再试。")
		return
	}

	resp := h.qa.ProcessQuery(ctx, question, msg.SenderID)
	if err := h.replier.SendText(ctx, msg.ChatID, resp.Answer); err != nil {
		h.logger.Error("failed to send qa reply", slog.Any("error", err), slog.String("chat_id", msg.ChatID))
	}
}

// dispatchCardAction handles a feedback-card callback (thumbs up/down,
// bookmark, "tell me more"). The full feedback-rating catalogue from the
// original source exceeds what this server needs to stay operational: only
// the acknowledgement path is implemented, with FeedbackRecorder left as an
// optional extension point for a future ratings store.
func (h *Handler) dispatchCardAction(ctx context.Context, rawEvent json.RawMessage, eventID string) {
	if h.feedback == nil {
		return
	}
	userID := gjsonString(rawEvent, "operator.open_id")
	rating := gjsonString(rawEvent, "action.value.rating")
	if userID == "" || rating == "" {
		return
	}
	if err := h.feedback.RecordFeedback(ctx, userID, eventID, rating); err != nil {
		h.logger.Warn("failed to record feedback", slog.Any("error", err))
	}
}

func gjsonString(raw json.RawMessage, path string) string {
	return gjson.GetBytes(raw, path).String()
}
