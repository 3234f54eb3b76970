package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vigilfeed/vigilfeed/internal/usecase/qa"
)

type fakeQA struct {
	mu       sync.Mutex
	calls    int
	lastUser string
	resp     qa.Response
}

func (f *fakeQA) ProcessQuery(_ context.Context, _, userID string) qa.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastUser = userID
	return f.resp
}

func (f *fakeQA) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLimiter struct{ allow bool }

func (f fakeLimiter) Allow(_ context.Context, _ string) (RateDecision, error) {
	return RateDecision{Allowed: f.allow}, nil
}

type fakeReplier struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeReplier) SendText(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, chatID+":"+text)
	return nil
}

func (f *fakeReplier) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testHandler(qaEngine QAProcessor, limiter RateLimiter, replier Replier) *Handler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{VerificationToken: "tok"}, qaEngine, limiter, replier, nil, logger)
}

func messageEventBody(eventID, chatType, content string) []byte {
	env := map[string]any{
		"schema": "2.0",
		"header": map[string]any{"event_id": eventID, "event_type": "im.message.receive_v1", "token": "tok"},
		"event": map[string]any{
			"sender":  map[string]any{"sender_id": map[string]any{"open_id": "ou_sender"}},
			"message": map[string]any{"message_id": "om_1", "chat_id": "oc_1", "chat_type": chatType, "content": content},
		},
	}
	b, _ := json.Marshal(env)
	return b
}

func postEvent(t *testing.T, h *Handler, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/event", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func waitForCalls(t *testing.T, get func() int, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if get() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d calls, got %d", want, get())
}

func TestHandler_PrivateChatMessage_RepliesThroughQAEngine(t *testing.T) {
	qaEngine := &fakeQA{resp: qa.Response{Answer: "the answer"}}
	replier := &fakeReplier{}
	h := testHandler(qaEngine, fakeLimiter{allow: true}, replier)

	body := messageEventBody("e-1", "p2p", `{"text":"what is CVE-2024-1234"}`)
	rec := postEvent(t, h, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	waitForCalls(t, qaEngine.callCount, 1)
	waitForCalls(t, replier.sentCount, 1)
}

func TestHandler_GroupChatWithoutMention_NoReply(t *testing.T) {
	qaEngine := &fakeQA{resp: qa.Response{Answer: "unused"}}
	replier := &fakeReplier{}
	h := testHandler(qaEngine, fakeLimiter{allow: true}, replier)

	body := messageEventBody("e-2", "group", `{"text":"just chatting"}`)
	postEvent(t, h, body)

	time.Sleep(20 * time.Millisecond)
	if qaEngine.callCount() != 0 {
		t.Fatal("expected no QA call without a mention in a group chat")
	}
}

func TestHandler_DuplicateEventID_ProcessedOnce(t *testing.T) {
	qaEngine := &fakeQA{resp: qa.Response{Answer: "answer"}}
	replier := &fakeReplier{}
	h := testHandler(qaEngine, fakeLimiter{allow: true}, replier)

	body := messageEventBody("e-dup", "p2p", `{"text":"hello"}`)
	postEvent(t, h, body)
	postEvent(t, h, body)

	waitForCalls(t, qaEngine.callCount, 1)
	time.Sleep(20 * time.Millisecond)
	if qaEngine.callCount() != 1 {
		t.Fatalf("expected exactly one QA call, got %d", qaEngine.callCount())
	}
}

func TestHandler_RateLimitedUser_GetsRejectionNotQA(t *testing.T) {
	qaEngine := &fakeQA{resp: qa.Response{Answer: "unused"}}
	replier := &fakeReplier{}
	h := testHandler(qaEngine, fakeLimiter{allow: false}, replier)

	body := messageEventBody("e-3", "p2p", `{"text":"hello"}`)
	postEvent(t, h, body)

	waitForCalls(t, replier.sentCount, 1)
	if qaEngine.callCount() != 0 {
		t.Fatal("expected rate-limited user to skip the QA engine")
	}
}

func TestHandler_URLVerificationChallenge_EchoesChallenge(t *testing.T) {
	h := testHandler(&fakeQA{}, fakeLimiter{allow: true}, &fakeReplier{})

	body, _ := json.Marshal(map[string]any{"challenge": "abc123", "token": "tok", "type": "url_verification"})
	rec := postEvent(t, h, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["challenge"] != "abc123" {
		t.Fatalf("got %+v", got)
	}
}

func TestHandler_InvalidToken_Rejected(t *testing.T) {
	h := testHandler(&fakeQA{}, fakeLimiter{allow: true}, &fakeReplier{})

	body, _ := json.Marshal(map[string]any{"challenge": "abc123", "token": "wrong"})
	rec := postEvent(t, h, body)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestHandler_InvalidJSON_BadRequest(t *testing.T) {
	h := testHandler(&fakeQA{}, fakeLimiter{allow: true}, &fakeReplier{})
	rec := postEvent(t, h, []byte("not json"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestHandler_EmptyBody_BadRequest(t *testing.T) {
	h := testHandler(&fakeQA{}, fakeLimiter{allow: true}, &fakeReplier{})
	rec := postEvent(t, h, []byte(""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
}
