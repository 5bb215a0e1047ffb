package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/voicelibrary/internal/skill"
)

// --- モック定義 ---

// mockDispatcher はSkillDispatcherのモック実装。
type mockDispatcher struct {
	handleFn func(ctx context.Context, req skill.Request) skill.Response
	calls    int
}

func (m *mockDispatcher) Handle(ctx context.Context, req skill.Request) skill.Response {
	m.calls++
	if m.handleFn != nil {
		return m.handleFn(ctx, req)
	}
	return skill.Response{Speech: "ok"}
}

// --- テストヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func postSkill(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/skill", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// --- POST /skill テスト ---

func TestSkillHandler_Handle_Success(t *testing.T) {
	d := &mockDispatcher{
		handleFn: func(ctx context.Context, req skill.Request) skill.Response {
			if req.UserID != "user-1" {
				t.Errorf("UserID = %q, want %q", req.UserID, "user-1")
			}
			if req.Intent != skill.IntentAddBook {
				t.Errorf("Intent = %q, want %q", req.Intent, skill.IntentAddBook)
			}
			if req.Slots["title"] != "Dune" {
				t.Errorf("title slot = %q, want %q", req.Slots["title"], "Dune")
			}
			if req.Session["list_page"] != "2" {
				t.Errorf("session list_page = %q, want %q", req.Session["list_page"], "2")
			}
			return skill.Response{
				Speech:  "Added Dune.",
				Session: map[string]string{"list_page": "3"},
			}
		},
	}
	h := NewSkillHandler(d, discardLogger())

	body := `{"user_id":"user-1","intent":"AddBookIntent","slots":{"title":"Dune"},"session":{"list_page":"2"}}`
	w := httptest.NewRecorder()
	h.Handle(w, postSkill(body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp skill.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Speech != "Added Dune." {
		t.Errorf("Speech = %q, want %q", resp.Speech, "Added Dune.")
	}
	if resp.Session["list_page"] != "3" {
		t.Errorf("Session list_page = %q, want %q", resp.Session["list_page"], "3")
	}
}

func TestSkillHandler_Handle_MalformedJSON(t *testing.T) {
	d := &mockDispatcher{}
	h := NewSkillHandler(d, discardLogger())

	w := httptest.NewRecorder()
	h.Handle(w, postSkill(`{"user_id":`))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", body["code"])
	}
	if d.calls != 0 {
		t.Errorf("dispatcher called %d times, want 0", d.calls)
	}
}

func TestSkillHandler_Handle_MissingUserID(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "absent", body: `{"intent":"HelpIntent"}`},
		{name: "blank", body: `{"user_id":"   ","intent":"HelpIntent"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDispatcher{}
			h := NewSkillHandler(d, discardLogger())

			w := httptest.NewRecorder()
			h.Handle(w, postSkill(tt.body))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			body := parseAPIErrorResponse(t, w)
			if body["code"] != "MISSING_USER_ID" {
				t.Errorf("code = %q, want MISSING_USER_ID", body["code"])
			}
			if d.calls != 0 {
				t.Errorf("dispatcher called %d times, want 0", d.calls)
			}
		})
	}
}

func TestSkillHandler_Handle_TrimsUserID(t *testing.T) {
	var got string
	d := &mockDispatcher{
		handleFn: func(ctx context.Context, req skill.Request) skill.Response {
			got = req.UserID
			return skill.Response{Speech: "hi"}
		},
	}
	h := NewSkillHandler(d, discardLogger())

	w := httptest.NewRecorder()
	h.Handle(w, postSkill(`{"user_id":"  user-9 ","intent":"LaunchRequest"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got != "user-9" {
		t.Errorf("UserID = %q, want %q", got, "user-9")
	}
}

func TestSkillHandler_Handle_EndSessionIsAlwaysEncoded(t *testing.T) {
	d := &mockDispatcher{
		handleFn: func(ctx context.Context, req skill.Request) skill.Response {
			return skill.Response{Speech: "Goodbye."}
		},
	}
	h := NewSkillHandler(d, discardLogger())

	w := httptest.NewRecorder()
	h.Handle(w, postSkill(`{"user_id":"user-1","intent":"StopIntent"}`))

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, ok := raw["end_session"]; !ok {
		t.Error("response should always contain end_session")
	}
	if _, ok := raw["reprompt"]; ok {
		t.Error("empty reprompt should be omitted")
	}
}
