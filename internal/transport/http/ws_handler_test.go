package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"quiz-engine/internal/app"
	"quiz-engine/internal/auth"
	"quiz-engine/internal/domain"
	"quiz-engine/internal/infra/memory"
)

func TestWebSocketAnswerFlow(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStaticProvider(memory.SampleQuestions()))
	defer server.Close()
	signIn(t, server, "p1")

	conn := dial(t, server, "p1")
	defer conn.Close()

	typ, payload := readNext(conn, t, "state")
	if payload["index"] != float64(0) || payload["question"] != "What is 2 + 2?" {
		t.Fatalf("unexpected first state %s %+v", typ, payload)
	}

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"answer": "4"},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	// Expect answerResult and the state of the next question, in any order.
	answerSeen := false
	nextSeen := false
	for i := 0; i < 4 && !(answerSeen && nextSeen); i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "answerResult":
			if payload["correct"] != true {
				t.Fatalf("expected correct answer, got %+v", payload)
			}
			answerSeen = true
		case "state":
			if payload["index"] == float64(1) {
				nextSeen = true
			}
		}
	}
	if !answerSeen || !nextSeen {
		t.Fatalf("expected answerResult and next state, got answerResult=%v next=%v", answerSeen, nextSeen)
	}
}

func TestWebSocketRequiresSignIn(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStaticProvider(memory.SampleQuestions()))
	defer server.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "nobody"), nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestWebSocketReportsRateLimit(t *testing.T) {
	provider := memory.NewStaticProvider(memory.SampleQuestions())
	provider.FailWith(domain.NewProviderError(domain.RateLimited, nil))
	server, _ := newTestServer(t, provider)
	defer server.Close()
	signIn(t, server, "p1")

	conn := dial(t, server, "p1")
	defer conn.Close()

	_, payload := readNext(conn, t, "error")
	if payload["code"] != "rate_limited" {
		t.Fatalf("expected rate_limited code, got %+v", payload)
	}
}

func TestWebSocketLogoutClosesSession(t *testing.T) {
	server, store := newTestServer(t, memory.NewStaticProvider(memory.SampleQuestions()))
	defer server.Close()
	signIn(t, server, "p1")

	conn := dial(t, server, "p1")
	defer conn.Close()
	readNext(conn, t, "state")

	if err := conn.WriteJSON(map[string]any{"type": "logout"}); err != nil {
		t.Fatalf("write logout: %v", err)
	}
	for {
		typ, _ := readNext(conn, t, "")
		if typ == "closed" {
			break
		}
	}
	if store.Len() != 0 {
		t.Fatalf("expected snapshot and sign-in marker cleared, %d keys left", store.Len())
	}
}

func TestSignInRejectsBadEmail(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStaticProvider(memory.SampleQuestions()))
	defer server.Close()

	resp, err := http.Post(server.URL+"/signin", "application/json", strings.NewReader(`{"profileId":"p1","email":"nope"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func newTestServer(t *testing.T, provider app.QuestionProvider) (*httptest.Server, *memory.Store) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memory.NewStore()
	markers := auth.NewMarkerAuth(store, log)
	service := app.NewQuizService(memory.NewEngineRegistry(), provider, store, markers, app.Settings{}, log).
		WithTicker(func(time.Duration) (<-chan time.Time, func()) {
			return make(chan time.Time), func() {}
		})
	t.Cleanup(service.Close)
	return httptest.NewServer(NewRouter(service, markers, log)), store
}

func signIn(t *testing.T, server *httptest.Server, profileID string) {
	t.Helper()
	body := `{"profileId":"` + profileID + `","email":"` + profileID + `@example.com"}`
	resp, err := http.Post(server.URL+"/signin", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func dial(t *testing.T, server *httptest.Server, profileID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, profileID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func wsURL(server *httptest.Server, profileID string) string {
	return "ws" + server.URL[len("http"):] + "/ws?profileId=" + profileID
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
