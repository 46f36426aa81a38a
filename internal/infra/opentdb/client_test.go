package opentdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"quiz-engine/internal/domain"
)

func TestFetchDecodesBatch(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"response_code":0,"results":[
			{"category":"Science","type":"multiple","difficulty":"easy",
			 "question":"What does &quot;CPU&quot; stand for?",
			 "correct_answer":"Central Processing Unit",
			 "incorrect_answers":["Central Process Unit","Computer Personal Unit","Central Processor Unit"]}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, quietLogger())
	questions, err := client.Fetch(context.Background(), domain.DefaultBatch())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if query != "amount=10&difficulty=easy&type=multiple" {
		t.Fatalf("unexpected query %q", query)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	q := questions[0]
	if q.CorrectAnswer != "Central Processing Unit" || len(q.IncorrectAnswers) != 3 {
		t.Fatalf("unexpected question %+v", q)
	}
	if q.DisplayText() != `What does "CPU" stand for?` {
		t.Fatalf("expected decoded text, got %q", q.DisplayText())
	}
}

func TestFetchMapsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"response_code":5,"results":[]}`)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second, quietLogger()).Fetch(context.Background(), domain.DefaultBatch())
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Kind != domain.RateLimited {
		t.Fatalf("expected rate limited provider error, got %v", err)
	}
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected errors.Is rate limited, got %v", err)
	}
}

func TestFetchMapsOtherFailuresToUnavailable(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"error code": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"response_code":1,"results":[]}`)
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `<html>oops</html>`)
		},
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()

			_, err := NewClient(server.URL, time.Second, quietLogger()).Fetch(context.Background(), domain.DefaultBatch())
			if !errors.Is(err, domain.ErrProviderUnavailable) {
				t.Fatalf("expected unavailable, got %v", err)
			}
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, time.Second, quietLogger()).Fetch(context.Background(), domain.DefaultBatch())
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestFetchSharedFlightSurvivesCancelledCaller(t *testing.T) {
	var hits atomic.Int32
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		arrived <- struct{}{}
		<-release
		io.WriteString(w, `{"response_code":0,"results":[
			{"question":"What is 2 + 2?","correct_answer":"4","incorrect_answers":["3","5"]}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, quietLogger())
	leaving, cancel := context.WithCancel(context.Background())
	leaverErr := make(chan error, 1)
	go func() {
		_, err := client.Fetch(leaving, domain.DefaultBatch())
		leaverErr <- err
	}()
	<-arrived

	stayerDone := make(chan struct{})
	var (
		questions []domain.Question
		stayErr   error
	)
	go func() {
		defer close(stayerDone)
		questions, stayErr = client.Fetch(context.Background(), domain.DefaultBatch())
	}()
	// Give the second caller time to join the in-flight request.
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-leaverErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled caller to stop waiting, got %v", err)
	}
	close(release)
	<-stayerDone

	if stayErr != nil {
		t.Fatalf("remaining caller failed: %v", stayErr)
	}
	if len(questions) != 1 || questions[0].CorrectAnswer != "4" {
		t.Fatalf("unexpected questions %+v", questions)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one shared request, got %d", hits.Load())
	}
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
