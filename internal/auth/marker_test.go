package auth

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"quiz-engine/internal/infra/memory"
)

func TestMarkerAuthLifecycle(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)
	a := NewMarkerAuth(memory.NewStore(), log)

	if a.IsAuthenticated(ctx, "p1") {
		t.Fatalf("expected anonymous profile")
	}
	if err := a.SignIn(ctx, "p1", "not-an-email"); err != ErrInvalidEmail {
		t.Fatalf("expected invalid email, got %v", err)
	}
	if err := a.SignIn(ctx, "p1", "alice@example.com"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if !a.IsAuthenticated(ctx, "p1") {
		t.Fatalf("expected signed in profile")
	}
	if a.IsAuthenticated(ctx, "p2") {
		t.Fatalf("markers must be scoped per profile")
	}
	if err := a.SignOut(ctx, "p1"); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if a.IsAuthenticated(ctx, "p1") {
		t.Fatalf("expected signed out profile")
	}
}
