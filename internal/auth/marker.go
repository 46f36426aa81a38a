// Package auth provides the sign-in marker consulted before a profile may play.
// Identity itself (passwords, tokens) lives elsewhere; a profile counts as signed in
// while its email marker is present in the store.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"quiz-engine/internal/app"
)

// ErrInvalidEmail is returned by SignIn for an empty or malformed email.
var ErrInvalidEmail = errors.New("invalid email")

type MarkerAuth struct {
	store app.KeyValueStore
	log   logrus.FieldLogger
}

func NewMarkerAuth(store app.KeyValueStore, log logrus.FieldLogger) *MarkerAuth {
	return &MarkerAuth{store: store, log: log}
}

func (a *MarkerAuth) SignIn(ctx context.Context, profileID, email string) error {
	email = strings.TrimSpace(email)
	if profileID == "" || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	return a.store.Set(ctx, a.key(profileID), email)
}

func (a *MarkerAuth) IsAuthenticated(ctx context.Context, profileID string) bool {
	if profileID == "" {
		return false
	}
	_, ok, err := a.store.Get(ctx, a.key(profileID))
	if err != nil {
		a.log.WithError(err).WithField("profile", profileID).Warn("read sign-in marker")
		return false
	}
	return ok
}

func (a *MarkerAuth) SignOut(ctx context.Context, profileID string) error {
	return a.store.Delete(ctx, a.key(profileID))
}

func (a *MarkerAuth) key(profileID string) string {
	return "auth:" + profileID + ":email"
}
