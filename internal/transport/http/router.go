package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"quiz-engine/internal/app"
	"quiz-engine/internal/auth"
)

// SignInStore records the sign-in marker of a profile.
type SignInStore interface {
	app.Authenticator
	SignIn(ctx context.Context, profileID, email string) error
}

// NewRouter wires the health, sign-in and websocket endpoints.
func NewRouter(service *app.QuizService, signIn SignInStore, log logrus.FieldLogger) http.Handler {
	ws := NewWSHandler(service, signIn, log)
	sessions := &sessionHandler{service: service, markers: signIn, log: log}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))

	r.Post("/signin", sessions.signIn)
	r.Post("/signout", sessions.signOut)
	r.Get("/ws", ws.ServeWS)
	return r
}

type sessionHandler struct {
	service *app.QuizService
	markers SignInStore
	log     logrus.FieldLogger
}

type signInRequest struct {
	ProfileID string `json:"profileId"`
	Email     string `json:"email"`
}

func (h *sessionHandler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid sign-in payload", http.StatusBadRequest)
		return
	}
	if err := h.markers.SignIn(r.Context(), req.ProfileID, req.Email); err != nil {
		if errors.Is(err, auth.ErrInvalidEmail) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.WithError(err).Error("sign in")
		http.Error(w, "sign in failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) signOut(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profileId")
	if profileID == "" {
		http.Error(w, "missing profileId", http.StatusBadRequest)
		return
	}
	if err := h.service.Logout(r.Context(), profileID); err != nil {
		h.log.WithError(err).Error("sign out")
		http.Error(w, "sign out failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func deadline() time.Time {
	return time.Now().Add(time.Second)
}
