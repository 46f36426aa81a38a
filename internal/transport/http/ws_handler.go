package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"quiz-engine/internal/app"
	"quiz-engine/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	auth     app.Authenticator
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, auth app.Authenticator, log logrus.FieldLogger) *WSHandler {
	return &WSHandler{
		service: service,
		auth:    auth,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type answerResult struct {
	Answer  string `json:"answer"`
	Correct bool   `json:"correct"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the profile's quiz engine.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profileId")
	if profileID == "" {
		http.Error(w, "missing profileId", http.StatusBadRequest)
		return
	}
	if !h.auth.IsAuthenticated(r.Context(), profileID) {
		http.Error(w, domain.ErrUnauthenticated.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithField("profile", profileID)
	engine, err := h.service.Connect(r.Context(), profileID)
	if engine == nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}
	defer h.service.Release(profileID)

	updates, cancel := engine.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				return
			}
			if msg.Type == "closed" {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "logged out"), deadline())
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- toMessage(update):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var msg *outboundMessage[any]
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				msg = errorMessage(errors.New("invalid answer payload"))
				break
			}
			rec, err := h.service.SubmitAnswer(r.Context(), profileID, payload.Answer)
			if err != nil {
				msg = errorMessage(err)
				break
			}
			msg = &outboundMessage[any]{Type: "answerResult", Payload: answerResult{Answer: rec.SelectedAnswer, Correct: rec.IsCorrect}}
		case "restart":
			if err := h.service.Restart(r.Context(), profileID); err != nil {
				msg = errorMessage(err)
			}
		case "logout":
			if err := h.service.Logout(r.Context(), profileID); err != nil {
				msg = errorMessage(err)
			}
		default:
			msg = errorMessage(errors.New("unsupported message type"))
		}
		if msg != nil {
			select {
			case send <- *msg:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func toMessage(update domain.Update) outboundMessage[any] {
	switch update.Status {
	case domain.StatusInProgress:
		return outboundMessage[any]{Type: "state", Payload: update.View}
	case domain.StatusFinished:
		return outboundMessage[any]{Type: "finished", Payload: update.Summary}
	case domain.StatusFailed:
		return outboundMessage[any]{Type: "error", Payload: toErrorPayload(update.Err)}
	case domain.StatusClosed:
		return outboundMessage[any]{Type: "closed"}
	default:
		return outboundMessage[any]{Type: "loading"}
	}
}

func errorMessage(err error) *outboundMessage[any] {
	return &outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}
}

func toErrorPayload(err error) errorPayload {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return errorPayload{Message: perr.Message(), Code: perr.Kind.String()}
	}
	if err == nil {
		return errorPayload{Message: "unknown error"}
	}
	return errorPayload{Message: err.Error()}
}
