package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"quizmaster/internal/app"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
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
	Index  int    `json:"index"`
	Answer string `json:"answer"`
}

type indexPayload struct {
	Index int `json:"index"`
}

type hintResult struct {
	Index int    `json:"index"`
	Hint  string `json:"hint"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and drives one live session:
// timer ticks, submission and hints are pushed; answers, navigation, submit,
// hint requests and abandonment are read.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	session, err := h.service.Session(sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The request context ends with the handler; the session outlives it.
	ctx := context.WithoutCancel(r.Context())

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("ws write error", "session", sessionID, "error", err)
				// Unblock the reader as well.
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if enqueue(send, writerDone, outboundMessage[any]{Type: "joined", Payload: session.View()}) {
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				break
			}
			msg, done := h.dispatch(ctx, sessionID, inbound)
			if msg.Type != "" && !enqueue(send, writerDone, msg) {
				break
			}
			if done {
				break
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer goroutine. It reports false once the
// writer has exited, so a dead connection never blocks the caller.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// dispatch handles one inbound message and returns the direct reply. done
// reports that the connection should close.
func (h *WSHandler) dispatch(ctx context.Context, sessionID string, in inboundMessage) (outboundMessage[any], bool) {
	fail := func(msg string) (outboundMessage[any], bool) {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}, false
	}

	switch in.Type {
	case "answer":
		var p answerPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return fail("invalid answer payload")
		}
		fb, err := h.service.SetAnswer(ctx, sessionID, p.Index, p.Answer)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "feedback", Payload: fb}, false

	case "goto":
		var p indexPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return fail("invalid goto payload")
		}
		cursor, err := h.service.GoTo(ctx, sessionID, p.Index)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "cursor", Payload: indexPayload{Index: cursor}}, false

	case "submit":
		// The submitted event reaches every subscriber, this one included.
		if _, err := h.service.Submit(ctx, sessionID); err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{}, false

	case "hint":
		var p indexPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return fail("invalid hint payload")
		}
		hint, err := h.service.Hint(ctx, sessionID, p.Index)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "hintResult", Payload: hintResult{Index: p.Index, Hint: hint}}, false

	case "abandon":
		_ = h.service.Abandon(ctx, sessionID)
		return outboundMessage[any]{Type: "abandoned", Payload: struct{}{}}, true

	default:
		return fail("unsupported message type")
	}
}
