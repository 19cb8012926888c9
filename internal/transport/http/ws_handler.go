package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"echo-trivia/internal/app"
	"echo-trivia/internal/auth"
	"echo-trivia/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler streams a Jeopardy board to its owner and accepts moves over the same socket.
type WSHandler struct {
	jeopardy *app.JeopardyService
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(jeopardy *app.JeopardyService, log *slog.Logger) *WSHandler {
	return &WSHandler{
		jeopardy: jeopardy,
		log:      log,
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

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type wsError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func wsErr(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: wsError{Error: domain.Code(err), Message: err.Error()}}
}

// ServeWS expects ?gameId= and an identity from the auth middleware (usually ?token=).
// The first message is the current board; later "board" messages follow every change.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if !id.IsAuthenticated() {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: domain.CodeUnauthorized, Message: domain.ErrSignInRequired.Error()})
		return
	}
	gameID := r.URL.Query().Get("gameId")
	if gameID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: domain.CodeValidationFailed, Message: "missing gameId"})
		return
	}

	updates, cancel, err := h.jeopardy.Watch(r.Context(), id.UserID, gameID)
	if err != nil {
		writeJSON(w, statusFor(err, domain.Code(err)), errorBody{Error: domain.Code(err), Message: err.Error()})
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "game", gameID, "err", err)
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
					select {
					case send <- outboundMessage[any]{Type: "closed", Payload: struct{}{}}:
					case <-closeSignals:
					}
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "board", Payload: update}:
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
		switch inbound.Type {
		case "select":
			var payload selectCellRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- wsErr(domain.Validationf("invalid select payload"))
				continue
			}
			q, err := h.jeopardy.SelectCell(r.Context(), id.UserID, gameID, payload.Category, payload.Points)
			if err != nil {
				send <- wsErr(err)
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: q}
		case "answer":
			var payload answerRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- wsErr(domain.Validationf("invalid answer payload"))
				continue
			}
			res, err := h.jeopardy.SubmitAnswer(r.Context(), id.UserID, gameID, payload.QuestionID, payload.Response)
			if err != nil {
				send <- wsErr(err)
				continue
			}
			status := statusAnswered
			if res.Verdict.AlreadyAnswered {
				status = domain.CodeAlreadyAnswered
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: answerBody{Status: status, Result: res}}
		default:
			send <- wsErr(domain.Validationf("unsupported message type %q", inbound.Type))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
