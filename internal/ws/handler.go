// Package ws bridges websocket connections to the orchestrator: one reader
// loop decoding actions, one writer goroutine draining the client outbox.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/srcmax-studio/war-drafting-simulator-server/internal/protocol"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/server"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/session"
)

const writeTimeout = 3 * time.Second

func Handler(s *server.Server, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // cross-origin game clients
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		outbox := make(chan protocol.Event, 32)
		id := uuid.NewString()
		client := session.NewClient(id, r.RemoteAddr, outbox, func(code int, reason string) {
			_ = conn.Close(websocket.StatusCode(code), reason)
		})

		s.Connect(client)
		defer s.Disconnect(id)

		// Writer: drains the outbox until the orchestrator closes it.
		writeCtx, cancelWrites := context.WithCancel(context.Background())
		defer cancelWrites()
		go func() {
			for ev := range outbox {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				err := conn.Write(ctx, websocket.MessageText, protocol.Marshal(ev))
				cancel()
				if err != nil {
					return
				}
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("websocket read ended", zap.String("remote", r.RemoteAddr), zap.Error(err))
				}
				return
			}

			action, err := protocol.ParseAction(data)
			switch {
			case errors.Is(err, protocol.ErrMalformed):
				client.Send(protocol.NewErrorEvent("Malformed request."))
			case errors.Is(err, protocol.ErrUnknownAction):
				log.Debug("unknown action ignored", zap.String("remote", r.RemoteAddr))
			default:
				s.Submit(id, action)
			}
		}
	}
}
