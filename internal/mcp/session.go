package mcp

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rayhanfay/sistem-rangkuman-data/pkg/jsonrpc"
)

// Session serves one websocket connection. Inbound frames are processed
// sequentially, so a synchronous response is always written before the
// next frame is read. All outbound traffic, responses and background
// notifications alike, flows through a single writer goroutine.
type Session struct {
	ID         string
	conn       *websocket.Conn
	dispatcher *Dispatcher

	out  chan []byte
	done chan struct{}
}

// NewSession wraps an upgraded connection.
func NewSession(conn *websocket.Conn, d *Dispatcher) *Session {
	return &Session{
		ID:         uuid.NewString(),
		conn:       conn,
		dispatcher: d,
		out:        make(chan []byte, 16),
		done:       make(chan struct{}),
	}
}

// Run serves frames until the client disconnects or ctx is canceled.
func (s *Session) Run(ctx context.Context) {
	logger := log.Ctx(ctx).With().Str("session_id", s.ID).Logger()
	ctx = logger.WithContext(ctx)

	if limit := s.dispatcher.Ctrl.Limits().MaxMessageBytes; limit > 0 {
		s.conn.SetReadLimit(limit)
	}

	go s.writeLoop(&logger)
	defer close(s.done)

	logger.Info().Msg("session opened")
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("connection closed unexpectedly")
			} else {
				logger.Info().Msg("session closed")
			}
			return
		}

		if resp := s.dispatcher.Handle(ctx, data, s.notifier(&logger)); resp != nil {
			s.send(&logger, resp)
		}
	}
}

// notifier adapts the session's outbound queue to the analysis progress
// callback. A notification arriving after disconnect is dropped.
func (s *Session) notifier(logger *zerolog.Logger) func(status, message string) {
	return func(status, message string) {
		s.send(logger, jsonrpc.NewNotification(ProgressMethod, map[string]string{
			"status":  status,
			"message": message,
		}))
	}
}

func (s *Session) send(logger *zerolog.Logger, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error().Err(err).Msg("marshaling outbound message failed")
		return
	}
	select {
	case s.out <- data:
	case <-s.done:
	}
}

func (s *Session) writeLoop(logger *zerolog.Logger) {
	for {
		select {
		case data := <-s.out:
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Warn().Err(err).Msg("write failed")
				return
			}
		case <-s.done:
			return
		}
	}
}
