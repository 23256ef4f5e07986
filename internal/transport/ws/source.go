// Package ws reads real-time service events from a WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/roach88/svcstore/internal/transport"
)

// EventSource dials a WebSocket endpoint and hands every well-formed event
// frame to its handler, in arrival order, on the goroutine calling Run.
type EventSource struct {
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	handler func(transport.Event)
	log     *slog.Logger
}

// Option configures an EventSource.
type Option func(*EventSource)

// WithHeader sends extra headers with the handshake.
func WithHeader(h http.Header) Option {
	return func(s *EventSource) {
		s.header = h
	}
}

// WithLogger sets the logger for dropped frames.
func WithLogger(l *slog.Logger) Option {
	return func(s *EventSource) {
		s.log = l
	}
}

// NewEventSource creates a source for url ("ws://host/ws").
func NewEventSource(url string, handler func(transport.Event), opts ...Option) *EventSource {
	s := &EventSource{
		url:     url,
		dialer:  websocket.DefaultDialer,
		handler: handler,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run connects and reads frames until ctx is done or the connection drops.
// It returns nil when ctx ends the connection.
func (s *EventSource) Run(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-done:
		}
	}()

	s.log.Info("event source connected", "url", s.url)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info("event source closed by server", "url", s.url)
				return nil
			}
			return fmt.Errorf("read %s: %w", s.url, err)
		}
		ev, err := DecodeFrame(msg)
		if err != nil {
			s.log.Warn("dropping event frame", "url", s.url, "error", err)
			continue
		}
		s.handler(ev)
	}
}

// DecodeFrame parses one {"service","event","data"} frame.
func DecodeFrame(msg []byte) (transport.Event, error) {
	var ev transport.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		return transport.Event{}, fmt.Errorf("decode frame: %w", err)
	}
	if ev.Service == "" {
		return transport.Event{}, fmt.Errorf("frame has no service")
	}
	if !ev.Name.Valid() {
		return transport.Event{}, fmt.Errorf("unknown event %q", ev.Name)
	}
	if ev.Data == nil {
		return transport.Event{}, fmt.Errorf("%s %s frame has no data", ev.Service, ev.Name)
	}
	return ev, nil
}
