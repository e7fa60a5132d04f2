package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/forexbot/internal/events"
)

const (
	eventBufferSize = 100
	pingInterval    = 30 * time.Second
	writeTimeout    = 10 * time.Second
)

// EventsStreamHandler streams job lifecycle events over a websocket.
type EventsStreamHandler struct {
	eventBus *events.Bus
	devMode  bool
	log      zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(eventBus *events.Bus, devMode bool, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		devMode:  devMode,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws. An optional ?types=a,b query limits
// the stream to the named event types.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.eventBus == nil {
		http.Error(w, "event stream is not available", http.StatusServiceUnavailable)
		return
	}

	opts := &websocket.AcceptOptions{}
	if h.devMode {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	types := parseTypesFilter(r.URL.Query().Get("types"))

	eventChan := make(chan *events.Event, eventBufferSize)
	handler := func(event *events.Event) {
		// Drop rather than block the emitter.
		select {
		case eventChan <- event:
		default:
			h.log.Warn().Str("event_type", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}

	ids := make([]events.SubscriptionID, 0, len(types))
	for _, eventType := range types {
		ids = append(ids, h.eventBus.Subscribe(eventType, handler))
	}
	defer func() {
		for _, id := range ids {
			h.eventBus.Unsubscribe(id)
		}
	}()

	h.log.Info().Int("types", len(types)).Msg("Client connected to event stream")

	// Clients only listen; CloseRead handles control frames and cancels ctx on disconnect.
	ctx := conn.CloseRead(r.Context())

	if err := h.write(ctx, conn, map[string]interface{}{
		"type":      "connected",
		"timestamp": time.Now().UTC(),
	}); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-eventChan:
			if err := h.write(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("Event stream write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *EventsStreamHandler) write(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

// parseTypesFilter returns the known event types named in raw, or all of them.
func parseTypesFilter(raw string) []events.EventType {
	if raw == "" {
		return events.AllTypes
	}

	known := make(map[events.EventType]bool, len(events.AllTypes))
	for _, t := range events.AllTypes {
		known[t] = true
	}

	var types []events.EventType
	seen := make(map[events.EventType]bool)
	for _, part := range strings.Split(raw, ",") {
		t := events.EventType(strings.TrimSpace(part))
		if known[t] && !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return events.AllTypes
	}
	return types
}
