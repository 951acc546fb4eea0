package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/marketpulse/internal/cache"
	"github.com/aristath/marketpulse/internal/events"
	"github.com/aristath/marketpulse/internal/modules/health"
)

const (
	streamBufferSize   = 100
	streamWriteTimeout = 10 * time.Second
	heartbeatInterval  = 30 * time.Second

	messageSnapshot  = "SNAPSHOT"
	messageHeartbeat = "HEARTBEAT"
)

// HealthSummarizer is implemented by health.Reporter
type HealthSummarizer interface {
	Summary(ctx context.Context, now time.Time) health.Summary
}

// MarketDataReader is implemented by market_data.Service
type MarketDataReader interface {
	GetAll() map[string]cache.Payload
}

// StreamMessage is one frame sent to the browser
type StreamMessage struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// EventsStreamHandler streams dashboard events to browsers over WebSocket.
// Each client starts with a snapshot of health and market data, then receives
// bus events as they happen. A client that cannot keep up loses events rather
// than slowing down the bus.
type EventsStreamHandler struct {
	bus        *events.Bus
	health     HealthSummarizer
	marketData MarketDataReader
	heartbeat  time.Duration
	clients    int32
	log        zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(bus *events.Bus, healthSummary HealthSummarizer, marketData MarketDataReader, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus:        bus,
		health:     healthSummary,
		marketData: marketData,
		heartbeat:  heartbeatInterval,
		log:        log.With().Str("component", "events_stream").Logger(),
	}
}

// Clients returns the number of connected browsers
func (h *EventsStreamHandler) Clients() int {
	return int(atomic.LoadInt32(&h.clients))
}

// ServeHTTP handles GET /ws
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	clientID := uuid.NewString()
	log := h.log.With().Str("client_id", clientID).Logger()

	atomic.AddInt32(&h.clients, 1)
	defer atomic.AddInt32(&h.clients, -1)

	// Browsers never send anything; CloseRead handles control frames and
	// cancels ctx once the client goes away.
	ctx := conn.CloseRead(r.Context())

	eventChan := make(chan *events.Event, streamBufferSize)
	ids := h.bus.SubscribeMany(events.StreamedTypes, func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	})
	defer h.bus.Unsubscribe(ids...)

	log.Info().Int("clients", h.Clients()).Msg("Client connected to event stream")

	if err := h.write(ctx, conn, h.snapshot(ctx)); err != nil {
		log.Debug().Err(err).Msg("Failed to send snapshot")
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			msg := StreamMessage{
				ID:        event.ID,
				Type:      string(event.Type),
				Timestamp: event.Timestamp.Format(time.RFC3339),
				Data:      event.Data,
			}
			if err := h.write(ctx, conn, msg); err != nil {
				log.Debug().Err(err).Msg("Failed to forward event")
				return
			}

		case <-heartbeat.C:
			msg := StreamMessage{
				ID:        uuid.NewString(),
				Type:      messageHeartbeat,
				Timestamp: time.Now().Format(time.RFC3339),
			}
			if err := h.write(ctx, conn, msg); err != nil {
				log.Debug().Err(err).Msg("Failed to send heartbeat")
				return
			}
		}
	}
}

func (h *EventsStreamHandler) snapshot(ctx context.Context) StreamMessage {
	now := time.Now()
	return StreamMessage{
		ID:        uuid.NewString(),
		Type:      messageSnapshot,
		Timestamp: now.Format(time.RFC3339),
		Data: map[string]interface{}{
			"health":      h.health.Summary(ctx, now),
			"market_data": h.marketData.GetAll(),
		},
	}
}

func (h *EventsStreamHandler) write(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, msg)
}
