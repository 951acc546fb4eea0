package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	baseReconnectDelay = 2 * time.Second
	maxReconnectDelay  = 2 * time.Minute

	tickChannel = "ticks"
)

// FeedObserver is notified of feed activity (implemented by the feed watchdog)
type FeedObserver interface {
	OnTick()
	OnReconnect()
}

// TickHandler consumes streamed ticks
type TickHandler interface {
	HandleTick(tick Tick)
}

// TickStream streams live ticks from the broker websocket.
// It reconnects with exponential backoff until stopped, reporting every tick and
// every successful reconnect to the observer.
type TickStream struct {
	url     string
	apiKey  string
	symbols []string
	tokens  TokenProvider

	observer FeedObserver
	handler  TickHandler
	log      zerolog.Logger

	minDelay time.Duration
	maxDelay time.Duration

	mu        sync.RWMutex
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewTickStream creates a new tick stream
func NewTickStream(
	streamURL string,
	apiKey string,
	symbols []string,
	tokens TokenProvider,
	observer FeedObserver,
	handler TickHandler,
	log zerolog.Logger,
) *TickStream {
	return &TickStream{
		url:      streamURL,
		apiKey:   apiKey,
		symbols:  symbols,
		tokens:   tokens,
		observer: observer,
		handler:  handler,
		log:      log.With().Str("component", "tick_stream").Logger(),
		minDelay: baseReconnectDelay,
		maxDelay: maxReconnectDelay,
	}
}

// Start runs the connect/read/reconnect loop in the background
func (s *TickStream) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.log.Info().Strs("symbols", s.symbols).Msg("Starting tick stream")
	go s.run(ctx, s.done)
}

// Stop closes the connection and waits for the loop to exit
func (s *TickStream) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info().Msg("Tick stream stopped")
}

// IsConnected returns current connection status
func (s *TickStream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *TickStream) setConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}

func (s *TickStream) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.minDelay
	b.MaxInterval = s.maxDelay
	b.MaxElapsedTime = 0 // never give up

	everConnected := false
	attempt := 0
	for {
		attempt++
		err := s.session(ctx, func() {
			if everConnected {
				s.observer.OnReconnect()
				s.log.Info().Int("attempt", attempt).Msg("Successfully reconnected to tick stream")
			}
			everConnected = true
			attempt = 0
			b.Reset()
		})
		s.setConnected(false)

		if ctx.Err() != nil {
			return
		}

		delay := b.NextBackOff()
		s.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Tick stream disconnected, reconnecting")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// session dials, subscribes and reads until the connection drops
func (s *TickStream) session(ctx context.Context, onConnected func()) error {
	token := ""
	if s.tokens != nil {
		token = s.tokens.AccessToken()
	}
	if token == "" {
		return ErrNoToken
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, s.streamURL(token), nil)
	if err != nil {
		return fmt.Errorf("failed to dial tick stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := s.subscribe(ctx, conn); err != nil {
		return err
	}

	s.setConnected(true)
	onConnected()

	for {
		msgType, message, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("tick stream read failed: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}
		if err := s.handleMessage(message); err != nil {
			s.log.Debug().Err(err).Str("message", truncate(string(message), maxBodyLogBytes)).Msg("Ignoring malformed tick message")
		}
	}
}

func (s *TickStream) streamURL(token string) string {
	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("access_token", token)
	return s.url + "?" + q.Encode()
}

// subscribe sends {"a":"subscribe","v":[symbols]}
func (s *TickStream) subscribe(ctx context.Context, conn *websocket.Conn) error {
	data, err := json.Marshal(map[string]interface{}{"a": "subscribe", "v": s.symbols})
	if err != nil {
		return fmt.Errorf("failed to marshal subscription message: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send subscription message: %w", err)
	}
	return nil
}

// handleMessage parses ["ticks", [tick, ...]] frames
func (s *TickStream) handleMessage(message []byte) error {
	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		return fmt.Errorf("failed to parse message array: %w", err)
	}
	if len(frame) < 2 {
		return fmt.Errorf("message array too short: expected 2 elements, got %d", len(frame))
	}

	var channel string
	if err := json.Unmarshal(frame[0], &channel); err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}
	if channel != tickChannel {
		return nil
	}

	var ticks []Tick
	if err := json.Unmarshal(frame[1], &ticks); err != nil {
		return fmt.Errorf("failed to parse ticks: %w", err)
	}

	for _, tick := range ticks {
		s.observer.OnTick()
		if s.handler != nil {
			s.handler.HandleTick(tick)
		}
	}
	return nil
}
