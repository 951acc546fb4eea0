package market_data

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpulse/internal/cache"
	"github.com/aristath/marketpulse/internal/clients/broker"
	"github.com/aristath/marketpulse/internal/events"
	"github.com/aristath/marketpulse/pkg/formulas"
)

const (
	emaFast   = 9
	emaSlow   = 21
	rsiPeriod = 14
)

// QuoteSource is implemented by broker.Client
type QuoteSource interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]broker.Quote, error)
	GetOptionChain(ctx context.Context, underlying string) (*broker.OptionChain, error)
}

// SessionGate is implemented by market_hours.SessionService
type SessionGate interface {
	IsTradingHours(now time.Time) bool
}

// AuthGate is implemented by auth.Tracker
type AuthGate interface {
	IsValid(ctx context.Context) bool
}

// EventEmitter is implemented by events.Manager
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// FeedObserver is implemented by feed.Watchdog
type FeedObserver interface {
	OnTick()
}

// Service writes quotes and ticks into the cache and reads them back
type Service struct {
	store         *cache.Store
	quotes        QuoteSource
	session       SessionGate
	auth          AuthGate
	emitter       EventEmitter
	feed          FeedObserver
	symbols       []string
	underlyings   []string
	candleHistory int
	now           func() time.Time
	log           zerolog.Logger

	// serializes candle read-modify-write between the poller and the tick stream
	candleMu sync.Mutex
}

// NewService creates a new market data service
func NewService(
	store *cache.Store,
	quotes QuoteSource,
	session SessionGate,
	authGate AuthGate,
	emitter EventEmitter,
	symbols []string,
	underlyings []string,
	candleHistory int,
	log zerolog.Logger,
) *Service {
	if candleHistory <= 0 {
		candleHistory = 200
	}
	return &Service{
		store:         store,
		quotes:        quotes,
		session:       session,
		auth:          authGate,
		emitter:       emitter,
		symbols:       symbols,
		underlyings:   underlyings,
		candleHistory: candleHistory,
		now:           time.Now,
		log:           log.With().Str("service", "market_data").Logger(),
	}
}

// SetFeedObserver makes every polled quote count as a feed tick.
// Used when no tick stream is configured.
func (s *Service) SetFeedObserver(observer FeedObserver) {
	s.feed = observer
}

// Poll fetches quotes and option chains once.
// Outside trading hours or without a valid session it does nothing, so the
// cache keeps serving the last session's data from its backup slots.
func (s *Service) Poll(ctx context.Context) (PollResult, error) {
	now := s.now()
	if !s.session.IsTradingHours(now) {
		return PollResult{Skipped: true, Reason: "outside trading hours"}, nil
	}
	if !s.auth.IsValid(ctx) {
		return PollResult{Skipped: true, Reason: "broker session not valid"}, nil
	}

	quotes, err := s.quotes.GetQuotes(ctx, s.symbols)
	if err != nil {
		return PollResult{}, fmt.Errorf("quote poll failed: %w", err)
	}

	var result PollResult
	for symbol, q := range quotes {
		if err := s.storeQuote(symbol, q, now); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache quote")
			continue
		}
		if s.feed != nil {
			s.feed.OnTick()
		}
		result.Symbols = append(result.Symbols, symbol)
	}

	for _, underlying := range s.underlyings {
		if err := s.storeOptionChain(ctx, underlying, now); err != nil {
			result.OptionsErr++
			s.log.Warn().Err(err).Str("underlying", underlying).Msg("Failed to refresh option chain")
			continue
		}
		result.OptionsOK++
		result.Symbols = append(result.Symbols, OptionsSymbol(underlying))
	}

	sort.Strings(result.Symbols)
	if len(result.Symbols) > 0 && s.emitter != nil {
		s.emitter.EmitTyped("market_data", &events.MarketDataUpdatedData{
			Symbols: result.Symbols,
			Source:  SourcePoll,
		})
	}
	return result, nil
}

// HandleTick applies one streamed tick to the cached payload of its symbol
func (s *Service) HandleTick(tick broker.Tick) {
	if tick.Symbol == "" || tick.LastPrice <= 0 {
		return
	}
	now := s.now()

	payload, ok := s.store.GetMarketData(tick.Symbol)
	if !ok {
		payload = cache.Payload{"symbol": tick.Symbol}
	}
	delete(payload, cache.FieldIsCached)
	delete(payload, cache.FieldCacheSource)
	delete(payload, cache.FieldCachedAt)

	payload["last_price"] = tick.LastPrice
	if tick.Volume > 0 {
		payload["volume"] = tick.Volume
	}
	if tick.OI > 0 {
		payload["oi"] = tick.OI
	}
	if prevClose, ok := asFloat(payload["prev_close"]); ok && prevClose != 0 {
		payload["change"] = tick.LastPrice - prevClose
		payload["change_pct"] = (tick.LastPrice - prevClose) / prevClose * 100
	}
	payload["timestamp"] = now.UTC().Format(time.RFC3339)
	payload["source"] = SourceStream

	closes, err := s.updateCandle(tick.Symbol, tick.LastPrice, tick.Volume, now)
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", tick.Symbol).Msg("Failed to update candle")
	} else {
		payload["indicators"] = indicators(closes)
	}

	if err := s.store.SetMarketData(tick.Symbol, payload); err != nil {
		s.log.Debug().Err(err).Str("symbol", tick.Symbol).Msg("Failed to cache tick")
	}
}

// GetAll returns the last known payload of every symbol
func (s *Service) GetAll() map[string]cache.Payload {
	return s.store.GetAllMarketData()
}

// Get returns the last known payload of one symbol
func (s *Service) Get(symbol string) (cache.Payload, bool) {
	return s.store.GetMarketData(symbol)
}

// Candles returns up to limit candles, oldest first
func (s *Service) Candles(symbol string, limit int) []Candle {
	if limit <= 0 {
		limit = s.candleHistory
	}
	raw := s.store.Range(cache.CandleKey(symbol), 0, limit-1)

	candles := make([]Candle, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		if c, ok := candleFromPayload(raw[i]); ok {
			candles = append(candles, c)
		}
	}
	return candles
}

func (s *Service) storeQuote(symbol string, q broker.Quote, now time.Time) error {
	closes, err := s.updateCandle(symbol, q.LastPrice, q.Volume, now)
	if err != nil {
		return err
	}

	payload := cache.Payload{
		"symbol":     symbol,
		"last_price": q.LastPrice,
		"change":     q.LastPrice - q.OHLC.Close,
		"change_pct": q.ChangePct(),
		"open":       q.OHLC.Open,
		"high":       q.OHLC.High,
		"low":        q.OHLC.Low,
		"prev_close": q.OHLC.Close,
		"volume":     q.Volume,
		"oi":         q.OI,
		"timestamp":  now.UTC().Format(time.RFC3339),
		"source":     SourcePoll,
		"indicators": indicators(closes),
	}
	return s.store.SetMarketData(symbol, payload)
}

func (s *Service) storeOptionChain(ctx context.Context, underlying string, now time.Time) error {
	chain, err := s.quotes.GetOptionChain(ctx, underlying)
	if err != nil {
		return err
	}

	strikes := make([]formulas.StrikeOI, len(chain.Strikes))
	for i, st := range chain.Strikes {
		strikes[i] = formulas.StrikeOI{
			Strike:       st.Strike,
			CallOI:       st.CallOI,
			PutOI:        st.PutOI,
			CallOIChange: st.CallOIChange,
			PutOIChange:  st.PutOIChange,
		}
	}
	m := formulas.CalculateOIMetrics(strikes)

	payload := cache.Payload{
		"symbol":             OptionsSymbol(underlying),
		"underlying":         underlying,
		"expiry":             chain.Expiry,
		"spot_price":         chain.SpotPrice,
		"strikes":            int64(len(chain.Strikes)),
		"total_call_oi":      m.TotalCallOI,
		"total_put_oi":       m.TotalPutOI,
		"call_oi_change":     m.CallOIChange,
		"put_oi_change":      m.PutOIChange,
		"max_call_oi_strike": m.MaxCallOIStrike,
		"max_put_oi_strike":  m.MaxPutOIStrike,
		"max_pain":           m.MaxPain,
		"sentiment":          m.Sentiment,
		"timestamp":          now.UTC().Format(time.RFC3339),
		"source":             SourcePoll,
	}
	if m.PCR != nil {
		payload["pcr"] = *m.PCR
	}
	if m.ChangePCR != nil {
		payload["change_pcr"] = *m.ChangePCR
	}
	return s.store.SetMarketData(OptionsSymbol(underlying), payload)
}

// updateCandle folds a price into the current minute's candle and returns the
// candle closes, oldest first.
func (s *Service) updateCandle(symbol string, price float64, volume int64, now time.Time) ([]float64, error) {
	s.candleMu.Lock()
	defer s.candleMu.Unlock()

	key := cache.CandleKey(symbol)
	minute := now.Truncate(time.Minute)

	head := s.store.Range(key, 0, 0)
	var current Candle
	sameMinute := false
	if len(head) == 1 {
		if c, ok := candleFromPayload(head[0]); ok && c.Time.Equal(minute.UTC()) {
			current, sameMinute = c, true
		}
	}

	if sameMinute {
		current.High = max(current.High, price)
		current.Low = min(current.Low, price)
		current.Close = price
		if volume > current.Volume {
			current.Volume = volume
		}
		if _, err := s.store.SetIndex(key, 0, current.payload()); err != nil {
			return nil, err
		}
	} else {
		current = Candle{Time: minute.UTC(), Open: price, High: price, Low: price, Close: price, Volume: volume}
		if err := s.store.PushBounded(key, current.payload(), s.candleHistory); err != nil {
			return nil, err
		}
	}

	candles := s.Candles(symbol, s.candleHistory)
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes, nil
}

func indicators(closes []float64) map[string]interface{} {
	out := map[string]interface{}{
		"candles": int64(len(closes)),
		"trend":   formulas.EMACrossover(closes, emaFast, emaSlow),
	}
	if v := formulas.CalculateEMA(closes, emaFast); v != nil {
		out["ema_9"] = *v
	}
	if v := formulas.CalculateEMA(closes, emaSlow); v != nil {
		out["ema_21"] = *v
	}
	if v := formulas.CalculateRSI(closes, rsiPeriod); v != nil {
		out["rsi_14"] = *v
		out["rsi_zone"] = formulas.RSIZone(*v)
	}
	return out
}
