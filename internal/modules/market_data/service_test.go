package market_data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpulse/internal/cache"
	"github.com/aristath/marketpulse/internal/clients/broker"
	"github.com/aristath/marketpulse/internal/events"
)

type fakeQuotes struct {
	calls     int
	quotes    map[string]broker.Quote
	err       error
	chains    map[string]*broker.OptionChain
	chainErrs map[string]error
}

func (f *fakeQuotes) GetQuotes(ctx context.Context, symbols []string) (map[string]broker.Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]broker.Quote)
	for _, s := range symbols {
		if q, ok := f.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

func (f *fakeQuotes) GetOptionChain(ctx context.Context, underlying string) (*broker.OptionChain, error) {
	if err := f.chainErrs[underlying]; err != nil {
		return nil, err
	}
	return f.chains[underlying], nil
}

type gate bool

func (g gate) IsTradingHours(time.Time) bool { return bool(g) }
func (g gate) IsValid(context.Context) bool  { return bool(g) }

type recordingEmitter struct {
	events []events.EventData
}

func (e *recordingEmitter) EmitTyped(module string, data events.EventData) {
	e.events = append(e.events, data)
}

type testEnv struct {
	service *Service
	store   *cache.Store
	quotes  *fakeQuotes
	emitter *recordingEmitter
	now     time.Time
}

func newTestEnv(trading, authValid bool) *testEnv {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	env := &testEnv{
		store: cache.NewStore(time.Hour, 24*time.Hour, log),
		quotes: &fakeQuotes{
			quotes: map[string]broker.Quote{
				"NSE:NIFTY 50": {
					LastPrice: 24812.35,
					Volume:    0,
					OHLC:      broker.OHLC{Open: 24900, High: 24950.5, Low: 24780.1, Close: 24911},
				},
			},
			chains: map[string]*broker.OptionChain{
				"NIFTY": {
					Underlying: "NIFTY",
					Expiry:     "2026-10-27",
					SpotPrice:  24812.35,
					Strikes: []broker.OptionStrike{
						{Strike: 24800, CallOI: 120000, PutOI: 180000},
						{Strike: 24900, CallOI: 100000, PutOI: 90000},
					},
				},
			},
		},
		emitter: &recordingEmitter{},
		now:     time.Date(2026, 10, 19, 4, 30, 5, 0, time.UTC),
	}
	env.service = NewService(env.store, env.quotes, gate(trading), gate(authValid), env.emitter,
		[]string{"NSE:NIFTY 50"}, []string{"NIFTY"}, 50, log)
	env.service.now = func() time.Time { return env.now }
	return env
}

func TestPoll_SkipsOutsideTradingHours(t *testing.T) {
	env := newTestEnv(false, true)

	result, err := env.service.Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 0, env.quotes.calls)
	assert.Empty(t, env.emitter.events)
}

func TestPoll_SkipsWithoutValidSession(t *testing.T) {
	env := newTestEnv(true, false)

	result, err := env.service.Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 0, env.quotes.calls)
}

func TestPoll_StoresQuotesAndOptionMetrics(t *testing.T) {
	env := newTestEnv(true, true)

	result, err := env.service.Poll(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, []string{"NSE:NIFTY 50", "OPTIONS:NIFTY"}, result.Symbols)
	assert.Equal(t, 1, result.OptionsOK)

	quote, ok := env.service.Get("NSE:NIFTY 50")
	require.True(t, ok)
	assert.Equal(t, 24812.35, quote["last_price"])
	assert.Equal(t, 24911.0, quote["prev_close"])
	assert.Equal(t, SourcePoll, quote["source"])
	assert.NotContains(t, quote, cache.FieldIsCached)
	ind := quote["indicators"].(map[string]interface{})
	assert.Equal(t, int64(1), ind["candles"])
	assert.Equal(t, "NEUTRAL", ind["trend"])

	options, ok := env.service.Get(OptionsSymbol("NIFTY"))
	require.True(t, ok)
	assert.Equal(t, 1.23, options["pcr"])
	assert.Equal(t, "BULLISH", options["sentiment"])
	assert.Equal(t, 24800.0, options["max_call_oi_strike"])

	require.Len(t, env.emitter.events, 1)
	updated := env.emitter.events[0].(*events.MarketDataUpdatedData)
	assert.Equal(t, result.Symbols, updated.Symbols)
	assert.Len(t, env.service.GetAll(), 2)
}

type countingObserver struct {
	ticks int
}

func (o *countingObserver) OnTick() { o.ticks++ }

func TestPoll_ReportsQuotesToFeedObserver(t *testing.T) {
	env := newTestEnv(true, true)
	observer := &countingObserver{}
	env.service.SetFeedObserver(observer)

	_, err := env.service.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, observer.ticks)

	env.quotes.err = errors.New("broker returned status 503")
	_, err = env.service.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, observer.ticks, "failed polls are not ticks")
}

func TestPoll_QuoteFailureIsReturned(t *testing.T) {
	env := newTestEnv(true, true)
	env.quotes.err = errors.New("broker returned status 503")

	_, err := env.service.Poll(context.Background())
	require.Error(t, err)
	assert.Empty(t, env.emitter.events)
}

func TestPoll_OptionChainFailureDoesNotStopQuotes(t *testing.T) {
	env := newTestEnv(true, true)
	env.quotes.chainErrs = map[string]error{"NIFTY": errors.New("timeout")}

	result, err := env.service.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.OptionsErr)
	assert.Equal(t, []string{"NSE:NIFTY 50"}, result.Symbols)
}

func TestCandles_AggregatePerMinute(t *testing.T) {
	env := newTestEnv(true, true)
	prices := []struct {
		at    time.Time
		price float64
	}{
		{time.Date(2026, 10, 19, 4, 30, 5, 0, time.UTC), 100},
		{time.Date(2026, 10, 19, 4, 30, 35, 0, time.UTC), 105},
		{time.Date(2026, 10, 19, 4, 30, 50, 0, time.UTC), 98},
		{time.Date(2026, 10, 19, 4, 31, 10, 0, time.UTC), 95},
	}

	for _, p := range prices {
		env.now = p.at
		env.quotes.quotes["NSE:NIFTY 50"] = broker.Quote{LastPrice: p.price}
		_, err := env.service.Poll(context.Background())
		require.NoError(t, err)
	}

	candles := env.service.Candles("NSE:NIFTY 50", 0)
	require.Len(t, candles, 2)
	assert.Equal(t, Candle{
		Time: time.Date(2026, 10, 19, 4, 30, 0, 0, time.UTC), Open: 100, High: 105, Low: 98, Close: 98,
	}, candles[0])
	assert.Equal(t, 95.0, candles[1].Close)

	latest := env.service.Candles("NSE:NIFTY 50", 1)
	require.Len(t, latest, 1)
	assert.Equal(t, 95.0, latest[0].Close)
}

func TestIndicators_RisingMarket(t *testing.T) {
	env := newTestEnv(true, true)
	start := time.Date(2026, 10, 19, 4, 0, 0, 0, time.UTC)

	for i := 0; i < 30; i++ {
		env.now = start.Add(time.Duration(i) * time.Minute)
		env.service.HandleTick(broker.Tick{Symbol: "NSE:NIFTY 50", LastPrice: 24000 + float64(i)*10})
	}

	payload, ok := env.service.Get("NSE:NIFTY 50")
	require.True(t, ok)
	ind := payload["indicators"].(map[string]interface{})
	assert.Equal(t, "BULLISH", ind["trend"])
	assert.Equal(t, "OVERBOUGHT", ind["rsi_zone"])
	assert.Greater(t, ind["ema_9"].(float64), ind["ema_21"].(float64))
}

func TestHandleTick_UpdatesPolledPayload(t *testing.T) {
	env := newTestEnv(true, true)
	_, err := env.service.Poll(context.Background())
	require.NoError(t, err)

	env.now = env.now.Add(2 * time.Second)
	env.service.HandleTick(broker.Tick{Symbol: "NSE:NIFTY 50", LastPrice: 24960.1, Volume: 1200})

	payload, ok := env.service.Get("NSE:NIFTY 50")
	require.True(t, ok)
	assert.Equal(t, 24960.1, payload["last_price"])
	assert.Equal(t, int64(1200), payload["volume"])
	assert.Equal(t, 24911.0, payload["prev_close"])
	assert.InDelta(t, 49.1, payload["change"].(float64), 1e-6)
	assert.Equal(t, SourceStream, payload["source"])
}

func TestHandleTick_ReplacesBackupAnnotations(t *testing.T) {
	env := newTestEnv(true, true)
	require.NoError(t, env.store.SetMarketData("NSE:NIFTY BANK", cache.Payload{"symbol": "NSE:NIFTY BANK", "last_price": 51000.0}))
	env.store.Delete(cache.LiveKey("NSE:NIFTY BANK"))

	stale, ok := env.service.Get("NSE:NIFTY BANK")
	require.True(t, ok)
	require.Equal(t, true, stale[cache.FieldIsCached])

	env.service.HandleTick(broker.Tick{Symbol: "NSE:NIFTY BANK", LastPrice: 51234.5})

	fresh, ok := env.service.Get("NSE:NIFTY BANK")
	require.True(t, ok)
	assert.NotContains(t, fresh, cache.FieldIsCached)
	assert.Equal(t, 51234.5, fresh["last_price"])
}

func TestHandleTick_IgnoresInvalidTicks(t *testing.T) {
	env := newTestEnv(true, true)

	env.service.HandleTick(broker.Tick{Symbol: "", LastPrice: 100})
	env.service.HandleTick(broker.Tick{Symbol: "NSE:NIFTY 50", LastPrice: 0})

	assert.Empty(t, env.service.GetAll())
}
