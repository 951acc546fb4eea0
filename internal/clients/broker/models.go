package broker

// Quote is a market quote for one instrument
type Quote struct {
	Symbol          string  `json:"symbol"`
	InstrumentToken int64   `json:"instrument_token"`
	LastPrice       float64 `json:"last_price"`
	Volume          int64   `json:"volume"`
	NetChange       float64 `json:"net_change"`
	OI              float64 `json:"oi"`
	OHLC            OHLC    `json:"ohlc"`
	Timestamp       string  `json:"timestamp"`
}

// ChangePct returns the change against the previous close in percent
func (q Quote) ChangePct() float64 {
	if q.OHLC.Close == 0 {
		return 0
	}
	return (q.LastPrice - q.OHLC.Close) / q.OHLC.Close * 100
}

// OHLC holds the day's open, high, low and the previous close
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// OptionStrike is one strike row of an option chain
type OptionStrike struct {
	Strike       float64 `json:"strike"`
	CallOI       float64 `json:"call_oi"`
	PutOI        float64 `json:"put_oi"`
	CallOIChange float64 `json:"call_oi_change"`
	PutOIChange  float64 `json:"put_oi_change"`
	CallLTP      float64 `json:"call_ltp"`
	PutLTP       float64 `json:"put_ltp"`
}

// OptionChain is the nearest-expiry option chain of an underlying
type OptionChain struct {
	Underlying string         `json:"underlying"`
	Expiry     string         `json:"expiry"`
	SpotPrice  float64        `json:"spot_price"`
	Strikes    []OptionStrike `json:"strikes"`
}

// Profile is the authenticated user's profile, used to verify the access token
type Profile struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Broker   string `json:"broker"`
}

// Tick is one streamed price update
type Tick struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	Volume    int64   `json:"volume"`
	OI        float64 `json:"oi"`
	Timestamp string  `json:"timestamp"`
}
