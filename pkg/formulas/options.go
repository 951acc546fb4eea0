package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// StrikeOI is the open interest at one strike
type StrikeOI struct {
	Strike       float64
	CallOI       float64
	PutOI        float64
	CallOIChange float64
	PutOIChange  float64
}

// OIMetrics summarises an option chain
type OIMetrics struct {
	TotalCallOI     float64  `json:"total_call_oi"`
	TotalPutOI      float64  `json:"total_put_oi"`
	CallOIChange    float64  `json:"call_oi_change"`
	PutOIChange     float64  `json:"put_oi_change"`
	PCR             *float64 `json:"pcr"`
	ChangePCR       *float64 `json:"change_pcr"`
	MaxCallOIStrike float64  `json:"max_call_oi_strike"`
	MaxPutOIStrike  float64  `json:"max_put_oi_strike"`
	MaxPain         float64  `json:"max_pain"`
	Sentiment       string   `json:"sentiment"`
}

// PutCallRatio returns total put OI / total call OI, or nil when call OI is zero
func PutCallRatio(putOI, callOI float64) *float64 {
	if callOI == 0 {
		return nil
	}
	pcr := math.Round(putOI/callOI*100) / 100
	return &pcr
}

// PCRSentiment classifies a put-call ratio.
// High put writing (PCR > 1.2) reads as support, PCR < 0.8 as resistance.
func PCRSentiment(pcr *float64) string {
	if pcr == nil {
		return "NEUTRAL"
	}
	switch {
	case *pcr > 1.2:
		return "BULLISH"
	case *pcr < 0.8:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

// CalculateOIMetrics computes totals, PCR, the highest-OI strikes and max pain
func CalculateOIMetrics(strikes []StrikeOI) OIMetrics {
	var m OIMetrics
	if len(strikes) == 0 {
		m.Sentiment = PCRSentiment(nil)
		return m
	}

	callOI := make([]float64, len(strikes))
	putOI := make([]float64, len(strikes))
	callChange := make([]float64, len(strikes))
	putChange := make([]float64, len(strikes))
	for i, s := range strikes {
		callOI[i] = s.CallOI
		putOI[i] = s.PutOI
		callChange[i] = s.CallOIChange
		putChange[i] = s.PutOIChange
	}

	m.TotalCallOI = floats.Sum(callOI)
	m.TotalPutOI = floats.Sum(putOI)
	m.CallOIChange = floats.Sum(callChange)
	m.PutOIChange = floats.Sum(putChange)
	m.PCR = PutCallRatio(m.TotalPutOI, m.TotalCallOI)
	if m.CallOIChange > 0 && m.PutOIChange >= 0 {
		m.ChangePCR = PutCallRatio(m.PutOIChange, m.CallOIChange)
	}
	m.MaxCallOIStrike = strikes[floats.MaxIdx(callOI)].Strike
	m.MaxPutOIStrike = strikes[floats.MaxIdx(putOI)].Strike
	m.MaxPain = MaxPain(strikes)
	m.Sentiment = PCRSentiment(m.PCR)
	return m
}

// MaxPain returns the strike at which option writers pay out the least
// if the underlying expires there. Ties resolve to the lower strike.
func MaxPain(strikes []StrikeOI) float64 {
	if len(strikes) == 0 {
		return 0
	}

	payouts := make([]float64, len(strikes))
	for i, expiry := range strikes {
		var total float64
		for _, s := range strikes {
			if expiry.Strike > s.Strike {
				total += (expiry.Strike - s.Strike) * s.CallOI
			}
			if expiry.Strike < s.Strike {
				total += (s.Strike - expiry.Strike) * s.PutOI
			}
		}
		payouts[i] = total
	}

	best := floats.MinIdx(payouts)
	for i, p := range payouts {
		if p == payouts[best] && strikes[i].Strike < strikes[best].Strike {
			best = i
		}
	}
	return strikes[best].Strike
}
