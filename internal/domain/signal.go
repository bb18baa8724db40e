package domain

import "time"

// Direction es la dirección operativa de una señal.
type Direction string

const (
	BuyYes Direction = "BUY_YES"
	BuyNo  Direction = "BUY_NO"
	Hold   Direction = "HOLD"
)

// Signal es una señal de trading generada para un (evento, match, precio).
// Se crea una vez y no se muta.
type Signal struct {
	MarketID      string
	EventID       string
	Direction     Direction
	Confidence    float64 // [0,1]
	Sentiment     float64 // [0,1]
	CurrentPrice  float64 // precio YES actual
	ExpectedPrice float64 // [0.01, 0.99]
	Reasoning     string
	CreatedAt     time.Time
}

// ExpectedReturn es el movimiento fraccional esperado relativo al precio actual.
func (s Signal) ExpectedReturn() float64 {
	if s.CurrentPrice <= 0 {
		return 0
	}
	return (s.ExpectedPrice - s.CurrentPrice) / s.CurrentPrice
}

// Actionable indica si la señal propone abrir posición.
func (s Signal) Actionable() bool {
	return s.Direction == BuyYes || s.Direction == BuyNo
}

// Validate rechaza señales malformadas (InputError en el boundary).
func (s Signal) Validate() error {
	if s.MarketID == "" {
		return errField("signal", "market_id", "missing")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return errField("signal", "confidence", "out of [0,1]")
	}
	if s.ExpectedPrice < 0.01 || s.ExpectedPrice > 0.99 {
		return errField("signal", "expected_price", "out of [0.01,0.99]")
	}
	switch s.Direction {
	case BuyYes, BuyNo, Hold:
	default:
		return errField("signal", "direction", "unknown")
	}
	return nil
}
