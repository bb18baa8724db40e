package strategy

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Strategy ajusta la confianza de una señal según el estado del mercado.
// Adjust devuelve un delta en [-0.2, 0.2] que se suma a la confianza base;
// debe ser pura: sin I/O ni estado compartido.
type Strategy interface {
	Name() string
	Adjust(sig domain.Signal, price domain.MarketPrice) float64
}

const maxDelta = 0.2

// New devuelve la estrategia identificada por name.
// Nombres válidos: momentum, contrarian, volatility, confidence_weighted,
// none (delta siempre 0).
func New(name string) (Strategy, error) {
	switch name {
	case "momentum":
		return momentum{}, nil
	case "contrarian":
		return contrarian{}, nil
	case "volatility":
		return volatility{}, nil
	case "confidence_weighted":
		return confidenceWeighted{}, nil
	case "none", "":
		return passthrough{}, nil
	default:
		return nil, fmt.Errorf("strategy.New: unknown strategy %q", name)
	}
}

type passthrough struct{}

func (passthrough) Name() string                                      { return "none" }
func (passthrough) Adjust(domain.Signal, domain.MarketPrice) float64 { return 0 }

// momentum refuerza las señales alineadas con la tendencia implícita del
// precio: BUY_YES con precio ya alto, BUY_NO con precio ya bajo.
type momentum struct{}

func (momentum) Name() string { return "momentum" }

func (momentum) Adjust(sig domain.Signal, price domain.MarketPrice) float64 {
	lean := price.YesPrice - 0.5 // >0: el mercado ya apunta a YES
	switch sig.Direction {
	case domain.BuyYes:
		return clampDelta(lean * 0.4)
	case domain.BuyNo:
		return clampDelta(-lean * 0.4)
	default:
		return 0
	}
}

// contrarian penaliza las señales que van a favor del consenso y premia
// las que compran el lado barato.
type contrarian struct{}

func (contrarian) Name() string { return "contrarian" }

func (contrarian) Adjust(sig domain.Signal, price domain.MarketPrice) float64 {
	lean := price.YesPrice - 0.5
	switch sig.Direction {
	case domain.BuyYes:
		return clampDelta(-lean * 0.4)
	case domain.BuyNo:
		return clampDelta(lean * 0.4)
	default:
		return 0
	}
}

// volatility premia mercados con actividad alta relativa a su liquidez:
// más volumen por unidad de liquidez implica más información nueva.
type volatility struct{}

func (volatility) Name() string { return "volatility" }

func (volatility) Adjust(sig domain.Signal, price domain.MarketPrice) float64 {
	if !sig.Actionable() || price.Liquidity <= 0 {
		return 0
	}
	turnover := price.Volume / (price.Liquidity + 1)
	// turnover 1 es neutro; log suaviza los extremos
	return clampDelta(math.Log10(math.Max(turnover, 0.01)) * 0.1)
}

// confidenceWeighted amplifica la propia convicción de la señal: empuja la
// confianza lejos de 0.5 en la dirección en la que ya estaba.
type confidenceWeighted struct{}

func (confidenceWeighted) Name() string { return "confidence_weighted" }

func (confidenceWeighted) Adjust(sig domain.Signal, price domain.MarketPrice) float64 {
	if !sig.Actionable() {
		return 0
	}
	return clampDelta((sig.Confidence - 0.5) * 0.3)
}

func clampDelta(v float64) float64 {
	if v > maxDelta {
		return maxDelta
	}
	if v < -maxDelta {
		return -maxDelta
	}
	return v
}
