package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Config controls signal generation thresholds.
type Config struct {
	MinConfidence      float64 // no signal emitted below this floor
	MaxExpectedMove    float64 // cap on the expected price move
	DirectionThreshold float64 // sentiment threshold for BUY vs HOLD
	MinLiquidity       float64 // markets below this get low liquidity confidence
}

// DefaultConfig returns the standard generation thresholds.
func DefaultConfig() Config {
	return Config{
		MinConfidence:      0.3,
		MaxExpectedMove:    0.15,
		DirectionThreshold: 0.6,
		MinLiquidity:       1000,
	}
}

// Generator produce señales de trading a partir de (evento, match, precio).
// Puro y determinista dados sus inputs y now; no hace I/O.
type Generator struct {
	cfg Config
}

// New creates a Generator with the given thresholds.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.MaxExpectedMove <= 0 {
		cfg.MaxExpectedMove = def.MaxExpectedMove
	}
	if cfg.DirectionThreshold <= 0 {
		cfg.DirectionThreshold = def.DirectionThreshold
	}
	if cfg.MinLiquidity <= 0 {
		cfg.MinLiquidity = def.MinLiquidity
	}
	return &Generator{cfg: cfg}
}

// Generate builds a Signal for one (event, match, price) triple.
// Returns nil (no error) when confidence falls below the floor or the
// price is unusable; ambos son descartes esperados, no fallos.
func (g *Generator) Generate(event domain.Event, match domain.MarketMatch, price domain.MarketPrice, now time.Time) *domain.Signal {
	if !price.Valid() {
		return nil
	}

	sentiment := g.analyzeSentiment(event, match)
	move := g.expectedMove(sentiment, event, price)
	confidence := g.confidence(event, match, price, now)

	if confidence < g.cfg.MinConfidence {
		return nil
	}

	direction := domain.Hold
	switch {
	case sentiment > g.cfg.DirectionThreshold && confidence > 0.5:
		direction = domain.BuyYes
	case sentiment < 1.0-g.cfg.DirectionThreshold && confidence > 0.5:
		direction = domain.BuyNo
	}

	expectedPrice := clamp(price.YesPrice+move, 0.01, 0.99)

	parts := []string{
		fmt.Sprintf("sentiment %.2f (%s)", sentiment, sentimentLabel(sentiment)),
		fmt.Sprintf("relevance %.2f", match.RelevanceScore),
		fmt.Sprintf("expected move %+.1f%%", move*100),
		fmt.Sprintf("urgency %.0f/10", event.UrgencyScore),
		fmt.Sprintf("source %s", event.SourceTier),
	}
	if match.DirectionHint != domain.HintNeutral {
		parts = append(parts, fmt.Sprintf("direction hint %s", match.DirectionHint))
	}

	return &domain.Signal{
		MarketID:      price.MarketID,
		EventID:       event.ID,
		Direction:     direction,
		Confidence:    confidence,
		Sentiment:     sentiment,
		CurrentPrice:  price.YesPrice,
		ExpectedPrice: expectedPrice,
		Reasoning:     strings.Join(parts, "; "),
		CreatedAt:     now,
	}
}

// analyzeSentiment puntúa el texto del evento contra los léxicos.
// sentiment = 0.5 ± 0.4·normalizado, nudge ±0.1 por direction hint,
// ±0.1 lineal por urgencia. Resultado en [0,1].
func (g *Generator) analyzeSentiment(event domain.Event, match domain.MarketMatch) float64 {
	text := event.Text()

	var bullish, bearish float64
	for keyword, strength := range bullishKeywords {
		if n := strings.Count(text, keyword); n > 0 {
			bullish += strength * (float64(n)*0.5 + 0.5)
		}
	}
	for keyword, strength := range bearishKeywords {
		if n := strings.Count(text, keyword); n > 0 {
			bearish += strength * (float64(n)*0.5 + 0.5)
		}
	}

	sentiment := 0.5
	denom := max(bullish, bearish, 1.0)
	if bullish > bearish {
		sentiment = 0.5 + (bullish/denom)*0.4
	} else if bearish > bullish {
		sentiment = 0.5 - (bearish/denom)*0.4
	}

	switch match.DirectionHint {
	case domain.HintBullish:
		sentiment = min(0.9, sentiment+0.1)
	case domain.HintBearish:
		sentiment = max(0.1, sentiment-0.1)
	}

	sentiment += (event.UrgencyScore - 5) / 50
	return clamp(sentiment, 0, 1)
}

// expectedMove calcula el movimiento esperado del precio YES.
// base = (sentiment-0.5)·2·MaxMove, × multiplicador de urgencia [0.2,2.0],
// amortiguado en extremos de precio (mean reversion) y escalado por un
// factor de liquidez [0.5,2.0]. Clampeado a ±MaxMove.
func (g *Generator) expectedMove(sentiment float64, event domain.Event, price domain.MarketPrice) float64 {
	move := (sentiment - 0.5) * 2 * g.cfg.MaxExpectedMove

	urgencyMult := min(2.0, event.UrgencyScore/5.0)
	move *= urgencyMult

	current := price.YesPrice
	if current > 0.8 && move > 0 {
		move *= (1.0 - current) * 2
	} else if current < 0.2 && move < 0 {
		move *= current * 2
	}

	if price.Liquidity > 0 {
		factor := clamp(10000/(price.Liquidity+1000), 0.5, 2.0)
		move *= factor
	}

	return clamp(move, -g.cfg.MaxExpectedMove, g.cfg.MaxExpectedMove)
}

// confidence pondera seis factores normalizados:
// source 20%, relevance 25%, urgency 20%, liquidity 15%, volume 10%,
// match quality 10%. Después aplica penalizaciones multiplicativas:
// ×0.8 evento >24h, ×0.9 evento <30min, ×0.5 mercado inactivo,
// ×0.8 precio a menos de 0.15 de un extremo.
func (g *Generator) confidence(event domain.Event, match domain.MarketMatch, price domain.MarketPrice, now time.Time) float64 {
	liquidityConf := 0.3
	if price.Liquidity > g.cfg.MinLiquidity {
		liquidityConf = min(1.0, price.Liquidity/50000)
	}

	volumeConf := 0.3
	if price.Volume > 0 {
		volumeConf = min(1.0, price.Volume/100000)
	}

	matchConf := match.Confidence
	if matchConf <= 0 {
		matchConf = 1.0
	}

	confidence := event.SourceTier.Reliability()*0.20 +
		match.RelevanceScore*0.25 +
		min(1.0, event.UrgencyScore/10.0)*0.20 +
		liquidityConf*0.15 +
		volumeConf*0.10 +
		matchConf*0.10

	age := event.Age(now)
	if age > 24*time.Hour {
		confidence *= 0.8
	} else if age < 30*time.Minute {
		confidence *= 0.9
	}

	if !price.Active {
		confidence *= 0.5
	}

	if price.YesPrice > 0.85 || price.YesPrice < 0.15 {
		confidence *= 0.8
	}

	return clamp(confidence, 0, 1)
}

func sentimentLabel(s float64) string {
	switch {
	case s > 0.5:
		return "bullish"
	case s < 0.5:
		return "bearish"
	default:
		return "neutral"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
