package domain

import "time"

// Market representa un mercado de predicción binario del catálogo estático.
type Market struct {
	Slug     string   `yaml:"slug"`
	Question string   `yaml:"question"`
	Aliases  []string `yaml:"aliases"`
}

// Catalog es el catálogo de mercados conocidos y sus tablas de mapeo.
// Se refresca fuera de banda (provider con TTL); el mapper lo recibe por valor
// y no hace I/O.
type Catalog struct {
	Markets []Market `yaml:"markets"`

	// KeywordMarkets mapea keyword (minúsculas) → slugs de mercados afectados.
	KeywordMarkets map[string][]string `yaml:"keywords"`

	// CategoryMarkets mapea categoría de evento → slugs.
	CategoryMarkets map[string][]string `yaml:"categories"`

	// DirectionHints mapea slug → (término → bullish|bearish|neutral).
	// Override por mercado; se consulta antes que el léxico genérico.
	DirectionHints map[string]map[string]DirectionHint `yaml:"direction_hints"`
}

// Slugs devuelve el conjunto de slugs referenciados por cualquier tabla.
func (c Catalog) Slugs() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(slug string) {
		if !seen[slug] {
			seen[slug] = true
			out = append(out, slug)
		}
	}
	for _, m := range c.Markets {
		add(m.Slug)
	}
	for _, slugs := range c.KeywordMarkets {
		for _, s := range slugs {
			add(s)
		}
	}
	for _, slugs := range c.CategoryMarkets {
		for _, s := range slugs {
			add(s)
		}
	}
	return out
}

// AliasesFor devuelve los alias configurados para un slug.
func (c Catalog) AliasesFor(slug string) []string {
	for _, m := range c.Markets {
		if m.Slug == slug {
			return m.Aliases
		}
	}
	return nil
}

// MarketPrice es el estado actual de precios de un mercado. Input externo,
// solo lectura para el core. YesPrice y NoPrice siempre suman 1 tras
// NewMarketPrice.
type MarketPrice struct {
	MarketID  string
	YesPrice  float64
	NoPrice   float64
	Volume    float64
	Liquidity float64
	Active    bool
	UpdatedAt time.Time
}

// NewMarketPrice construye un MarketPrice renormalizando yes+no a 1.
// Si ambos precios son 0 el par queda en 0.5/0.5.
func NewMarketPrice(marketID string, yes, no, volume, liquidity float64, active bool, updatedAt time.Time) MarketPrice {
	sum := yes + no
	if sum <= 0 {
		yes, no = 0.5, 0.5
	} else {
		yes, no = yes/sum, no/sum
	}
	return MarketPrice{
		MarketID:  marketID,
		YesPrice:  yes,
		NoPrice:   no,
		Volume:    volume,
		Liquidity: liquidity,
		Active:    active,
		UpdatedAt: updatedAt,
	}
}

// SidePrice devuelve el precio del lado que compra la dirección dada:
// YES price para BUY_YES, NO price para BUY_NO.
func (p MarketPrice) SidePrice(dir Direction) float64 {
	if dir == BuyNo {
		return p.NoPrice
	}
	return p.YesPrice
}

// Resolved indica si el mercado está resuelto o a punto de resolverse
// (precio YES pegado a 0 o a 1).
func (p MarketPrice) Resolved() bool {
	return p.YesPrice <= 0.01 || p.YesPrice >= 0.99
}

// Valid indica si el precio es utilizable para generar señales.
func (p MarketPrice) Valid() bool {
	return p.MarketID != "" && p.YesPrice > 0 && p.YesPrice < 1
}
