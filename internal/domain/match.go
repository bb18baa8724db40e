package domain

// DirectionHint es la inclinación cualitativa que aporta un match antes
// del scoring completo de la señal.
type DirectionHint string

const (
	HintBullish DirectionHint = "bullish"
	HintBearish DirectionHint = "bearish"
	HintNeutral DirectionHint = "neutral"
)

// MatchType identifica la estrategia de matching que produjo el match.
type MatchType string

const (
	MatchKeyword  MatchType = "keyword"
	MatchEntity   MatchType = "entity"
	MatchCategory MatchType = "category"
	MatchFuzzy    MatchType = "fuzzy"
)

// matchTypePriority: keyword > entity > category > fuzzy. Un match nunca
// se degrada a un tipo de menor prioridad al mergear.
var matchTypePriority = map[MatchType]int{
	MatchKeyword:  3,
	MatchEntity:   2,
	MatchCategory: 1,
	MatchFuzzy:    0,
}

// Priority devuelve la prioridad numérica del tipo de match.
func (t MatchType) Priority() int {
	return matchTypePriority[t]
}

// MarketMatch relaciona un evento con un mercado potencialmente afectado.
// Se produce fresco por evento, nunca se persiste.
type MarketMatch struct {
	MarketSlug      string
	RelevanceScore  float64 // [0,1]
	DirectionHint   DirectionHint
	MatchedKeywords []string
	MatchType       MatchType
	Confidence      float64 // modificador de calidad del match (fuzzy < 1)
	Reasoning       string
}
