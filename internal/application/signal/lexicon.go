package signal

// Léxicos de sentimiento con fuerza por keyword. La fuerza pondera el
// impacto; la repetición en el texto añade un bonus amortiguado.
var bullishKeywords = map[string]float64{
	"strong": 0.8, "surge": 0.9, "boom": 0.8, "rally": 0.7, "positive": 0.6,
	"growth": 0.7, "increase": 0.6, "rise": 0.6, "up": 0.5, "gains": 0.7,
	"optimistic": 0.6, "bullish": 0.8, "breakthrough": 0.8, "success": 0.7,
	"approval": 0.7, "passed": 0.7, "signed": 0.6, "confirmed": 0.6,
	"victory": 0.8, "wins": 0.7, "beating": 0.6, "exceeds": 0.7,
}

var bearishKeywords = map[string]float64{
	"crash": 0.9, "collapse": 0.9, "plummet": 0.8, "decline": 0.7, "fall": 0.6,
	"negative": 0.6, "drop": 0.6, "down": 0.5, "losses": 0.7, "pessimistic": 0.6,
	"bearish": 0.8, "failure": 0.8, "crisis": 0.9, "concern": 0.5, "worry": 0.5,
	"rejection": 0.7, "denied": 0.7, "cancelled": 0.8, "delayed": 0.6,
	"defeat": 0.8, "loses": 0.7, "missing": 0.6, "below": 0.5,
}
