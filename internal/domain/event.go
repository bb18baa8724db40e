package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceTier clasifica la fiabilidad de la fuente del evento.
type SourceTier string

const (
	TierBreaking SourceTier = "tier1_breaking" // Reuters, AP, Bloomberg
	TierReliable SourceTier = "tier2_reliable" // WSJ, NYT, major outlets
	TierGeneral  SourceTier = "tier3_general"  // everything else
)

// Reliability devuelve el peso de fiabilidad de la fuente en [0,1].
// Tiers desconocidos reciben 0.5.
func (t SourceTier) Reliability() float64 {
	switch t {
	case TierBreaking:
		return 1.0
	case TierReliable:
		return 0.8
	case TierGeneral:
		return 0.6
	default:
		return 0.5
	}
}

// Event es un evento ya clasificado por el pipeline de ingestión.
// El core no clasifica: category, urgency y keywords llegan pobladas.
// Inmutable una vez validado.
type Event struct {
	ID              string
	Timestamp       time.Time
	Source          string
	SourceTier      SourceTier
	Category        string
	Title           string
	Content         string
	MatchedKeywords []string
	Entities        []string // named entities, optional
	UrgencyScore    float64  // 1-10
}

// Text devuelve título + contenido en minúsculas para matching.
func (e Event) Text() string {
	return strings.ToLower(e.Title + " " + e.Content)
}

// Age devuelve la antigüedad del evento respecto a now.
func (e Event) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// Validate rechaza eventos malformados antes de entrar al pipeline.
// Un error aquí es un InputError: se absorbe localmente y el evento se descarta.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event: missing id")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event %s: missing timestamp", e.ID)
	}
	if e.Title == "" && e.Content == "" {
		return fmt.Errorf("event %s: empty title and content", e.ID)
	}
	if e.UrgencyScore < 1 || e.UrgencyScore > 10 {
		return fmt.Errorf("event %s: urgency_score %.2f out of [1,10]", e.ID, e.UrgencyScore)
	}
	return nil
}
