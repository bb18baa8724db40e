package mapper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Config controls the matching thresholds.
type Config struct {
	FuzzyThreshold float64 // minimum similarity for fuzzy matches
	MinRelevance   float64 // matches below this are dropped
	MaxMatches     int     // cap on the ranked output
}

// DefaultConfig returns the standard mapper thresholds.
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold: 0.7,
		MinRelevance:   0.1,
		MaxMatches:     10,
	}
}

// Generic sentiment lexicon used for direction hints when no per-market
// override fires.
var (
	bullishTerms = []string{"positive", "growth", "increase", "surge", "rally", "bullish", "optimistic", "success"}
	bearishTerms = []string{"negative", "decline", "decrease", "crash", "fall", "bearish", "pessimistic", "failure"}
)

// Mapper maps a classified event to the markets it might affect.
// Pure given (Event, Catalog): no network I/O, no shared state.
type Mapper struct {
	cfg Config
}

// New creates a Mapper with the given thresholds.
func New(cfg Config) *Mapper {
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = DefaultConfig().FuzzyThreshold
	}
	if cfg.MinRelevance <= 0 {
		cfg.MinRelevance = DefaultConfig().MinRelevance
	}
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = DefaultConfig().MaxMatches
	}
	return &Mapper{cfg: cfg}
}

// Map runs the four matching strategies, merges per-market candidates and
// returns the ranked matches (relevance desc, capped to MaxMatches).
func (m *Mapper) Map(event domain.Event, cat domain.Catalog) []domain.MarketMatch {
	var candidates []domain.MarketMatch
	candidates = append(candidates, m.matchKeywords(event, cat)...)
	candidates = append(candidates, m.matchCategory(event, cat)...)
	candidates = append(candidates, m.matchEntities(event, cat)...)
	candidates = append(candidates, m.matchFuzzy(event, cat)...)

	merged := mergeMatches(candidates)

	filtered := merged[:0]
	for _, match := range merged {
		if match.RelevanceScore >= m.cfg.MinRelevance {
			filtered = append(filtered, match)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].RelevanceScore != filtered[j].RelevanceScore {
			return filtered[i].RelevanceScore > filtered[j].RelevanceScore
		}
		return filtered[i].MarketSlug < filtered[j].MarketSlug
	})

	if len(filtered) > m.cfg.MaxMatches {
		filtered = filtered[:m.cfg.MaxMatches]
	}
	return filtered
}

// matchKeywords busca cada keyword configurada en título + contenido.
// Keywords de una palabra requieren word boundary; multi-palabra usan substring.
func (m *Mapper) matchKeywords(event domain.Event, cat domain.Catalog) []domain.MarketMatch {
	text := event.Text()
	var matches []domain.MarketMatch

	for keyword, slugs := range cat.KeywordMarkets {
		keyword = strings.ToLower(keyword)
		if !keywordInText(keyword, text) {
			continue
		}
		relevance := keywordRelevance(keyword, text, event)
		for _, slug := range slugs {
			matches = append(matches, domain.MarketMatch{
				MarketSlug:      slug,
				RelevanceScore:  relevance,
				DirectionHint:   determineDirection(slug, text, cat),
				MatchedKeywords: []string{keyword},
				MatchType:       domain.MatchKeyword,
				Confidence:      1.0,
				Reasoning:       fmt.Sprintf("keyword %q found in event text", keyword),
			})
		}
	}
	return matches
}

// keywordRelevance: base 0.8, +0.15 si la keyword aparece en el título,
// +hasta 0.1 por repeticiones, ± nudge de urgencia (urgency-5)/50.
func keywordRelevance(keyword, text string, event domain.Event) float64 {
	score := 0.8
	if strings.Contains(strings.ToLower(event.Title), keyword) {
		score += 0.15
	}
	if n := strings.Count(text, keyword); n > 1 {
		score += min(0.1, float64(n)*0.02)
	}
	score += (event.UrgencyScore - 5) / 50 // -0.1 a +0.1
	return clamp01(score)
}

// matchCategory: base 0.5, +0.2 con urgencia alta (>=7), +0.15 fuente tier 1.
func (m *Mapper) matchCategory(event domain.Event, cat domain.Catalog) []domain.MarketMatch {
	slugs, ok := cat.CategoryMarkets[event.Category]
	if !ok {
		return nil
	}

	score := 0.5
	if event.UrgencyScore >= 7 {
		score += 0.2
	}
	if event.SourceTier == domain.TierBreaking {
		score += 0.15
	}
	score = clamp01(score)

	text := event.Text()
	matches := make([]domain.MarketMatch, 0, len(slugs))
	for _, slug := range slugs {
		matches = append(matches, domain.MarketMatch{
			MarketSlug:     slug,
			RelevanceScore: score,
			DirectionHint:  determineDirection(slug, text, cat),
			MatchType:      domain.MatchCategory,
			Confidence:     1.0,
			Reasoning:      fmt.Sprintf("category match: %s", event.Category),
		})
	}
	return matches
}

// matchEntities cruza las named entities extraídas upstream contra las
// keywords del catálogo. Base 0.7 con el mismo nudge de urgencia que keyword.
func (m *Mapper) matchEntities(event domain.Event, cat domain.Catalog) []domain.MarketMatch {
	if len(event.Entities) == 0 {
		return nil
	}
	entityText := strings.ToLower(strings.Join(event.Entities, " "))
	text := event.Text()

	var matches []domain.MarketMatch
	for keyword, slugs := range cat.KeywordMarkets {
		keyword = strings.ToLower(keyword)
		if !strings.Contains(entityText, keyword) {
			continue
		}
		score := clamp01(0.7 + (event.UrgencyScore-5)/50)
		for _, slug := range slugs {
			matches = append(matches, domain.MarketMatch{
				MarketSlug:      slug,
				RelevanceScore:  score,
				DirectionHint:   determineDirection(slug, text, cat),
				MatchedKeywords: []string{keyword},
				MatchType:       domain.MatchEntity,
				Confidence:      1.0,
				Reasoning:       fmt.Sprintf("entity match: %s", keyword),
			})
		}
	}
	return matches
}

// matchFuzzy compara frases cortas del texto contra slugs y aliases usando
// similitud por edit distance. Siempre la estrategia de menor confianza:
// relevance = similarity × 0.6 (slug) o × 0.7 (alias).
func (m *Mapper) matchFuzzy(event domain.Event, cat domain.Catalog) []domain.MarketMatch {
	text := event.Text()
	phrases := extractPhrases(text)
	if len(phrases) == 0 {
		return nil
	}

	var matches []domain.MarketMatch
	for _, slug := range cat.Slugs() {
		for _, phrase := range phrases {
			if sim := similarity(phrase, slug); sim >= m.cfg.FuzzyThreshold {
				matches = append(matches, domain.MarketMatch{
					MarketSlug:     slug,
					RelevanceScore: sim * 0.6,
					DirectionHint:  determineDirection(slug, text, cat),
					MatchType:      domain.MatchFuzzy,
					Confidence:     sim,
					Reasoning:      fmt.Sprintf("fuzzy match: %q ~ %q (%.2f)", phrase, slug, sim),
				})
			}
			for _, alias := range cat.AliasesFor(slug) {
				if sim := similarity(phrase, strings.ToLower(alias)); sim >= m.cfg.FuzzyThreshold {
					matches = append(matches, domain.MarketMatch{
						MarketSlug:     slug,
						RelevanceScore: sim * 0.7,
						DirectionHint:  determineDirection(slug, text, cat),
						MatchType:      domain.MatchFuzzy,
						Confidence:     sim,
						Reasoning:      fmt.Sprintf("alias match: %q ~ %q (%.2f)", phrase, alias, sim),
					})
				}
			}
		}
	}
	return matches
}

// determineDirection decide el hint direccional de un match.
// Primero la tabla de overrides por mercado; si ninguno dispara, cuenta hits
// del léxico genérico y asigna dirección solo con margen >= 2.
func determineDirection(slug, text string, cat domain.Catalog) domain.DirectionHint {
	if hints, ok := cat.DirectionHints[slug]; ok {
		// orden determinista: los maps de Go no garantizan orden de iteración
		terms := make([]string, 0, len(hints))
		for term := range hints {
			terms = append(terms, term)
		}
		sort.Strings(terms)
		for _, term := range terms {
			if strings.Contains(text, strings.ToLower(term)) {
				return hints[term]
			}
		}
	}

	bullish, bearish := 0, 0
	for _, term := range bullishTerms {
		if strings.Contains(text, term) {
			bullish++
		}
	}
	for _, term := range bearishTerms {
		if strings.Contains(text, term) {
			bearish++
		}
	}
	switch {
	case bullish-bearish >= 2:
		return domain.HintBullish
	case bearish-bullish >= 2:
		return domain.HintBearish
	default:
		return domain.HintNeutral
	}
}

// mergeMatches agrupa candidatos por mercado: máxima relevancia, unión de
// keywords, reasoning concatenado y match_type por prioridad fija
// keyword > entity > category > fuzzy (nunca se degrada).
func mergeMatches(candidates []domain.MarketMatch) []domain.MarketMatch {
	bySlug := make(map[string]*domain.MarketMatch)
	order := make([]string, 0, len(candidates))

	for _, c := range candidates {
		existing, ok := bySlug[c.MarketSlug]
		if !ok {
			copied := c
			copied.MatchedKeywords = append([]string(nil), c.MatchedKeywords...)
			bySlug[c.MarketSlug] = &copied
			order = append(order, c.MarketSlug)
			continue
		}
		if c.RelevanceScore > existing.RelevanceScore {
			existing.RelevanceScore = c.RelevanceScore
			existing.DirectionHint = c.DirectionHint
		}
		if c.Confidence > existing.Confidence {
			existing.Confidence = c.Confidence
		}
		existing.MatchedKeywords = unionKeywords(existing.MatchedKeywords, c.MatchedKeywords)
		existing.Reasoning = existing.Reasoning + "; " + c.Reasoning
		if c.MatchType.Priority() > existing.MatchType.Priority() {
			existing.MatchType = c.MatchType
		}
	}

	out := make([]domain.MarketMatch, 0, len(order))
	for _, slug := range order {
		out = append(out, *bySlug[slug])
	}
	return out
}

func unionKeywords(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, kw := range append(append([]string(nil), a...), b...) {
		if kw != "" && !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
		}
	}
	return out
}

// keywordInText: keywords multi-palabra por substring, palabras sueltas con
// word boundaries para evitar matches parciales ("art" dentro de "party").
func keywordInText(keyword, text string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(text, keyword)
	}
	return hasWord(text, keyword)
}

// hasWord busca word con boundaries de palabra en text (ambos en minúsculas).
func hasWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		beforeOK := idx == 0 || !isWordByte(text[idx-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
