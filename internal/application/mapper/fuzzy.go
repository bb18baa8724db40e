package mapper

import "strings"

// similarity devuelve el ratio de similitud por edit distance entre a y b,
// normalizado a [0,1]. 1.0 es igualdad exacta.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein con dos filas; suficiente para frases cortas y slugs.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// extractPhrases genera n-gramas de 1 a 3 palabras del texto, unidos con
// guiones para compararlos directamente contra slugs tipo kebab-case.
func extractPhrases(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var phrases []string
	for n := 1; n <= 3; n++ {
		for i := 0; i+n <= len(words); i++ {
			phrase := strings.Join(words[i:i+n], "-")
			phrase = strings.Trim(phrase, ".,!?:;\"'")
			if len(phrase) < 3 || seen[phrase] {
				continue
			}
			seen[phrase] = true
			phrases = append(phrases, phrase)
		}
	}
	return phrases
}
