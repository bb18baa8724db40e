// Package catalog carga el catálogo de mercados desde un archivo YAML.
//
// El archivo lo edita un humano mientras el pipeline corre, así que el
// provider lo relee con un TTL: dentro del TTL sirve la copia en memoria,
// fuera del TTL comprueba el mtime y solo reparsea si el archivo cambió.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

const defaultTTL = 60 * time.Second

// YAMLProvider implementa ports.CatalogProvider sobre un archivo YAML.
type YAMLProvider struct {
	path string
	ttl  time.Duration
	now  func() time.Time

	mu        sync.Mutex
	cached    domain.Catalog
	loadedAt  time.Time
	modTime   time.Time
	hasLoaded bool
}

// NewYAMLProvider crea el provider y carga el catálogo una primera vez para
// fallar en el arranque si el archivo no existe o no parsea.
func NewYAMLProvider(path string, ttl time.Duration) (*YAMLProvider, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	p := &YAMLProvider{
		path: path,
		ttl:  ttl,
		now:  time.Now,
	}
	if _, err := p.Catalog(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

// Catalog devuelve el catálogo, releyendo el archivo si el TTL expiró y el
// archivo cambió desde la última carga.
func (p *YAMLProvider) Catalog(ctx context.Context) (domain.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return domain.Catalog{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.hasLoaded && now.Sub(p.loadedAt) < p.ttl {
		return p.cached, nil
	}

	info, err := os.Stat(p.path)
	if err != nil {
		if p.hasLoaded {
			// archivo temporalmente ausente (editor guardando): servir la
			// copia vieja en vez de tumbar el ciclo
			return p.cached, nil
		}
		return domain.Catalog{}, fmt.Errorf("catalog.Catalog: stat %q: %w", p.path, err)
	}

	if p.hasLoaded && info.ModTime().Equal(p.modTime) {
		p.loadedAt = now
		return p.cached, nil
	}

	cat, err := loadFile(p.path)
	if err != nil {
		if p.hasLoaded {
			return p.cached, nil
		}
		return domain.Catalog{}, err
	}

	p.cached = cat
	p.loadedAt = now
	p.modTime = info.ModTime()
	p.hasLoaded = true
	return p.cached, nil
}

func loadFile(path string) (domain.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog.loadFile: read %q: %w", path, err)
	}

	var cat domain.Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog.loadFile: parse YAML %q: %w", path, err)
	}

	normalize(&cat)
	if err := validate(cat); err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog.loadFile: %q: %w", path, err)
	}
	return cat, nil
}

// normalize baja a minúsculas las keys de matching para que el mapper pueda
// comparar contra Event.Text() sin re-normalizar.
func normalize(cat *domain.Catalog) {
	if cat.KeywordMarkets != nil {
		lowered := make(map[string][]string, len(cat.KeywordMarkets))
		for k, v := range cat.KeywordMarkets {
			lowered[strings.ToLower(k)] = v
		}
		cat.KeywordMarkets = lowered
	}
	if cat.DirectionHints != nil {
		for slug, terms := range cat.DirectionHints {
			lowered := make(map[string]domain.DirectionHint, len(terms))
			for term, hint := range terms {
				lowered[strings.ToLower(term)] = hint
			}
			cat.DirectionHints[slug] = lowered
		}
	}
}

// validate rechaza catálogos que referencian slugs no declarados o hints
// fuera del enum. Un catálogo roto es error de configuración, no de runtime.
func validate(cat domain.Catalog) error {
	known := make(map[string]bool, len(cat.Markets))
	for _, m := range cat.Markets {
		if m.Slug == "" {
			return fmt.Errorf("market with empty slug")
		}
		if known[m.Slug] {
			return fmt.Errorf("duplicate market slug %q", m.Slug)
		}
		known[m.Slug] = true
	}
	for keyword, slugs := range cat.KeywordMarkets {
		for _, s := range slugs {
			if !known[s] {
				return fmt.Errorf("keyword %q references unknown market %q", keyword, s)
			}
		}
	}
	for category, slugs := range cat.CategoryMarkets {
		for _, s := range slugs {
			if !known[s] {
				return fmt.Errorf("category %q references unknown market %q", category, s)
			}
		}
	}
	for slug, terms := range cat.DirectionHints {
		if !known[slug] {
			return fmt.Errorf("direction_hints references unknown market %q", slug)
		}
		for term, hint := range terms {
			switch hint {
			case domain.HintBullish, domain.HintBearish, domain.HintNeutral:
			default:
				return fmt.Errorf("market %q term %q: invalid direction hint %q", slug, term, hint)
			}
		}
	}
	return nil
}
