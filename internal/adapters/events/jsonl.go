package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// JSONLSource implementa ports.EventSource leyendo eventos de un archivo
// JSON Lines. Cada llamada a Next devuelve las líneas aparecidas desde la
// anterior, así el mismo archivo sirve para replay y para tail de un feed
// que otro proceso va anexando.
//
// Los eventos malformados son InputError: se descartan en este boundary con
// un log y nunca llegan al pipeline.
type JSONLSource struct {
	path    string
	file    *os.File
	reader  *bufio.Reader
	pending []byte // fragmento sin '\n' final, en espera del resto
}

// NewJSONLSource abre el archivo de eventos.
func NewJSONLSource(path string) (*JSONLSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("events.NewJSONLSource: open %q: %w", path, err)
	}
	return &JSONLSource{
		path:   path,
		file:   file,
		reader: bufio.NewReader(file),
	}, nil
}

// Next devuelve los eventos nuevos desde la última llamada.
func (s *JSONLSource) Next(ctx context.Context) ([]domain.Event, error) {
	var out []domain.Event
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		line, err := s.reader.ReadBytes('\n')
		if err == io.EOF {
			// línea sin terminar: el writer está a mitad de un append.
			// Se acumula el fragmento y se decodifica cuando llegue el '\n'.
			s.pending = append(s.pending, line...)
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("events.Next: read %q: %w", s.path, err)
		}

		if len(s.pending) > 0 {
			line = append(s.pending, line...)
			s.pending = nil
		}
		if event, ok := s.decode(line); ok {
			out = append(out, event)
		}
	}
}

// Close cierra el archivo.
func (s *JSONLSource) Close() error {
	return s.file.Close()
}

func (s *JSONLSource) decode(line []byte) (domain.Event, bool) {
	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		slog.Warn("events: malformed line skipped", "file", s.path, "err", err)
		return domain.Event{}, false
	}

	event, err := raw.collapse()
	if err != nil {
		slog.Warn("events: invalid event skipped", "file", s.path, "err", err)
		return domain.Event{}, false
	}
	return event, true
}

// rawEvent es el schema en disco, incluyendo los sinónimos legacy que los
// feeds viejos siguen emitiendo. Se colapsan aquí a un único schema
// canónico: el core nunca pregunta qué sinónimo venía poblado.
type rawEvent struct {
	ID        string `json:"id"`
	TweetID   string `json:"tweet_id"` // legacy: id de los feeds de twitter
	Timestamp string `json:"timestamp"`
	Published string `json:"published_at"` // legacy
	Source    string `json:"source"`
	Tier      string `json:"source_tier"`
	Category  string `json:"category"`

	Title    string `json:"title"`
	Headline string `json:"headline"` // legacy
	Content  string `json:"content"`
	Summary  string `json:"summary"` // legacy

	MatchedKeywords []string `json:"matched_keywords"`
	KeywordsMatched []string `json:"keywords_matched"` // legacy
	Entities        []string `json:"entities"`
	UrgencyScore    float64  `json:"urgency_score"`
}

// collapse resuelve los sinónimos (el campo canónico gana) y valida el
// resultado antes de entregarlo al pipeline.
func (r rawEvent) collapse() (domain.Event, error) {
	event := domain.Event{
		ID:              coalesce(r.ID, r.TweetID),
		Source:          r.Source,
		SourceTier:      domain.SourceTier(r.Tier),
		Category:        r.Category,
		Title:           coalesce(r.Title, r.Headline),
		Content:         coalesce(r.Content, r.Summary),
		MatchedKeywords: r.MatchedKeywords,
		Entities:        r.Entities,
		UrgencyScore:    r.UrgencyScore,
	}
	if len(event.MatchedKeywords) == 0 {
		event.MatchedKeywords = r.KeywordsMatched
	}

	ts := coalesce(r.Timestamp, r.Published)
	if ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return domain.Event{}, fmt.Errorf("event %s: timestamp %q: %w", event.ID, ts, err)
		}
		event.Timestamp = parsed
	}

	if err := event.Validate(); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func coalesce(primary, legacy string) string {
	if primary != "" {
		return primary
	}
	return legacy
}
