package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del trader.
type Config struct {
	Trader    TraderConfig    `yaml:"trader"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Signals   SignalsConfig   `yaml:"signals"`
	Exits     ExitsConfig     `yaml:"exits"`
	Feeds     FeedsConfig     `yaml:"feeds"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// TraderConfig controla el loop principal y la estrategia activa.
type TraderConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	Strategy        string `yaml:"strategy"` // momentum | contrarian | volatility | confidence_weighted | none
}

// PortfolioConfig controla el balance inicial y los topes de riesgo.
type PortfolioConfig struct {
	InitialBalance   float64 `yaml:"initial_balance"`
	MaxOpenPositions int     `yaml:"max_open_positions"`
	MaxPositionPct   float64 `yaml:"max_position_pct"` // fracción del valor total por posición
}

// SignalsConfig controla la generación de señales y las puertas de decisión.
type SignalsConfig struct {
	MinConfidence       float64 `yaml:"min_confidence"`        // floor para emitir señal
	MaxExpectedMove     float64 `yaml:"max_expected_move"`     // cap del movimiento esperado
	DirectionThreshold  float64 `yaml:"direction_threshold"`   // sentiment para BUY vs HOLD
	MinLiquidity        float64 `yaml:"min_liquidity"`         // bajo esto confianza de liquidez baja
	DecisionConfidence  float64 `yaml:"decision_confidence"`   // gate 1 del motor de decisión
	MinExpectedReturn   float64 `yaml:"min_expected_return"`   // gate 2
	FuzzyMatchThreshold float64 `yaml:"fuzzy_match_threshold"` // similitud mínima del mapper
	MinRelevance        float64 `yaml:"min_relevance"`
	MaxMatches          int     `yaml:"max_matches"`
}

// ExitsConfig controla las reglas de salida de posiciones.
type ExitsConfig struct {
	TakeProfitPct float64 `yaml:"take_profit_pct"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	MaxHoldHours  float64 `yaml:"max_hold_hours"`
}

// FeedsConfig contiene las rutas y endpoints de los inputs externos.
type FeedsConfig struct {
	EventsPath        string `yaml:"events_path"`  // archivo JSONL de eventos
	CatalogPath       string `yaml:"catalog_path"` // catálogo YAML de mercados
	CatalogTTLSeconds int    `yaml:"catalog_ttl_seconds"`
	GammaBase         string `yaml:"gamma_base"` // base URL del feed de precios
	PriceWorkers      int    `yaml:"price_workers"`
	PriceTimeoutSecs  int    `yaml:"price_timeout_seconds"`
	PriceCacheTTLSecs int    `yaml:"price_cache_ttl_seconds"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// CycleInterval devuelve el intervalo entre ciclos como time.Duration.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Trader.IntervalSeconds) * time.Second
}

// MaxHold devuelve la antigüedad máxima de una posición como time.Duration.
func (c *Config) MaxHold() time.Duration {
	return time.Duration(c.Exits.MaxHoldHours * float64(time.Hour))
}

// CatalogTTL devuelve el TTL de recarga del catálogo.
func (c *Config) CatalogTTL() time.Duration {
	return time.Duration(c.Feeds.CatalogTTLSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("EVENTS_PATH"); v != "" {
		cfg.Feeds.EventsPath = v
	}
	if v := os.Getenv("CATALOG_PATH"); v != "" {
		cfg.Feeds.CatalogPath = v
	}
	if v := os.Getenv("GAMMA_BASE"); v != "" {
		cfg.Feeds.GammaBase = v
	}
	if v := os.Getenv("STRATEGY"); v != "" {
		cfg.Trader.Strategy = v
	}
	if v := os.Getenv("INITIAL_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Portfolio.InitialBalance = f
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los thresholds de señal/decisión en cero se dejan en cero: los
// constructores de cada componente aplican sus propios defaults.
func setDefaults(cfg *Config) {
	if cfg.Trader.IntervalSeconds <= 0 {
		cfg.Trader.IntervalSeconds = 60
	}
	if cfg.Portfolio.InitialBalance <= 0 {
		cfg.Portfolio.InitialBalance = 1000
	}
	if cfg.Exits.MaxHoldHours <= 0 {
		cfg.Exits.MaxHoldHours = 24
	}
	if cfg.Feeds.EventsPath == "" {
		cfg.Feeds.EventsPath = "events.jsonl"
	}
	if cfg.Feeds.CatalogPath == "" {
		cfg.Feeds.CatalogPath = "config/markets.yaml"
	}
	if cfg.Feeds.CatalogTTLSeconds <= 0 {
		cfg.Feeds.CatalogTTLSeconds = 60
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "signalbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate rechaza combinaciones que producirían un trader sin sentido.
func validate(cfg *Config) error {
	if cfg.Portfolio.MaxPositionPct < 0 || cfg.Portfolio.MaxPositionPct > 1 {
		return fmt.Errorf("portfolio.max_position_pct %.2f out of [0,1]", cfg.Portfolio.MaxPositionPct)
	}
	if cfg.Signals.MinConfidence < 0 || cfg.Signals.MinConfidence > 1 {
		return fmt.Errorf("signals.min_confidence %.2f out of [0,1]", cfg.Signals.MinConfidence)
	}
	if cfg.Exits.TakeProfitPct < 0 {
		return fmt.Errorf("exits.take_profit_pct must not be negative")
	}
	if cfg.Exits.StopLossPct < 0 {
		return fmt.Errorf("exits.stop_loss_pct must not be negative")
	}
	return nil
}
