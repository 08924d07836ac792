package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "WHOLESALE"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Site     SiteConfig     `mapstructure:"site"`
	Ranking  RankingConfig  `mapstructure:"ranking"`
	Amazon   AmazonConfig   `mapstructure:"amazon"`
	Shopping ShoppingConfig `mapstructure:"shopping"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	QueueSize       int           `mapstructure:"queue_size"`
}

// SiteConfig describes the marketplace being scraped. Selector and phrase
// lists are ordered; the first entry that yields a value wins.
type SiteConfig struct {
	Name            string            `mapstructure:"name"`
	BaseURL         string            `mapstructure:"base_url"`
	MobileBaseURL   string            `mapstructure:"mobile_base_url"`
	DefaultCurrency string            `mapstructure:"default_currency"`
	Headers         map[string]string `mapstructure:"headers"`
	MobileHeaders   map[string]string `mapstructure:"mobile_headers"`

	Timeout      time.Duration `mapstructure:"timeout"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	ProductDelay time.Duration `mapstructure:"product_delay"`
	VariantDelay time.Duration `mapstructure:"variant_delay"`
	WarmupDelay  time.Duration `mapstructure:"warmup_delay"`
	MinInterval  time.Duration `mapstructure:"min_interval"`
	JitterMin    time.Duration `mapstructure:"jitter_min"`
	JitterMax    time.Duration `mapstructure:"jitter_max"`

	MaxCategoryDepth        int     `mapstructure:"max_category_depth"`
	ListingDensityThreshold int     `mapstructure:"listing_density_threshold"`
	MaxSearchResults        int     `mapstructure:"max_search_results"`
	MinPrice                float64 `mapstructure:"min_price"`
	MaxPrice                float64 `mapstructure:"max_price"`

	Selectors       SelectorConfig `mapstructure:"selectors"`
	Phrases         PhraseConfig   `mapstructure:"phrases"`
	ShippingMethods []string       `mapstructure:"shipping_methods"`
}

type SelectorConfig struct {
	Price       []string `mapstructure:"price"`
	Title       []string `mapstructure:"title"`
	Seller      []string `mapstructure:"seller"`
	Image       []string `mapstructure:"image"`
	ProductLink []string `mapstructure:"product_link"`
}

// PhraseConfig holds lower-case phrases matched against page text.
type PhraseConfig struct {
	Error         []string `mapstructure:"error"`
	OutOfStock    []string `mapstructure:"out_of_stock"`
	BulkPricing   []string `mapstructure:"bulk_pricing"`
	ContactSeller []string `mapstructure:"contact_seller"`
}

// RankingConfig tunes the similarity score used to order wholesale
// candidates against a reference title.
type RankingConfig struct {
	WordOverlapWeight    float64  `mapstructure:"word_overlap_weight"`
	FeatureOverlapWeight float64  `mapstructure:"feature_overlap_weight"`
	PriceWeight          float64  `mapstructure:"price_weight"`
	AvailabilityWeight   float64  `mapstructure:"availability_weight"`
	MaxScore             float64  `mapstructure:"max_score"`
	FullCreditPrice      float64  `mapstructure:"full_credit_price"`
	HalfCreditPrice      float64  `mapstructure:"half_credit_price"`
	DuplicateThreshold   float64  `mapstructure:"duplicate_threshold"`
	KeyFeatures          []string `mapstructure:"key_features"`
	SearchedVariants     int      `mapstructure:"searched_variants"`
	ResultsPerVariant    int      `mapstructure:"results_per_variant"`
	MinVariantLength     int      `mapstructure:"min_variant_length"`
}

type AmazonConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Domain            string        `mapstructure:"domain"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type ShoppingConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Location          string        `mapstructure:"location"`
	Country           string        `mapstructure:"country"`
	Language          string        `mapstructure:"language"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
}

type BrowserConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Headless       bool          `mapstructure:"headless"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ViewportWidth  int           `mapstructure:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height"`
	Locale         string        `mapstructure:"locale"`
	TimezoneID     string        `mapstructure:"timezone_id"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from defaults, an optional config file and
// WHOLESALE_* environment variables, in increasing precedence. An empty
// path searches ./config.yaml and ./config/config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every scalar key so environment variables can
// override it. Lists and header maps come from Default.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.queue_size", d.Server.QueueSize)

	v.SetDefault("site.name", d.Site.Name)
	v.SetDefault("site.base_url", d.Site.BaseURL)
	v.SetDefault("site.mobile_base_url", d.Site.MobileBaseURL)
	v.SetDefault("site.default_currency", d.Site.DefaultCurrency)
	v.SetDefault("site.timeout", d.Site.Timeout)
	v.SetDefault("site.request_delay", d.Site.RequestDelay)
	v.SetDefault("site.product_delay", d.Site.ProductDelay)
	v.SetDefault("site.variant_delay", d.Site.VariantDelay)
	v.SetDefault("site.warmup_delay", d.Site.WarmupDelay)
	v.SetDefault("site.min_interval", d.Site.MinInterval)
	v.SetDefault("site.jitter_min", d.Site.JitterMin)
	v.SetDefault("site.jitter_max", d.Site.JitterMax)
	v.SetDefault("site.max_category_depth", d.Site.MaxCategoryDepth)
	v.SetDefault("site.listing_density_threshold", d.Site.ListingDensityThreshold)
	v.SetDefault("site.max_search_results", d.Site.MaxSearchResults)
	v.SetDefault("site.min_price", d.Site.MinPrice)
	v.SetDefault("site.max_price", d.Site.MaxPrice)

	v.SetDefault("ranking.word_overlap_weight", d.Ranking.WordOverlapWeight)
	v.SetDefault("ranking.feature_overlap_weight", d.Ranking.FeatureOverlapWeight)
	v.SetDefault("ranking.price_weight", d.Ranking.PriceWeight)
	v.SetDefault("ranking.availability_weight", d.Ranking.AvailabilityWeight)
	v.SetDefault("ranking.max_score", d.Ranking.MaxScore)
	v.SetDefault("ranking.full_credit_price", d.Ranking.FullCreditPrice)
	v.SetDefault("ranking.half_credit_price", d.Ranking.HalfCreditPrice)
	v.SetDefault("ranking.duplicate_threshold", d.Ranking.DuplicateThreshold)
	v.SetDefault("ranking.searched_variants", d.Ranking.SearchedVariants)
	v.SetDefault("ranking.results_per_variant", d.Ranking.ResultsPerVariant)
	v.SetDefault("ranking.min_variant_length", d.Ranking.MinVariantLength)

	v.SetDefault("amazon.api_key", "")
	v.SetDefault("amazon.base_url", d.Amazon.BaseURL)
	v.SetDefault("amazon.domain", d.Amazon.Domain)
	v.SetDefault("amazon.requests_per_second", d.Amazon.RequestsPerSecond)
	v.SetDefault("amazon.timeout", d.Amazon.Timeout)

	v.SetDefault("shopping.api_key", "")
	v.SetDefault("shopping.base_url", d.Shopping.BaseURL)
	v.SetDefault("shopping.location", d.Shopping.Location)
	v.SetDefault("shopping.country", d.Shopping.Country)
	v.SetDefault("shopping.language", d.Shopping.Language)
	v.SetDefault("shopping.requests_per_second", d.Shopping.RequestsPerSecond)
	v.SetDefault("shopping.timeout", d.Shopping.Timeout)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.stream", d.Redis.Stream)

	v.SetDefault("browser.enabled", d.Browser.Enabled)
	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.timeout", d.Browser.Timeout)
	v.SetDefault("browser.viewport_width", d.Browser.ViewportWidth)
	v.SetDefault("browser.viewport_height", d.Browser.ViewportHeight)
	v.SetDefault("browser.locale", d.Browser.Locale)
	v.SetDefault("browser.timezone_id", d.Browser.TimezoneID)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

func (c *Config) Validate() error {
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := c.Ranking.Validate(); err != nil {
		return err
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server port must be positive")
	}
	if c.Redis.Enabled && c.Redis.Stream == "" {
		return fmt.Errorf("redis stream is required when redis is enabled")
	}
	return nil
}

func (s SiteConfig) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("site base url is required")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("site timeout must be positive")
	}
	if s.JitterMax < s.JitterMin {
		return fmt.Errorf("jitter max must be >= jitter min")
	}
	if s.MinPrice < 0 || s.MaxPrice <= s.MinPrice {
		return fmt.Errorf("price band [%v, %v] is invalid", s.MinPrice, s.MaxPrice)
	}
	if s.MaxCategoryDepth < 1 {
		return fmt.Errorf("max category depth must be at least 1")
	}
	if len(s.Selectors.Title) == 0 || len(s.Selectors.Price) == 0 {
		return fmt.Errorf("title and price selectors are required")
	}
	return nil
}

func (r RankingConfig) Validate() error {
	if r.MaxScore <= 0 {
		return fmt.Errorf("max score must be positive")
	}
	if r.DuplicateThreshold <= 0 || r.DuplicateThreshold > 1 {
		return fmt.Errorf("duplicate threshold must be in (0, 1]")
	}
	if r.HalfCreditPrice < r.FullCreditPrice {
		return fmt.Errorf("half credit price must be >= full credit price")
	}
	return nil
}
