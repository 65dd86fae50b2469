package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server      ServerConfig
	App         AppConfig
	Shop        ShopConfig
	Auth        AuthConfig
	Cache       CacheConfig
	InventoryDB InventoryDBConfig
	Discord     DiscordConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"boxshop-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// ShopConfig holds the purchasable categories and quota policy.
type ShopConfig struct {
	Categories    []string      `envconfig:"SHOP_CATEGORIES" default:"1mil,10mil,25mil"`
	QuotaCeiling  int           `envconfig:"SHOP_QUOTA_CEILING" default:"5"`
	QuotaWindow   time.Duration `envconfig:"SHOP_QUOTA_WINDOW" default:"24h"`
	MaxPerRequest int           `envconfig:"SHOP_MAX_PER_REQUEST" default:"5"`
}

// AuthConfig holds API key and request throttling settings.
type AuthConfig struct {
	APIKeys        []string `envconfig:"API_KEYS" default:""`
	AdminKey       string   `envconfig:"ADMIN_KEY" default:""`
	RateLimitRPS   float64  `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int      `envconfig:"RATE_LIMIT_BURST" default:"10"`
}

// CacheConfig holds Redis settings (order log stream).
type CacheConfig struct {
	RedisEnabled   bool   `envconfig:"REDIS_ENABLED" default:"false"`
	RedisHost      string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort      int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	OrderStreamKey string `envconfig:"REDIS_ORDER_STREAM" default:"boxshop:orders"`
	OrderStreamLen int64  `envconfig:"REDIS_ORDER_STREAM_MAXLEN" default:"1000"`
}

// InventoryDBConfig holds ledger database settings.
type InventoryDBConfig struct {
	Type string `envconfig:"INVENTORY_DB_TYPE" default:"sqlite"` // sqlite, postgres, mysql or mongodb
	Path string `envconfig:"INVENTORY_DB_PATH" default:"./data/stock.db"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"INVENTORY_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"INVENTORY_DB_PORT" default:"5432"`
	Name     string `envconfig:"INVENTORY_DB_NAME" default:"boxshop"`
	User     string `envconfig:"INVENTORY_DB_USER" default:"postgres"`
	Password string `envconfig:"INVENTORY_DB_PASS" default:""`
	SSLMode  string `envconfig:"INVENTORY_DB_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI      string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"boxshop"`
}

// DiscordConfig holds the external messaging channel settings.
type DiscordConfig struct {
	Token           string        `envconfig:"DISCORD_TOKEN" default:""`
	StockChannelID  string        `envconfig:"DISCORD_STOCK_CHANNEL_ID" default:""`
	OrdersChannelID string        `envconfig:"DISCORD_ORDERS_CHANNEL_ID" default:""`
	DisplayTimeout  time.Duration `envconfig:"DISPLAY_TIMEOUT" default:"10s"`
	ResyncInterval  time.Duration `envconfig:"DISPLAY_RESYNC_INTERVAL" default:"10m"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (i *InventoryDBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		i.User, i.Password, i.Host, i.Port, i.Name, i.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (i *InventoryDBConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		i.User, i.Password, i.Host, i.Port, i.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Enabled reports whether a Discord bot token and stock channel are configured.
func (d *DiscordConfig) Enabled() bool {
	return d.Token != "" && d.StockChannelID != ""
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if len(c.Shop.Categories) == 0 {
		return fmt.Errorf("SHOP_CATEGORIES must list at least one category")
	}
	if c.Shop.QuotaCeiling < 1 {
		return fmt.Errorf("SHOP_QUOTA_CEILING must be positive, got %d", c.Shop.QuotaCeiling)
	}
	if c.Shop.MaxPerRequest < 1 {
		return fmt.Errorf("SHOP_MAX_PER_REQUEST must be positive, got %d", c.Shop.MaxPerRequest)
	}
	if c.Shop.QuotaWindow <= 0 {
		return fmt.Errorf("SHOP_QUOTA_WINDOW must be positive, got %s", c.Shop.QuotaWindow)
	}
	if c.App.IsProduction() && c.Auth.AdminKey == "" {
		return fmt.Errorf("ADMIN_KEY is required when APP_ENV=production")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
