package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  It is built once at process start and passed by
// value into every constructor that needs it; nothing mutates it afterwards.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	// Token secrets.  The refresh wrapper is signed with its own secret so a
	// leaked access-token key cannot mint refresh calls.
	JWTSecret        string
	JWTRefreshSecret string

	AccessTTL         time.Duration // lifetime of access tokens
	RefreshTTL        time.Duration // lifetime of the stored refresh secret
	RefreshWrapperTTL time.Duration // lifetime of the signed refresh container
	ResetTTL          time.Duration // password reset token lifetime
	VerifyTTL         time.Duration // email verification token lifetime
	BcryptCost        int           // bcrypt cost for password hashing

	Store    StoreConfig
	DB       DBConfig
	Stripe   StripeConfig
	SMTP     SMTPConfig
	Queue    QueueConfig
	LogLevel string

	FrontendURL string
	CSRFEnabled bool

	// TrustClientFinalPrice restores the legacy checkout behavior of
	// charging whatever finalPrice the client computed.
	TrustClientFinalPrice bool
}

// StoreConfig selects and configures the external record store.
type StoreConfig struct {
	Backend       string // airtable | memory | mysql
	APIURL        string
	BaseID        string
	Token         string
	UsersTable    string
	OrdersTable   string
	ProductsTable string
	PromoTable    string
	Timeout       time.Duration
}

// DBConfig holds MySQL settings used by the SQL record-store backend.
type DBConfig struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

// StripeConfig holds payment processor credentials.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

// SMTPConfig configures outbound email.  An empty Host disables sending.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// QueueConfig configures the order event publisher and relay.
type QueueConfig struct {
	URL        string
	Queue      string
	WebhookURL string
	LogFile    string
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when present.
// Required variables are enforced by must() and missing values cause the
// program to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:               envStr("APP_ENV", "dev"),
		Port:              must("APP_PORT"),
		JWTSecret:         must("JWT_SECRET"),
		JWTRefreshSecret:  must("JWT_REFRESH_SECRET"),
		AccessTTL:         envDur("ACCESS_TOKEN_TTL", 7*24*time.Hour),
		RefreshTTL:        envDur("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		RefreshWrapperTTL: envDur("REFRESH_WRAPPER_TTL", 30*24*time.Hour),
		ResetTTL:          envDur("PASSWORD_RESET_TTL", time.Hour),
		VerifyTTL:         envDur("EMAIL_VERIFICATION_TTL", 48*time.Hour),
		BcryptCost:        envInt("BCRYPT_COST", 12),
		Store: StoreConfig{
			Backend:       strings.ToLower(envStr("STORE_BACKEND", "airtable")),
			APIURL:        envStr("AIRTABLE_API_URL", "https://api.airtable.com/v0"),
			BaseID:        os.Getenv("AIRTABLE_BASE_ID"),
			Token:         os.Getenv("AIRTABLE_PAT"),
			UsersTable:    envStr("AIRTABLE_USERS_TABLE", "Users"),
			OrdersTable:   envStr("AIRTABLE_ORDERS_TABLE", "Orders"),
			ProductsTable: envStr("AIRTABLE_PRODUCTS_TABLE", "Products Info"),
			PromoTable:    envStr("AIRTABLE_PROMO_TABLE", "Promo Codes"),
			Timeout:       envDur("STORE_TIMEOUT", 15*time.Second),
		},
		DB: DBConfig{
			User: os.Getenv("DB_USER"),
			Pass: os.Getenv("DB_PASS"),
			Host: envStr("DB_HOST", "localhost"),
			Port: envStr("DB_PORT", "3306"),
			Name: os.Getenv("DB_NAME"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			Currency:      envStr("CHECKOUT_CURRENCY", "usd"),
		},
		SMTP: SMTPConfig{
			Host: os.Getenv("SMTP_HOST"),
			Port: envInt("SMTP_PORT", 587),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: envStr("SMTP_FROM", os.Getenv("SMTP_USER")),
		},
		Queue:                 loadQueue(),
		LogLevel:              envStr("LOG_LEVEL", "info"),
		FrontendURL:           strings.TrimRight(envStr("FRONTEND_URL", "http://localhost:5173"), "/"),
		CSRFEnabled:           envBool("CSRF_ENABLED", false),
		TrustClientFinalPrice: envBool("TRUST_CLIENT_FINAL_PRICE", false),
	}

	if cfg.JWTSecret == cfg.JWTRefreshSecret {
		log.Fatalf("JWT_REFRESH_SECRET must differ from JWT_SECRET")
	}
	if cfg.BcryptCost < 12 {
		cfg.BcryptCost = 12
	}
	if cfg.Store.Backend == "airtable" && (cfg.Store.BaseID == "" || cfg.Store.Token == "") {
		log.Fatalf("missing AIRTABLE_BASE_ID / AIRTABLE_PAT for airtable store backend")
	}
	return cfg
}

// RelayConfig is the subset of settings the order-event relay needs.  It
// lets the relay run without the API's secrets.
type RelayConfig struct {
	Env      string
	LogLevel string
	Queue    QueueConfig
}

// LoadRelay reads the relay settings.  RABBITMQ_URL is required.
func LoadRelay() RelayConfig {
	_ = godotenv.Load()
	cfg := RelayConfig{
		Env:      envStr("APP_ENV", "dev"),
		LogLevel: envStr("LOG_LEVEL", "info"),
		Queue:    loadQueue(),
	}
	if cfg.Queue.URL == "" {
		log.Fatalf("missing required env var: RABBITMQ_URL")
	}
	return cfg
}

func loadQueue() QueueConfig {
	return QueueConfig{
		URL:        envStr("RABBITMQ_URL", envStr("AMQP_URL", "")),
		Queue:      envStr("ORDER_EVENTS_QUEUE", "order.completed"),
		WebhookURL: os.Getenv("N8N_WEBHOOK_URL"),
		LogFile:    envStr("ORDER_EVENTS_LOG", "logs/orders.log"),
	}
}

// IsProd reports whether the service runs in production mode.
func (c Config) IsProd() bool { return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production") }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
