package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"storefront/pkg/platform/middleware/metadata"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	Redis         RedisConfig
	Kafka         KafkaConfig
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	JWTTTL        time.Duration

	AdminEmail    string
	AdminPassword string

	Payment PaymentConfig

	BaseCurrency  string
	CurrencyRates string

	ShippingFlatFee       int64
	FreeShippingThreshold int64

	UnpaidOrderTTL  time.Duration
	SweepSchedule   string
	LoginRatePerSec float64
	LoginBurst      int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// TrustedProxies may set X-Forwarded-For. Empty trusts no one.
	TrustedProxies []netip.Prefix
}

// RedisConfig configures the cart store. An empty URL keeps carts in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CartTTL      time.Duration
}

// KafkaConfig configures the outbox relay. No brokers disables the relay.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	PollInterval time.Duration
}

// PaymentConfig configures the card provider. An empty URL selects the
// local gateway, which issues intents but never confirms them.
type PaymentConfig struct {
	APIURL        string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	p := &parser{}
	cfg := Server{
		Addr:          str("STOREFRONT_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSigningKey: str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     str("JWT_ISSUER", "storefront"),
		JWTAudience:   str("JWT_AUDIENCE", "storefront-api"),
		JWTTTL:        p.duration("JWT_TTL", 24*time.Hour),

		AdminEmail:    os.Getenv("ADMIN_BOOTSTRAP_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_BOOTSTRAP_PASSWORD"),

		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			CartTTL:      p.duration("CART_TTL", 30*24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:      list(os.Getenv("KAFKA_BROKERS")),
			Topic:        str("KAFKA_ORDER_TOPIC", "storefront.orders"),
			PollInterval: p.duration("OUTBOX_POLL_INTERVAL", time.Second),
		},
		Payment: PaymentConfig{
			APIURL:        os.Getenv("PAYMENT_API_URL"),
			APIKey:        os.Getenv("PAYMENT_API_KEY"),
			WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
			Timeout:       p.duration("PAYMENT_TIMEOUT", 10*time.Second),
		},

		BaseCurrency:  strings.ToUpper(str("BASE_CURRENCY", "USD")),
		CurrencyRates: os.Getenv("CURRENCY_RATES"),

		ShippingFlatFee:       int64(p.integer("SHIPPING_FLAT_FEE", 500)),
		FreeShippingThreshold: int64(p.integer("FREE_SHIPPING_THRESHOLD", 5000)),

		UnpaidOrderTTL:  p.duration("UNPAID_ORDER_TTL", time.Hour),
		SweepSchedule:   str("SWEEP_SCHEDULE", "@every 5m"),
		LoginRatePerSec: p.float("LOGIN_RATE_PER_SECOND", 1),
		LoginBurst:      p.integer("LOGIN_RATE_BURST", 5),
		RequestTimeout:  p.duration("REQUEST_TIMEOUT", 15*time.Second),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	cfg.TrustedProxies = p.prefixes("TRUSTED_PROXIES")
	if p.err != nil {
		return Server{}, p.err
	}
	if cfg.ShippingFlatFee < 0 || cfg.FreeShippingThreshold < 0 {
		return Server{}, fmt.Errorf("shipping amounts cannot be negative")
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return Server{}, fmt.Errorf("ADMIN_BOOTSTRAP_EMAIL and ADMIN_BOOTSTRAP_PASSWORD must be set together")
	}
	return cfg, nil
}

// parser keeps the first parse failure so FromEnv reads as a flat list.
type parser struct {
	err error
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		p.fail(key, raw)
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		p.fail(key, raw)
		return def
	}
	return f
}

func (p *parser) prefixes(key string) []netip.Prefix {
	raw := os.Getenv(key)
	prefixes, err := metadata.ParsePrefixes(list(raw))
	if err != nil {
		p.fail(key, raw)
		return nil
	}
	return prefixes
}

func (p *parser) fail(key, raw string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %q", key, raw)
	}
}

func str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func list(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
