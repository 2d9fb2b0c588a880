package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Config holds application configuration. It is read once at startup and
// never mutated afterwards.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string `validate:"oneof=development test production"`
	HTTPAddr    string
	NodeID      int64 `validate:"min=0,max=1023"`

	DatabaseURL       string `validate:"required,url"`
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	ClerkSecretKey         string `validate:"required"`
	ClerkPublishableKey    string `validate:"required"`
	ClerkJWTKey            string
	ClerkAPIURL            string `validate:"omitempty,url"`
	ClerkAuthorizedParties []string

	StripeSecretKey string `validate:"required"`

	PostHogKey  string `validate:"required"`
	PostHogHost string `validate:"required,url"`

	ConnectionSecret string

	OTLPEndpoint string

	RateLimit RateLimitConfig
	Kafka     KafkaConfig
	Relay     RelayConfig
}

// RateLimitConfig configures the redis backed event ingest limiter.
type RateLimitConfig struct {
	Enabled                 bool
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	EventIngestWebsiteRate  float64
	EventIngestWebsiteBurst int
}

// KafkaConfig configures the accepted event handoff.
type KafkaConfig struct {
	Brokers     []string
	EventsTopic string
}

// RelayConfig drives the sweep that re-publishes events nobody picked up.
type RelayConfig struct {
	Enabled      bool
	IntervalSecs int64
	AfterSecs    int64
	MaxAgeSecs   int64
	BatchSize    int
}

// EnvError reports every environment variable that failed validation.
type EnvError struct {
	Fields []FieldError
}

type FieldError struct {
	Variable string
	Rule     string
}

func (e *EnvError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s (%s)", f.Variable, f.Rule))
	}
	return "invalid environment: " + strings.Join(parts, ", ")
}

var ErrInvalidEnvironment = errors.New("invalid_environment")

func (e *EnvError) Unwrap() error { return ErrInvalidEnvironment }

// Load loads configuration from the .env file and the process environment.
// Empty values are treated as unset. Validation is skipped when
// SKIP_ENV_VALIDATION is set, which container image builds rely on.
func Load() (Config, error) {
	_ = godotenv.Load()
	env := &envReader{}

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "clarity"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       strings.ToLower(getenv("ENVIRONMENT", EnvDevelopment)),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		NodeID:            env.int64("SNOWFLAKE_NODE_ID", 1),
		DatabaseURL:       getenv("DATABASE_URL", ""),
		DBMaxIdleConn:     env.int("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     env.int("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: env.int("DATABASE_CONN_MAX_LIFETIME", 1800),

		ClerkSecretKey:         getenv("CLERK_SECRET_KEY", ""),
		ClerkPublishableKey:    getenv("CLERK_PUBLISHABLE_KEY", ""),
		ClerkJWTKey:            getenv("CLERK_JWT_KEY", ""),
		ClerkAPIURL:            getenv("CLERK_API_URL", "https://api.clerk.com"),
		ClerkAuthorizedParties: splitList(getenv("CLERK_AUTHORIZED_PARTIES", "")),

		StripeSecretKey: getenv("STRIPE_SECRET_KEY", ""),
		PostHogKey:      getenv("POSTHOG_KEY", ""),
		PostHogHost:     getenv("POSTHOG_HOST", ""),

		ConnectionSecret: getenv("CONNECTION_SECRET", ""),
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),

		RateLimit: RateLimitConfig{
			Enabled:                 env.bool("RATE_LIMIT_ENABLED", false),
			RedisAddr:               getenv("RATE_LIMIT_REDIS_ADDR", ""),
			RedisPassword:           getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:                 env.int("RATE_LIMIT_REDIS_DB", 0),
			EventIngestWebsiteRate:  env.float("RATE_LIMIT_EVENT_INGEST_RATE", 50),
			EventIngestWebsiteBurst: env.int("RATE_LIMIT_EVENT_INGEST_BURST", 100),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(getenv("KAFKA_BROKERS", "")),
			EventsTopic: getenv("KAFKA_EVENTS_TOPIC", "clarity.events"),
		},
		Relay: RelayConfig{
			Enabled:      env.bool("EVENT_RELAY_ENABLED", true),
			IntervalSecs: env.int64("EVENT_RELAY_INTERVAL_SECS", 300),
			AfterSecs:    env.int64("EVENT_RELAY_AFTER_SECS", 900),
			MaxAgeSecs:   env.int64("EVENT_RELAY_MAX_AGE_SECS", 86400),
			BatchSize:    env.int("EVENT_RELAY_BATCH_SIZE", 100),
		},
	}

	if skipValidation() {
		return cfg, nil
	}

	fields := env.errs
	if err := Validate(cfg); err != nil {
		var envErr *EnvError
		if !errors.As(err, &envErr) {
			return Config{}, err
		}
		fields = append(fields, envErr.Fields...)
	}
	if len(fields) > 0 {
		sortFields(fields)
		return Config{}, &EnvError{Fields: fields}
	}
	return cfg, nil
}

func skipValidation() bool {
	return strings.TrimSpace(os.Getenv("SKIP_ENV_VALIDATION")) != ""
}

// Validate checks the required variables and reports all failures at once.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &EnvError{}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{
			Variable: envName(fe.StructField()),
			Rule:     fe.Tag(),
		})
	}
	sortFields(out.Fields)
	return out
}

func sortFields(fields []FieldError) {
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Variable < fields[j].Variable
	})
}

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

var validate = validator.New()

func envName(field string) string {
	if f, ok := configFields[field]; ok {
		return f
	}
	return field
}

var configFields = map[string]string{
	"Environment":         "ENVIRONMENT",
	"NodeID":              "SNOWFLAKE_NODE_ID",
	"DatabaseURL":         "DATABASE_URL",
	"ClerkSecretKey":      "CLERK_SECRET_KEY",
	"ClerkPublishableKey": "CLERK_PUBLISHABLE_KEY",
	"ClerkAPIURL":         "CLERK_API_URL",
	"StripeSecretKey":     "STRIPE_SECRET_KEY",
	"PostHogKey":          "POSTHOG_KEY",
	"PostHogHost":         "POSTHOG_HOST",
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envReader parses optional tunables and remembers every malformed value so
// Load can report them together with the required set.
type envReader struct {
	errs []FieldError
}

func (r *envReader) fail(key, rule string) {
	r.errs = append(r.errs, FieldError{Variable: key, Rule: rule})
}

func (r *envReader) bool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		r.fail(key, "boolean")
		return def
	}
}

func (r *envReader) int64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.fail(key, "integer")
		return def
	}
	return parsed
}

func (r *envReader) int(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, "integer")
		return def
	}
	return parsed
}

func (r *envReader) float(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.fail(key, "number")
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
