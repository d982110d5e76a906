package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Settings struct {
	ServiceName string
	LoggerLevel string

	AppPort     int
	AppURL      string
	CorsOrigins string

	StoreDriver string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSeed     bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	JWTSecret string
	JWTTTL    time.Duration

	PiAPIURL  string
	PiAPIKey  string
	PiTimeout time.Duration

	OrderETA                 time.Duration
	UnpaidOrderTTL           time.Duration
	UnpaidOrderSchedule      string
	PaymentReconcileInterval time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	WSSendBuffer int
}

// Load reads .env (if present) and the process environment.
func Load() Settings {
	_ = godotenv.Load(".env")

	cfg := Settings{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "pizzaforpi"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "info"))

	cfg.AppPort = cast.ToInt(getOrReturnDefault("APP_PORT", 5000))
	cfg.AppURL = cast.ToString(getOrReturnDefault("APP_URL", "http://localhost:3000"))
	cfg.CorsOrigins = cast.ToString(getOrReturnDefault("CORS_ORIGINS", "http://localhost:3000"))

	cfg.StoreDriver = strings.ToLower(cast.ToString(getOrReturnDefault("STORE_DRIVER", StoreDriverPostgres)))

	cfg.DBHost = cast.ToString(getOrReturnDefault("DB_HOST", "localhost"))
	cfg.DBPort = cast.ToInt(getOrReturnDefault("DB_PORT", 5432))
	cfg.DBUser = cast.ToString(getOrReturnDefault("DB_USER", "postgres"))
	cfg.DBPassword = cast.ToString(getOrReturnDefault("DB_PASSWORD", "postgres"))
	cfg.DBName = cast.ToString(getOrReturnDefault("DB_NAME", "pizzaforpi"))
	cfg.DBSeed = cast.ToBool(getOrReturnDefault("DB_SEED", true))

	cfg.RedisAddr = cast.ToString(getOrReturnDefault("REDIS_ADDR", ""))
	cfg.RedisPassword = cast.ToString(getOrReturnDefault("REDIS_PASSWORD", ""))
	cfg.RedisDB = cast.ToInt(getOrReturnDefault("REDIS_DB", 0))
	cfg.RedisChannel = cast.ToString(getOrReturnDefault("REDIS_CHANNEL", "pizzaforpi:events"))

	cfg.JWTSecret = cast.ToString(getOrReturnDefault("JWT_SECRET", ""))
	cfg.JWTTTL = cast.ToDuration(getOrReturnDefault("JWT_TTL", "24h"))

	cfg.PiAPIURL = cast.ToString(getOrReturnDefault("PI_API_URL", "https://api.minepi.com"))
	cfg.PiAPIKey = cast.ToString(getOrReturnDefault("PI_API_KEY", ""))
	cfg.PiTimeout = cast.ToDuration(getOrReturnDefault("PI_TIMEOUT", "10s"))

	cfg.OrderETA = cast.ToDuration(getOrReturnDefault("ORDER_ETA", "45m"))
	cfg.UnpaidOrderTTL = cast.ToDuration(getOrReturnDefault("UNPAID_ORDER_TTL", "30m"))
	cfg.UnpaidOrderSchedule = cast.ToString(getOrReturnDefault("UNPAID_ORDER_SCHEDULE", "*/5 * * * *"))
	cfg.PaymentReconcileInterval = cast.ToDuration(getOrReturnDefault("PAYMENT_RECONCILE_INTERVAL", "1m"))

	cfg.SMTPHost = cast.ToString(getOrReturnDefault("SMTP_HOST", ""))
	cfg.SMTPPort = cast.ToInt(getOrReturnDefault("SMTP_PORT", 587))
	cfg.SMTPUsername = cast.ToString(getOrReturnDefault("SMTP_USERNAME", ""))
	cfg.SMTPPassword = cast.ToString(getOrReturnDefault("SMTP_PASSWORD", ""))
	cfg.SMTPFrom = cast.ToString(getOrReturnDefault("SMTP_FROM", "PizzaForPi <orders@pizzaforpi.com>"))

	cfg.WSSendBuffer = cast.ToInt(getOrReturnDefault("WS_SEND_BUFFER", 32))

	return cfg
}

// Config returns the raw value of an environment key, loading .env first.
func Config(key string) string {
	_ = godotenv.Load(".env")
	return os.Getenv(key)
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
