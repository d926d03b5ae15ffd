package configs

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

var (
	JWTSecret string
)

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️ Tidak menemukan .env file, menggunakan ENV dari sistem")
		} else {
			log.Println("✅ .env file berhasil dimuat!")
		}
	} else {
		log.Println("🚀 Running in Railway, menggunakan ENV dari sistem")
	}

	JWTSecret = GetEnv("JWT_SECRET")
	if JWTSecret == "" {
		log.Println("❌ JWT_SECRET belum diset!")
	} else {
		log.Println("✅ JWT_SECRET berhasil dimuat.")
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if (!exists || strings.TrimSpace(value) == "") && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

// =======================
// PAYMENT CONFIG
// =======================

// PaymentConfig dirakit sekali saat bootstrap lalu di-inject ke adapter & service.
// Tidak ada adapter yang membaca ENV sendiri.
type PaymentConfig struct {
	// Hosted checkout PSP (provider ONLINE_PSP)
	HostedBaseURL       string
	HostedAPIKey        string
	HostedAPISecret     string
	HostedWebhookSecret string

	// Midtrans
	MidtransServerKey  string
	MidtransProduction bool

	// Kalau true dan webhook secret kosong → verifikasi signature di-bypass (non-production only).
	AllowUnsignedWebhooks bool

	DefaultCurrency    string
	HTTPTimeout        time.Duration
	InitiateMaxRetries int
	RequestTimeout     time.Duration // deadline UserContext per request HTTP
	FlowTTL            time.Duration

	SweepCron   string
	SweepMinAge time.Duration
	SweepBatch  int

	WebhookRateLimit int // request/menit per (provider, IP)

	// key: provider identifier (ONLINE_PSP, ...) → rate (0.05 = 5%)
	CommissionRates map[string]decimal.Decimal
}

const commissionEnvPrefix = "PAYMENT_COMMISSION_RATE_"

// LoadPaymentConfig membaca ENV satu kali. Kredensial kosong tidak membuat startup gagal.
func LoadPaymentConfig() PaymentConfig {
	cfg := PaymentConfig{
		HostedBaseURL:         strings.TrimRight(GetEnv("PSP_BASE_URL"), "/"),
		HostedAPIKey:          GetEnv("PSP_API_KEY"),
		HostedAPISecret:       GetEnv("PSP_API_SECRET"),
		HostedWebhookSecret:   GetEnv("PSP_WEBHOOK_SECRET"),
		MidtransServerKey:     GetEnv("MIDTRANS_SERVER_KEY"),
		MidtransProduction:    envBool("MIDTRANS_USE_PROD", false),
		AllowUnsignedWebhooks: envBool("PAYMENT_ALLOW_UNSIGNED_WEBHOOKS", false),
		DefaultCurrency:       strings.ToUpper(GetEnv("PAYMENT_DEFAULT_CURRENCY", "XOF")),
		HTTPTimeout:           envDuration("PAYMENT_HTTP_TIMEOUT", 10*time.Second),
		InitiateMaxRetries:    envInt("PAYMENT_INITIATE_MAX_RETRIES", 2),
		RequestTimeout:        envDuration("PAYMENT_REQUEST_TIMEOUT", 25*time.Second),
		FlowTTL:               envDuration("PAYMENT_FLOW_TTL", 24*time.Hour),
		SweepCron:             GetEnv("PAYMENT_SWEEP_CRON", "@every 10m"),
		SweepMinAge:           envDuration("PAYMENT_SWEEP_MIN_AGE", 15*time.Minute),
		SweepBatch:            envInt("PAYMENT_SWEEP_BATCH", 50),
		WebhookRateLimit:      envInt("PAYMENT_WEBHOOK_RATE_LIMIT", 300),
		CommissionRates:       map[string]decimal.Decimal{},
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, commissionEnvPrefix) {
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			log.Printf("⚠️ %s tidak valid (%q), diabaikan", k, v)
			continue
		}
		cfg.CommissionRates[strings.TrimPrefix(k, commissionEnvPrefix)] = rate
	}

	if cfg.HostedAPIKey == "" || cfg.HostedBaseURL == "" {
		log.Println("⚠️ PSP_API_KEY / PSP_BASE_URL belum diset, pembayaran online ONLINE_PSP nonaktif")
	}
	if cfg.MidtransServerKey == "" {
		log.Println("⚠️ MIDTRANS_SERVER_KEY belum diset, pembayaran MIDTRANS nonaktif")
	}
	if cfg.AllowUnsignedWebhooks {
		log.Println("⚠️ PAYMENT_ALLOW_UNSIGNED_WEBHOOKS=true: webhook tanpa secret DITERIMA (jangan dipakai di production)")
	}
	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(GetEnv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(GetEnv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(GetEnv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// =======================
// GORM LOGGER CUSTOM
// =======================
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewGormLogger() gormLogger.Interface {
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      gormLogger.Warn,
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	nl := *l
	nl.LogLevel = level
	return &nl
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		log.Printf("[INFO] "+msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		log.Printf("[WARN] "+msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		log.Printf("[ERROR] "+msg, data...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	file := utils.FileWithLineNum()

	switch {
	case err != nil && l.LogLevel >= gormLogger.Error:
		log.Printf("[ERROR] %s | %v | %s | %d rows | %s", file, err, elapsed, rows, sql)
	case elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		log.Printf("[SLOW SQL] %s | %s | %d rows | %s", file, elapsed, rows, sql)
	case l.LogLevel >= gormLogger.Info:
		log.Printf("[QUERY] %s | %s | %d rows | %s", file, elapsed, rows, sql)
	}
}
