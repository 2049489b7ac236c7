package config

import (
	"log"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type StorageConfig struct {
	// Backend is "local" or "s3".
	Backend      string
	LocalDir     string
	PublicPrefix string
	BaseURL      string
}

type BillingConfig struct {
	// AnnualInterestRate applies to carried debt, prorated monthly.
	AnnualInterestRate decimal.Decimal
}

type AppConfig struct {
	Port     string
	LogLevel string
	Postgres PostgresConfig
	Redis    RedisConfig
	S3       S3Config
	AMQP     AMQPConfig
	Storage  StorageConfig
	Billing  BillingConfig
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("invalid decimal value %q: %v", s, err)
	}
	return d
}

func Load() AppConfig {
	return AppConfig{
		Port:     getenv("APP_PORT", "8010"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		Postgres: PostgresConfig{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     mustAtoi(getenv("PG_PORT", "5432")),
			User:     getenv("PG_USER", "root"),
			Password: getenv("PG_PASSWORD", ""),
			DBName:   getenv("PG_DB", "condoledger"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
			Prefix:      getenv("REDIS_PREFIX", "condoledger_"),
		},
		S3: S3Config{
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", "minio"),
			SecretAccessKey: getenv("S3_SECRET_KEY", "minio123"),
			Bucket:          getenv("S3_BUCKET", "documents"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", ""),
		},
		AMQP: AMQPConfig{
			URL:      getenv("AMQP_URL", ""),
			Exchange: getenv("AMQP_EXCHANGE", "condoledger.notifications"),
		},
		Storage: StorageConfig{
			Backend:      getenv("STORAGE_BACKEND", "local"),
			LocalDir:     getenv("STORAGE_LOCAL_DIR", "./documents"),
			PublicPrefix: getenv("STORAGE_PUBLIC_PREFIX", "/documents"),
			BaseURL:      getenv("STORAGE_BASE_URL", ""),
		},
		Billing: BillingConfig{
			AnnualInterestRate: mustDecimal(getenv("BILLING_ANNUAL_INTEREST_RATE", "0.03")),
		},
	}
}
