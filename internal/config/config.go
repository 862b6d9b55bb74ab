package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/majmadigital/finance-ledger/pkg/pg"
	"github.com/majmadigital/finance-ledger/pkg/redis"
	"github.com/pkg/errors"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

var config *Config

// Config holds every setting the binaries read. Nothing else reads the
// environment directly.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=finance_ledger"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR,default=:9100"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI,default=/metrics"`

	HttpListenAddr     string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=10s"`
	IdentityListenAddr string        `env:"IDENTITY_LISTEN_ADDR,default=:8090"`

	StoreDriver string `env:"STORE_DRIVER,default=postgres"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	PostgresSSLMode      string `env:"POSTGRES_SSLMODE,default=disable"`
	PostgresMaxOpenConns int    `env:"POSTGRES_MAX_OPEN_CONNS,default=50"`
	PostgresMaxIdleConns int    `env:"POSTGRES_MAX_IDLE_CONNS,default=10"`

	MongoURI      string `env:"MONGO_URI,default=mongodb://localhost:27017/?replicaSet=rs0"`
	MongoDatabase string `env:"MONGO_DATABASE,default=majmadigital"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=ledger:"`

	PromNamespace string `env:"PROM_NAMESPACE,default=majmadigital"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER,default=majmadigital"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=12h"`

	PaymentCommission string        `env:"PAYMENT_COMMISSION,default=FINANCE"`
	PaymentTxTimeout  time.Duration `env:"PAYMENT_TX_TIMEOUT,default=5s"`
	PaymentIDRetries  int           `env:"PAYMENT_ID_RETRIES,default=3"`

	IdempotencyLockTTL      time.Duration `env:"IDEMPOTENCY_LOCK_TTL,default=30s"`
	IdempotencyProcessedTTL time.Duration `env:"IDEMPOTENCY_PROCESSED_TTL,default=24h"`

	QueueName          string        `env:"QUEUE_NAME,default=audit"`
	QueueConsumerGroup string        `env:"QUEUE_CONSUMER_GROUP,default=auditors"`
	QueueConsumerName  string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries    int64         `env:"QUEUE_MAX_RETRIES,default=3"`
	QueueClaimAfter    time.Duration `env:"QUEUE_CLAIM_AFTER,default=30s"`
	QueuePollInterval  time.Duration `env:"QUEUE_POLL_INTERVAL,default=1s"`
	QueueBatchSize     int64         `env:"QUEUE_BATCH_SIZE,default=50"`
	QueueMaxLen        int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ     bool          `env:"QUEUE_ENABLE_DLQ,default=true"`

	AuditInterval time.Duration `env:"AUDIT_INTERVAL,default=10m"`
	AuditWorkers  int           `env:"AUDIT_WORKERS,default=8"`
	AuditPageSize int           `env:"AUDIT_PAGE_SIZE,default=500"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	if err = c.validate(); err != nil {
		return err
	}

	config = c
	return nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StorePostgres, StoreMongo:
	default:
		return errors.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreMongo, c.StoreDriver)
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes")
	}
	if c.PaymentIDRetries < 1 {
		return errors.New("PAYMENT_ID_RETRIES must be at least 1")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Set replaces the loaded configuration.
func Set(c *Config) {
	config = c
}

func (c *Config) PostgresRead() pg.Config {
	return pg.Config{
		User:         c.PostgresReadUser,
		Host:         c.PostgresReadHost,
		Port:         c.PostgresReadPort,
		Password:     c.PostgresReadPassword,
		Database:     c.PostgresReadDatabase,
		SSLMode:      c.PostgresSSLMode,
		MaxOpenConns: c.PostgresMaxOpenConns,
		MaxIdleConns: c.PostgresMaxIdleConns,
	}
}

func (c *Config) PostgresWrite() pg.Config {
	return pg.Config{
		User:         c.PostgresWriteUser,
		Host:         c.PostgresWriteHost,
		Port:         c.PostgresWritePort,
		Password:     c.PostgresWritePassword,
		Database:     c.PostgresWriteDatabase,
		SSLMode:      c.PostgresSSLMode,
		MaxOpenConns: c.PostgresMaxOpenConns,
		MaxIdleConns: c.PostgresMaxIdleConns,
	}
}

func (c *Config) Redis(clientName string) *redis.Options {
	return &redis.Options{
		Addrs:      []string{c.RedisAddr},
		ClientName: clientName,
		DB:         c.RedisDatabase,
		Username:   c.RedisUsername,
		Password:   c.RedisPassword,
	}
}
