// Package config provides configuration structures and validation for the
// ledger node, the invoice gateway and the operator CLI.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/invoice-ledger/internal/domain/invoice"
)

// Config is decoded from one flat key space (env file plus environment), so
// every section is squashed and each field carries its variable name.
type Config struct {
	Application ApplicationConfig `mapstructure:",squash"`
	Logging     LoggingConfig     `mapstructure:",squash"`
	Server      ServerConfig      `mapstructure:",squash"`
	Kafka       KafkaConfig       `mapstructure:",squash"`
	Postgres    PostgresConfig    `mapstructure:",squash"`
	MongoDB     MongoDBConfig     `mapstructure:",squash"`
	Outbox      OutboxConfig      `mapstructure:",squash"`
	WorkerPool  WorkerPoolConfig  `mapstructure:",squash"`
	Ledger      LedgerConfig      `mapstructure:",squash"`
}

type ApplicationConfig struct {
	Env  string `mapstructure:"APP_ENV"`
	Name string `mapstructure:"APP_NAME"`
}

type LoggingConfig struct {
	Level string `mapstructure:"LOG_LEVEL"`
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           `mapstructure:"SERVER_PORT"`
	ShutdownTimeout time.Duration `mapstructure:"SERVER_SHUTDOWN_TIMEOUT"` // Grace period for server shutdown
	ReadTimeout     time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
	EnableMint      bool          `mapstructure:"SERVER_ENABLE_MINT"` // Exposes the issuer faucet route
}

// KafkaConfig covers the operation topic, its consumer group and the DLQ
type KafkaConfig struct {
	Brokers           string        `mapstructure:"KAFKA_BROKERS"`
	OperationTopic    string        `mapstructure:"KAFKA_OPERATION_TOPIC"`
	NumPartitions     int           `mapstructure:"KAFKA_NUM_PARTITIONS"`
	ReplicationFactor int           `mapstructure:"KAFKA_REPLICATION_FACTOR"`
	ConsumerGroup     string        `mapstructure:"KAFKA_CONSUMER_GROUP"`
	MinBytes          int           `mapstructure:"KAFKA_CONSUMER_MIN_BYTES"`
	MaxBytes          int           `mapstructure:"KAFKA_CONSUMER_MAX_BYTES"`
	MaxWait           time.Duration `mapstructure:"KAFKA_CONSUMER_MAX_WAIT"`
	StartOffset       int64         `mapstructure:"KAFKA_CONSUMER_START_OFFSET"`
	DLQTopic          string        `mapstructure:"KAFKA_DLQ_TOPIC"`
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        `mapstructure:"POSTGRES_URL"`
	MaxConns        int32         `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns        int32         `mapstructure:"POSTGRES_MIN_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"POSTGRES_MAX_CONN_LIFETIME"`
	ConnMaxIdleTime time.Duration `mapstructure:"POSTGRES_MAX_CONN_IDLE_TIME"`
	MigrationsPath  string        `mapstructure:"POSTGRES_MIGRATIONS_PATH"` // Applied by the ledger node only
}

type MongoDBConfig struct {
	URI             string        `mapstructure:"MONGO_URI"`
	Database        string        `mapstructure:"MONGO_DATABASE"`
	Timeout         time.Duration `mapstructure:"MONGO_TIMEOUT"`
	MaxPoolSize     uint64        `mapstructure:"MONGO_MAX_POOL_SIZE"`
	MinPoolSize     uint64        `mapstructure:"MONGO_MIN_POOL_SIZE"`
	MaxConnIdleTime time.Duration `mapstructure:"MONGO_MAX_CONN_IDLE_TIME"`
}

// OutboxConfig drives the poller that indexes history and writes receipts
type OutboxConfig struct {
	PollingInterval  time.Duration `mapstructure:"OUTBOX_POLLING_INTERVAL"`
	BatchSize        int           `mapstructure:"OUTBOX_BATCH_SIZE"`
	MaxRetryAttempts int           `mapstructure:"OUTBOX_MAX_RETRY_ATTEMPTS"`
}

// WorkerPoolConfig sizes the goroutine pools used for operation processing
// and reconciliation point reads
type WorkerPoolConfig struct {
	Size int `mapstructure:"WORKER_POOL_SIZE"`
}

// LedgerConfig holds invoice ledger parameters shared by every binary
type LedgerConfig struct {
	StoreAddress      string        `mapstructure:"LEDGER_STORE_ADDRESS"`       // Identity the store spends payer allowances as
	MaxDueWindow      time.Duration `mapstructure:"LEDGER_MAX_DUE_WINDOW"`      // Furthest in the future a due time may be set
	TrackPollInterval time.Duration `mapstructure:"LEDGER_TRACK_POLL_INTERVAL"` // Receipt polling interval while awaiting an operation
	ReadTimeout       time.Duration `mapstructure:"LEDGER_READ_TIMEOUT"`        // Deadline applied to point reads and history scans
}

// problems accumulates validation failures so one load reports all of them
type problems []error

func (p *problems) positive(key string, ok bool) {
	if !ok {
		*p = append(*p, fmt.Errorf("%s must be greater than 0", key))
	}
}

func (p *problems) required(key, value string) {
	if value == "" {
		*p = append(*p, fmt.Errorf("%s is required", key))
	}
}

func (p *problems) check(ok bool, msg string) {
	if !ok {
		*p = append(*p, errors.New(msg))
	}
}

func (s ServerConfig) validate(p *problems) {
	p.positive("SERVER_PORT", s.Port > 0)
	p.positive("SERVER_SHUTDOWN_TIMEOUT", s.ShutdownTimeout > 0)
	p.positive("SERVER_READ_TIMEOUT", s.ReadTimeout > 0)
	p.positive("SERVER_WRITE_TIMEOUT", s.WriteTimeout > 0)
	p.positive("SERVER_IDLE_TIMEOUT", s.IdleTimeout > 0)
}

func (k KafkaConfig) validate(p *problems) {
	p.required("KAFKA_BROKERS", k.Brokers)
	p.required("KAFKA_OPERATION_TOPIC", k.OperationTopic)
	p.required("KAFKA_CONSUMER_GROUP", k.ConsumerGroup)
	p.required("KAFKA_DLQ_TOPIC", k.DLQTopic)
	p.positive("KAFKA_CONSUMER_MIN_BYTES", k.MinBytes > 0)
	p.positive("KAFKA_CONSUMER_MAX_WAIT", k.MaxWait > 0)
	p.check(k.MaxBytes >= k.MinBytes, "KAFKA_CONSUMER_MAX_BYTES must not be below KAFKA_CONSUMER_MIN_BYTES")
	p.check(k.DLQTopic == "" || k.DLQTopic != k.OperationTopic, "KAFKA_DLQ_TOPIC must differ from KAFKA_OPERATION_TOPIC")
}

func (pg PostgresConfig) validate(p *problems) {
	p.required("POSTGRES_URL", pg.URL)
	p.positive("POSTGRES_MIN_CONNS", pg.MinConns > 0)
	p.check(pg.MaxConns >= pg.MinConns, "POSTGRES_MAX_CONNS must not be below POSTGRES_MIN_CONNS")
	p.positive("POSTGRES_MAX_CONN_LIFETIME", pg.ConnMaxLifetime > 0)
	p.positive("POSTGRES_MAX_CONN_IDLE_TIME", pg.ConnMaxIdleTime > 0)
}

func (m MongoDBConfig) validate(p *problems) {
	p.required("MONGO_URI", m.URI)
	p.required("MONGO_DATABASE", m.Database)
	p.positive("MONGO_TIMEOUT", m.Timeout > 0)
	p.positive("MONGO_MIN_POOL_SIZE", m.MinPoolSize > 0)
	p.check(m.MaxPoolSize >= m.MinPoolSize, "MONGO_MAX_POOL_SIZE must not be below MONGO_MIN_POOL_SIZE")
	p.positive("MONGO_MAX_CONN_IDLE_TIME", m.MaxConnIdleTime > 0)
}

func (o OutboxConfig) validate(p *problems) {
	p.positive("OUTBOX_POLLING_INTERVAL", o.PollingInterval > 0)
	p.positive("OUTBOX_BATCH_SIZE", o.BatchSize > 0)
	p.positive("OUTBOX_MAX_RETRY_ATTEMPTS", o.MaxRetryAttempts > 0)
}

func (l LedgerConfig) validate(p *problems) {
	if _, err := invoice.ParseAddress(l.StoreAddress); err != nil {
		*p = append(*p, fmt.Errorf("LEDGER_STORE_ADDRESS must be a 20-byte hex address: %w", err))
	}
	p.positive("LEDGER_MAX_DUE_WINDOW", l.MaxDueWindow > 0)
	p.positive("LEDGER_TRACK_POLL_INTERVAL", l.TrackPollInterval > 0)
	p.positive("LEDGER_READ_TIMEOUT", l.ReadTimeout > 0)
}

// validate reports every invalid key at once
func (c *Config) validate() error {
	var p problems
	c.Server.validate(&p)
	c.Kafka.validate(&p)
	c.Postgres.validate(&p)
	c.MongoDB.validate(&p)
	c.Outbox.validate(&p)
	p.positive("WORKER_POOL_SIZE", c.WorkerPool.Size > 0)
	c.Ledger.validate(&p)
	return errors.Join(p...)
}

// StoreAddress returns the validated store identity
func (c *Config) StoreAddress() invoice.Address {
	addr, _ := invoice.ParseAddress(c.Ledger.StoreAddress)
	return addr
}
