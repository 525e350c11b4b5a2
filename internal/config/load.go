package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadConfigWithName loads configuration using the specified name, auto-detecting the file type
// This is useful when the configuration file extension is unknown or variable
func LoadConfigWithName(configName string) (*Config, error) {
	return loadConfig(configName, "")
}

// LoadConfigWithNameAndType loads configuration with explicit name and type specification
// Use this when you need to force a specific configuration format (e.g., "yaml", "json")
func LoadConfigWithNameAndType(configName, configType string) (*Config, error) {
	return loadConfig(configName, configType)
}

// LoadConfig loads configuration from a .env file using the provided base name
// This is the preferred method for loading environment-specific configurations
func LoadConfig(configName string) (*Config, error) {
	configFileName := fmt.Sprintf("%s.env", configName)
	return loadConfig(configFileName, "env")
}

// loadConfig handles configuration loading from files and environment variables.
// It implements a layered approach to configuration:
// 1. Load defaults
// 2. Override with config file values (if found)
// 3. Override with environment variables
// 4. Validate the final configuration
func loadConfig(configName, configType string) (*Config, error) {
	// Initialize viper with default values
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configName)
	if configType != "" {
		v.SetConfigType(configType)
	}

	// Add config paths in order of priority
	v.AddConfigPath("./configs") // First check in configs directory
	v.AddConfigPath(".")         // Then check in root directory

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Printf("INFO: No config file '%s' found, relying on environment variables and defaults.\n", configName)
		} else {
			fmt.Printf("WARNING: Error reading config file (%s): %v\n", v.ConfigFileUsed(), err)
		}
	} else {
		fmt.Printf("INFO: Config loaded from file: %s\n", v.ConfigFileUsed())
	}

	v.AutomaticEnv() // Automatically read matching environment variables

	// Build the config struct
	config := &Config{
		Application: ApplicationConfig{
			Env:  v.GetString("APP_ENV"),
			Name: v.GetString("APP_NAME"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Server: ServerConfig{
			Port:            v.GetInt("SERVER_PORT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
		},
		Kafka: KafkaConfig{
			Brokers:           v.GetString("KAFKA_BROKERS"),
			SettlementTopic:   v.GetString("KAFKA_SETTLEMENT_TOPIC"),
			BroadcastTopic:    v.GetString("KAFKA_BROADCAST_TOPIC"),
			NotificationTopic: v.GetString("KAFKA_NOTIFICATION_TOPIC"),
			DLQTopic:          v.GetString("KAFKA_DLQ_TOPIC"),
			NumPartitions:     v.GetInt("KAFKA_NUM_PARTITIONS"),
			ReplicationFactor: v.GetInt("KAFKA_REPLICATION_FACTOR"),
			ConsumerGroup:     v.GetString("KAFKA_CONSUMER_GROUP"),
			MinBytes:          v.GetInt("KAFKA_CONSUMER_MIN_BYTES"),
			MaxBytes:          v.GetInt("KAFKA_CONSUMER_MAX_BYTES"),
			MaxWait:           v.GetDuration("KAFKA_CONSUMER_MAX_WAIT"),
			StartOffset:       v.GetInt64("KAFKA_CONSUMER_START_OFFSET"),
		},
		Postgres: PostgresConfig{
			URL:             v.GetString("POSTGRES_URL"),
			MaxConns:        int32(v.GetInt("POSTGRES_MAX_CONNS")),
			MinConns:        int32(v.GetInt("POSTGRES_MIN_CONNS")),
			ConnMaxLifetime: v.GetDuration("POSTGRES_MAX_CONN_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("POSTGRES_MAX_CONN_IDLE_TIME"),
			MigrationsPath:  v.GetString("POSTGRES_MIGRATIONS_PATH"),
		},
		MongoDB: MongoDBConfig{
			URI:             v.GetString("MONGO_URI"),
			Database:        v.GetString("MONGO_DATABASE"),
			Timeout:         v.GetDuration("MONGO_TIMEOUT"),
			MaxPoolSize:     uint64(v.GetInt("MONGO_MAX_POOL_SIZE")),
			MinPoolSize:     uint64(v.GetInt("MONGO_MIN_POOL_SIZE")),
			MaxConnIdleTime: v.GetDuration("MONGO_MAX_CONN_IDLE_TIME"),
		},
		Gateway: GatewayConfig{
			BaseURL:   v.GetString("GATEWAY_BASE_URL"),
			SecretKey: v.GetString("GATEWAY_SECRET_KEY"),
			Timeout:   v.GetDuration("GATEWAY_TIMEOUT"),
		},
		PayoutRetry: PayoutRetryConfig{
			MaxAttempts:       v.GetInt("PAYOUT_RETRY_MAX_ATTEMPTS"),
			BaseDelay:         v.GetDuration("PAYOUT_RETRY_BASE_DELAY"),
			BackoffMultiplier: v.GetFloat64("PAYOUT_RETRY_BACKOFF_MULTIPLIER"),
			MaxDelay:          v.GetDuration("PAYOUT_RETRY_MAX_DELAY"),
		},
		Reconciler: ReconcilerConfig{
			SweepInterval:     v.GetDuration("RECONCILER_SWEEP_INTERVAL"),
			InvariantInterval: v.GetDuration("RECONCILER_INVARIANT_INTERVAL"),
			RefundGracePeriod: v.GetDuration("RECONCILER_REFUND_GRACE_PERIOD"),
			BatchSize:         v.GetInt("RECONCILER_BATCH_SIZE"),
		},
		WorkerPool: WorkerPoolConfig{
			Size: v.GetInt("WORKER_POOL_SIZE"),
		},
	}

	// Validate the configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults establishes sane defaults so a development instance can start
// with nothing but POSTGRES_URL, MONGO_URI, KAFKA_BROKERS and the gateway
// secret set.
func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "settlement-engine")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_READ_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60*time.Second)

	v.SetDefault("KAFKA_SETTLEMENT_TOPIC", "booking.settlement.events")
	v.SetDefault("KAFKA_BROADCAST_TOPIC", "booking.broadcast.events")
	v.SetDefault("KAFKA_NOTIFICATION_TOPIC", "booking.notification.events")
	v.SetDefault("KAFKA_DLQ_TOPIC", "booking.settlement.dlq")
	v.SetDefault("KAFKA_NUM_PARTITIONS", 1)
	v.SetDefault("KAFKA_REPLICATION_FACTOR", 1)
	v.SetDefault("KAFKA_CONSUMER_GROUP", "settlement-worker")
	v.SetDefault("KAFKA_CONSUMER_MIN_BYTES", 1)
	v.SetDefault("KAFKA_CONSUMER_MAX_BYTES", 10e6)
	v.SetDefault("KAFKA_CONSUMER_MAX_WAIT", 2*time.Second)
	v.SetDefault("KAFKA_CONSUMER_START_OFFSET", -2)

	v.SetDefault("POSTGRES_MAX_CONNS", 10)
	v.SetDefault("POSTGRES_MIN_CONNS", 2)
	v.SetDefault("POSTGRES_MAX_CONN_LIFETIME", time.Hour)
	v.SetDefault("POSTGRES_MAX_CONN_IDLE_TIME", 30*time.Minute)
	v.SetDefault("POSTGRES_MIGRATIONS_PATH", "./migrations/postgres")

	v.SetDefault("MONGO_DATABASE", "settlement_audit")
	v.SetDefault("MONGO_TIMEOUT", 10*time.Second)
	v.SetDefault("MONGO_MAX_POOL_SIZE", 100)
	v.SetDefault("MONGO_MIN_POOL_SIZE", 1)
	v.SetDefault("MONGO_MAX_CONN_IDLE_TIME", 5*time.Minute)

	v.SetDefault("GATEWAY_BASE_URL", "https://api.paystack.co")
	v.SetDefault("GATEWAY_TIMEOUT", 30*time.Second)

	v.SetDefault("PAYOUT_RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("PAYOUT_RETRY_BASE_DELAY", 2*time.Second)
	v.SetDefault("PAYOUT_RETRY_BACKOFF_MULTIPLIER", 2.0)
	v.SetDefault("PAYOUT_RETRY_MAX_DELAY", time.Minute)

	v.SetDefault("RECONCILER_SWEEP_INTERVAL", time.Minute)
	v.SetDefault("RECONCILER_INVARIANT_INTERVAL", 15*time.Minute)
	v.SetDefault("RECONCILER_REFUND_GRACE_PERIOD", 5*time.Minute)
	v.SetDefault("RECONCILER_BATCH_SIZE", 50)

	v.SetDefault("WORKER_POOL_SIZE", 10)
}
