package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/tindahan/marketplace-backend/pkg/enums"
	"github.com/tindahan/marketplace-backend/pkg/money"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	FeatureFlags  FeatureFlagsConfig
	Orders        OrdersConfig
	Outbox        OutboxConfig
	Notifications NotificationsConfig
	GCP           GCPConfig
	Kafka         KafkaConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Notifications.validate(cfg.GCP, cfg.Kafka); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TINDAHAN_APP_ENV" required:"true"`
	Port         string `envconfig:"TINDAHAN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TINDAHAN_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"TINDAHAN_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"TINDAHAN_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"TINDAHAN_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TINDAHAN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TINDAHAN_DB_DSN"`
	Driver string `envconfig:"TINDAHAN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TINDAHAN_DB_HOST"`
	LegacyPort     int    `envconfig:"TINDAHAN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TINDAHAN_DB_USER"`
	LegacyPassword string `envconfig:"TINDAHAN_DB_PASSWORD"`
	LegacyName     string `envconfig:"TINDAHAN_DB_NAME"`
	LegacySSLMode  string `envconfig:"TINDAHAN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TINDAHAN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TINDAHAN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TINDAHAN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TINDAHAN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TINDAHAN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TINDAHAN_REDIS_ADDR"`
	Password     string        `envconfig:"TINDAHAN_REDIS_PASSWORD"`
	DB           int           `envconfig:"TINDAHAN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TINDAHAN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TINDAHAN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TINDAHAN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TINDAHAN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TINDAHAN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TINDAHAN_AUTO_MIGRATE" default:"false"`
}

// OrdersConfig tunes the order lifecycle rules.
type OrdersConfig struct {
	EditLockWindow   time.Duration `envconfig:"TINDAHAN_ORDER_EDIT_LOCK_WINDOW" default:"24h"`
	LocalDeliveryFee string        `envconfig:"TINDAHAN_ORDER_LOCAL_DELIVERY_FEE" default:"50.00"`
	StorePickupFee   string        `envconfig:"TINDAHAN_ORDER_STORE_PICKUP_FEE" default:"0.00"`
	MaxWriteAttempts int           `envconfig:"TINDAHAN_ORDER_MAX_WRITE_ATTEMPTS" default:"3"`
	StoreTimeout     time.Duration `envconfig:"TINDAHAN_ORDER_STORE_TIMEOUT" default:"5s"`
	ReportCacheTTL   time.Duration `envconfig:"TINDAHAN_ORDER_REPORT_CACHE_TTL" default:"60s"`
}

// DeliveryFees returns the fee charged per shipping method.
func (o OrdersConfig) DeliveryFees() (map[enums.ShippingMethod]money.Amount, error) {
	local, err := money.Parse(o.LocalDeliveryFee)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvOrderLocalDeliveryFee, err)
	}
	pickup, err := money.Parse(o.StorePickupFee)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvOrderStorePickupFee, err)
	}
	if local.IsNegative() || pickup.IsNegative() {
		return nil, fmt.Errorf("delivery fees must not be negative")
	}
	return map[enums.ShippingMethod]money.Amount{
		enums.ShippingMethodLocalDelivery: local,
		enums.ShippingMethodStorePickup:   pickup,
	}, nil
}

func (o OrdersConfig) validate() error {
	if o.EditLockWindow <= 0 {
		return fmt.Errorf("%s must be positive", EnvOrderEditLockWindow)
	}
	if o.MaxWriteAttempts < 1 {
		return fmt.Errorf("%s must be at least 1", EnvOrderMaxWriteAttempts)
	}
	_, err := o.DeliveryFees()
	return err
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TINDAHAN_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TINDAHAN_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TINDAHAN_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// NotificationsConfig selects where the outbox publisher relays order events.
type NotificationsConfig struct {
	Sink        string `envconfig:"TINDAHAN_NOTIFICATIONS_SINK" default:"log"`
	OrdersTopic string `envconfig:"TINDAHAN_NOTIFICATIONS_ORDERS_TOPIC" default:"order-events"`
}

func (n NotificationsConfig) validate(gcp GCPConfig, kafka KafkaConfig) error {
	switch strings.ToLower(n.Sink) {
	case SinkLog:
		return nil
	case SinkPubSub:
		if gcp.ProjectID == "" {
			return fmt.Errorf("%s is required for the pubsub sink", EnvGCPProjectID)
		}
	case SinkKafka:
		if len(kafka.Brokers) == 0 {
			return fmt.Errorf("%s is required for the kafka sink", EnvKafkaBrokers)
		}
	default:
		return fmt.Errorf("unsupported notifications sink %q", n.Sink)
	}
	if strings.TrimSpace(n.OrdersTopic) == "" {
		return fmt.Errorf("%s is required", EnvNotificationsOrdersTopic)
	}
	return nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"TINDAHAN_GCP_PROJECT_ID"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"TINDAHAN_KAFKA_BROKERS"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
