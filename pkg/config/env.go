package config

// EnvPrefix is handed to envconfig; every field carries an explicit name.
const EnvPrefix = "TINDAHAN"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	SinkLog    = "log"
	SinkPubSub = "pubsub"
	SinkKafka  = "kafka"
)

const (
	EnvAppEnv   = "TINDAHAN_APP_ENV"
	EnvPort     = "TINDAHAN_APP_PORT"
	EnvLogLevel = "TINDAHAN_LOG_LEVEL"

	EnvDBDSN  = "TINDAHAN_DB_DSN"
	EnvDBHost = "TINDAHAN_DB_HOST"
	EnvDBUser = "TINDAHAN_DB_USER"
	EnvDBName = "TINDAHAN_DB_NAME"

	EnvRedisURL = "TINDAHAN_REDIS_URL"

	EnvOrderEditLockWindow   = "TINDAHAN_ORDER_EDIT_LOCK_WINDOW"
	EnvOrderLocalDeliveryFee = "TINDAHAN_ORDER_LOCAL_DELIVERY_FEE"
	EnvOrderStorePickupFee   = "TINDAHAN_ORDER_STORE_PICKUP_FEE"
	EnvOrderMaxWriteAttempts = "TINDAHAN_ORDER_MAX_WRITE_ATTEMPTS"

	EnvNotificationsSink        = "TINDAHAN_NOTIFICATIONS_SINK"
	EnvNotificationsOrdersTopic = "TINDAHAN_NOTIFICATIONS_ORDERS_TOPIC"
	EnvGCPProjectID             = "TINDAHAN_GCP_PROJECT_ID"
	EnvKafkaBrokers             = "TINDAHAN_KAFKA_BROKERS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
