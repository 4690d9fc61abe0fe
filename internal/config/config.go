package config

import (
	"errors"
	"path/filepath"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Object store backends.
const (
	ObjectStoreLocal = "local"
	ObjectStoreGCS   = "gcs"
	ObjectStoreS3    = "s3"
)

// Config holds all settings, populated from environment variables.
type Config struct {
	RootDir         string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	LogDir          string
	ShutdownTimeout time.Duration
	MetricsTextfile string

	APIProjectName string
	APIVersion     string

	// Energi Data Service source API.
	EnergiDataBaseURL      string
	EnergiDataMetaURL      string
	DatasetName            string
	EnergiDataTimeout      time.Duration
	EnergiDataMaxRetries   int
	EnergiDataRetryBackoff time.Duration

	// Feature store.
	FeatureStoreProject string
	FeatureStoreAPIKey  string
	FeatureStorePath    string

	// Object storage holding training datasets and forecast artifacts.
	ObjectStore           string
	GCPProject            string
	GCPBucketName         string
	GCPServiceAccountPath string
	S3Bucket              string
	S3Region              string
	S3Endpoint            string
	S3AccessKeyID         string
	S3SecretAccessKey     string
	LocalObjectDir        string

	// Online feature ingestion.
	OnlineFeaturesEnabled bool
	KafkaBrokers          []string
	KafkaOnlineTopic      string
}

// DataDir is where raw extractions are written.
func (c *Config) DataDir() string { return filepath.Join(c.RootDir, "data") }

// ProcessedDataDir is where load metadata is written.
func (c *Config) ProcessedDataDir() string { return filepath.Join(c.RootDir, "data", "processed_data") }

// Load reads configuration from the environment, applying defaults where unset.
// A dotenv file named by ENV_FILE (default ".env") is loaded first.
func Load() (*Config, error) {
	if err := LoadDotenv(sharedcfg.EnvOrDefault("ENV_FILE", ".env")); err != nil {
		return nil, errors.New("invalid ENV_FILE: " + err.Error())
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	sourceTimeout, err := envDuration("ENERGIDATA_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	retryBackoff, err := envDuration("ENERGIDATA_RETRY_BACKOFF", "500ms")
	if err != nil {
		return nil, err
	}
	maxRetries, err := envInt("ENERGIDATA_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	online, err := envBool("ONLINE_FEATURES_ENABLED", false)
	if err != nil {
		return nil, err
	}

	root := sharedcfg.EnvOrDefault("PROJECT_ROOT_DIR_PATH", ".")

	cfg := &Config{
		RootDir:         root,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8001"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		LogDir:          sharedcfg.EnvOrDefault("LOG_DIR", ""),
		ShutdownTimeout: shutdownTimeout,
		MetricsTextfile: sharedcfg.EnvOrDefault("METRICS_TEXTFILE", ""),

		APIProjectName: sharedcfg.EnvOrDefault("API_PROJECT_NAME", "Denmark Energy Consumption Forecasting API"),
		APIVersion:     sharedcfg.EnvOrDefault("API_VERSION", "v1"),

		EnergiDataBaseURL:      sharedcfg.EnvOrDefault("ENERGIDATA_BASE_URL", "https://api.energidataservice.dk/dataset/"),
		EnergiDataMetaURL:      sharedcfg.EnvOrDefault("ENERGIDATA_META_URL", "https://api.energidataservice.dk/meta/dataset/"),
		DatasetName:            sharedcfg.EnvOrDefault("ENERGIDATA_DATASET", "ConsumptionIndustry"),
		EnergiDataTimeout:      sourceTimeout,
		EnergiDataMaxRetries:   maxRetries,
		EnergiDataRetryBackoff: retryBackoff,

		FeatureStoreProject: sharedcfg.EnvOrDefault("FEATURE_STORE_PROJECT_NAME", "energy_consumption"),
		FeatureStoreAPIKey:  sharedcfg.EnvOrDefault("FEATURE_STORE_API_KEY", ""),
		FeatureStorePath:    sharedcfg.EnvOrDefault("FEATURE_STORE_PATH", filepath.Join(root, "data", "feature_store.db")),

		ObjectStore:           sharedcfg.EnvOrDefault("OBJECT_STORE", ObjectStoreLocal),
		GCPProject:            sharedcfg.EnvOrDefault("GOOGLE_CLOUD_PROJECT", ""),
		GCPBucketName:         sharedcfg.EnvOrDefault("GOOGLE_CLOUD_BUCKET_NAME", ""),
		GCPServiceAccountPath: sharedcfg.EnvOrDefault("GOOGLE_CLOUD_SERVICE_ACCOUNT_JSON_PATH", ""),
		S3Bucket:              sharedcfg.EnvOrDefault("S3_BUCKET", ""),
		S3Region:              sharedcfg.EnvOrDefault("S3_REGION", "eu-north-1"),
		S3Endpoint:            sharedcfg.EnvOrDefault("S3_ENDPOINT", ""),
		S3AccessKeyID:         sharedcfg.EnvOrDefault("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:     sharedcfg.EnvOrDefault("S3_SECRET_ACCESS_KEY", ""),
		LocalObjectDir:        sharedcfg.EnvOrDefault("LOCAL_OBJECT_DIR", filepath.Join(root, "data", "objects")),

		OnlineFeaturesEnabled: online,
		KafkaBrokers:          sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaOnlineTopic:      sharedcfg.EnvOrDefault("KAFKA_ONLINE_TOPIC", "energy-consumption-online"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return errors.New("invalid LOG_FORMAT")
	}
	if c.DatasetName == "" {
		return errors.New("ENERGIDATA_DATASET is required")
	}

	switch c.ObjectStore {
	case ObjectStoreLocal:
		if c.LocalObjectDir == "" {
			return errors.New("LOCAL_OBJECT_DIR is required")
		}
	case ObjectStoreGCS:
		if c.GCPBucketName == "" {
			return errors.New("GOOGLE_CLOUD_BUCKET_NAME is required when OBJECT_STORE is gcs")
		}
	case ObjectStoreS3:
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when OBJECT_STORE is s3")
		}
	default:
		return errors.New("invalid OBJECT_STORE")
	}

	if c.OnlineFeaturesEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when ONLINE_FEATURES_ENABLED is true")
		}
		if c.KafkaOnlineTopic == "" {
			return errors.New("KAFKA_ONLINE_TOPIC is required when ONLINE_FEATURES_ENABLED is true")
		}
	}
	return nil
}
