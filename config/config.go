package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	APIPrefix  string

	CORSOrigins []string

	Database  DatabaseConfig
	Token     TokenConfig
	Superuser SuperuserConfig
	Events    EventsConfig
	Storage   StorageConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// TokenConfig holds the signing secret and default token lifetime.
// Loaded once at startup and treated as immutable afterwards.
type TokenConfig struct {
	SecretKey     string
	ExpireMinutes int
}

// SuperuserConfig is the bootstrap seed identity. It is only consulted
// when the superuser row does not exist yet.
type SuperuserConfig struct {
	ID       string
	Password string
}

// EventsConfig selects the change-event broker. Driver "none" disables
// publishing.
type EventsConfig struct {
	Driver   string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

// StorageConfig selects the attachment object-storage backend. Driver
// "none" disables attachment routes.
type StorageConfig struct {
	Driver string
	Minio  MinioConfig
	GCS    GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	ProjectID       string
	Bucket          string
	CredentialsFile string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "apiserver"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "apiserver_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	tokenConfig := TokenConfig{
		SecretKey:     getEnv("ACCESS_TOKEN_SECRET_KEY", randomSecret()),
		ExpireMinutes: getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24),
	}

	superuserConfig := SuperuserConfig{
		ID:       getEnv("SUPERUSER", "admin"),
		Password: getEnv("SUPERUSER_PASSWORD", "admin"),
	}

	eventsConfig := EventsConfig{
		Driver: getEnv("EVENTS_DRIVER", "none"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH_COUNT", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	storageConfig := StorageConfig{
		Driver: getEnv("STORAGE_DRIVER", "none"),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "attachments"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			Bucket:          getEnv("GCS_BUCKET", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	return Config{
		ServerPort:  getEnvInt("SERVER_PORT", 8080),
		APIPrefix:   getEnv("API_PREFIX", "/api/v1"),
		CORSOrigins: getEnvList("CORS_ORIGINS", "http://localhost:8000"),
		Database:    dbConfig,
		Token:       tokenConfig,
		Superuser:   superuserConfig,
		Events:      eventsConfig,
		Storage:     storageConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(valueStr)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// randomSecret generates a throwaway signing key when none is
// configured. Every restart then invalidates outstanding tokens, so
// deployments must set ACCESS_TOKEN_SECRET_KEY.
func randomSecret() string {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf[:])
}
