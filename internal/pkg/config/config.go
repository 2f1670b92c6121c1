package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Поддерживаемые хранилища документов
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendMongoDB   = "mongodb"
	BackendBadger    = "badger"
	BackendFirestore = "firestore"
)

// Config содержит настройки приложения
type Config struct {
	// Окружение: development включает читаемые логи
	AppEnv string `env:"APP_ENV" envDefault:"production" validate:"oneof=development production test"`

	// Настройки HTTP-сервера
	ServerPort int `env:"SERVER_PORT" envDefault:"8080" validate:"min=1,max=65535"`

	// Хранилище документов и задач
	DatastoreBackend string        `env:"DATASTORE_BACKEND" envDefault:"postgres" validate:"oneof=memory postgres sqlite mongodb badger firestore"`
	TaskStore        string        `env:"TASK_STORE" envDefault:"memory" validate:"oneof=memory redis"`
	TaskTTL          time.Duration `env:"TASK_TTL" envDefault:"24h" validate:"gt=0"`

	// Настройки базы данных
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"postgres"`
	DBSSLMode  string `env:"DB_SSL_MODE" envDefault:"disable"`

	// Настройки пула соединений
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"cleaner.db"`

	Mongo     MongoConfig
	Redis     RedisConfig
	BadgerDir string `env:"BADGER_PATH"`
	Firestore FirestoreConfig

	Cleanup CleanupConfig
	Users   UsersConfig

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// MongoConfig - подключение к MongoDB
type MongoConfig struct {
	URI          string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	Database     string `env:"MONGODB_DATABASE" envDefault:"remoteworks"`
	Transactions bool   `env:"MONGODB_TRANSACTIONS" envDefault:"true"`
}

// RedisConfig - подключение к Redis для хранения задач
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// FirestoreConfig - проект Cloud Firestore
type FirestoreConfig struct {
	ProjectID string `env:"FIRESTORE_PROJECT_ID"`
}

// CleanupConfig - параметры очистки данных
type CleanupConfig struct {
	DefaultBatchSize int           `env:"DEFAULT_BATCH_SIZE" envDefault:"500" validate:"min=1,max=500"`
	MaxRequestTime   time.Duration `env:"MAX_REQUEST_TIME" envDefault:"30m" validate:"gt=0"`
	AsyncTimeout     time.Duration `env:"ASYNC_TIMEOUT" envDefault:"1h" validate:"gt=0"`
	// Cutoff - граница по умолчанию для CLI в формате RFC 3339 или YYYY-MM-DD
	Cutoff         string `env:"CLEANUP_CUTOFF"`
	TimestampField string `env:"TIMESTAMP_FIELD" envDefault:"createdAt" validate:"required"`
	StrictCascade  bool   `env:"STRICT_CASCADE" envDefault:"false"`

	NotificationsCollection  string `env:"NOTIFICATIONS_COLLECTION" envDefault:"notifications" validate:"required"`
	ProjectsCollection       string `env:"PROJECTS_COLLECTION" envDefault:"candidate_projects" validate:"required"`
	ProjectUpdatesCollection string `env:"PROJECT_UPDATES_COLLECTION" envDefault:"project_updates" validate:"required"`
	ProjectActionsCollection string `env:"PROJECT_ACTIONS_COLLECTION" envDefault:"project_actions" validate:"required"`
	ProjectForeignKey        string `env:"PROJECT_FOREIGN_KEY" envDefault:"projectId" validate:"required"`
}

// UsersConfig описывает коллекцию пользователей для смены роли
type UsersConfig struct {
	Collection string `env:"USERS_COLLECTION" envDefault:"users" validate:"required"`
	EmailField string `env:"USERS_EMAIL_FIELD" envDefault:"email" validate:"required"`
	RoleField  string `env:"USERS_ROLE_FIELD" envDefault:"role" validate:"required"`
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() (*Config, error) {
	// Загружаем .env файл, если он существует
	_ = godotenv.Load()

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			msgs := make([]string, 0, len(errs))
			for _, fe := range errs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.DatastoreBackend == BackendFirestore && c.Firestore.ProjectID == "" {
		return fmt.Errorf("invalid config: FIRESTORE_PROJECT_ID is required for firestore backend")
	}
	if _, err := c.CleanupCutoff(); err != nil {
		return err
	}
	return nil
}

// IsDevelopment сообщает, включен ли режим разработки
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// CleanupCutoff разбирает CLEANUP_CUTOFF; нулевое время означает, что граница не задана
func (c *Config) CleanupCutoff() (time.Time, error) {
	if c.Cleanup.Cutoff == "" {
		return time.Time{}, nil
	}
	t, err := ParseCutoff(c.Cleanup.Cutoff)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid config: CLEANUP_CUTOFF: %w", err)
	}
	return t, nil
}

// ParseCutoff принимает RFC 3339 или дату YYYY-MM-DD (полночь UTC)
func ParseCutoff(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", value)
	}
	return t, nil
}

// GetDBConnString возвращает строку подключения к PostgreSQL
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}
