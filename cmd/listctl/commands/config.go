package commands

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/goliatone/go-entitylist/cache"
	"github.com/goliatone/go-entitylist/invalidation"
	"github.com/goliatone/go-entitylist/query"
)

// EnvPrefix prefixes environment overrides, e.g. LISTCTL_MONGO_URI.
const EnvPrefix = "LISTCTL"

// Config is the listctl configuration.
type Config struct {
	LogLevel string
	Mongo    MongoConfig
	Kafka    invalidation.Config
	PageSize int
	ListTTL  time.Duration
	// ObjectIDs converts "id" filter values to ObjectIDs.
	ObjectIDs bool
}

// MongoConfig locates the document store.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(query.MaxPageSize)),
		validation.Field(&c.ListTTL, validation.Required),
	)
}

// Validate checks whether the configuration values are valid.
func (c MongoConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URI, validation.Required),
		validation.Field(&c.Database, validation.Required),
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("page_size", query.DefaultPageSize)
	v.SetDefault("list_ttl", cache.DefaultListTTL)
	v.SetDefault("object_ids", true)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.timeout", 10*time.Second)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", invalidation.DefaultTopic)
	v.SetDefault("kafka.group_id", "listctl")
}

// LoadConfig reads path, when set, and applies LISTCTL_* environment overrides.
func LoadConfig(v *viper.Viper, path string) (Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := Config{
		LogLevel:  v.GetString("log_level"),
		PageSize:  v.GetInt("page_size"),
		ListTTL:   v.GetDuration("list_ttl"),
		ObjectIDs: v.GetBool("object_ids"),
		Mongo: MongoConfig{
			URI:      v.GetString("mongo.uri"),
			Database: v.GetString("mongo.database"),
			Timeout:  v.GetDuration("mongo.timeout"),
		},
		Kafka: invalidation.Config{
			Brokers: v.GetStringSlice("kafka.brokers"),
			Topic:   v.GetString("kafka.topic"),
			GroupID: v.GetString("kafka.group_id"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func (c Config) cacheConfig() cache.ResultCacheConfig {
	rc := cache.DefaultResultCacheConfig()
	rc.Lists.TTL = c.ListTTL
	return rc
}
