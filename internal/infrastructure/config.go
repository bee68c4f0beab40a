package infra

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix env prefix for viper
const EnvPrefix = "COURSEGATE"

// runtime environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// AppConfig App option object
type AppConfig struct {
	AppID          string        `mapstructure:"app_id" json:"app_id" yaml:"app_id" validate:"required"`            // Application ID
	Host           string        `mapstructure:"host" json:"host" yaml:"host"`                                      // bind host address
	Port           int           `mapstructure:"port" json:"port" yaml:"port"`                                      // bind listen port
	Env            string        `mapstructure:"env" json:"env" yaml:"env" validate:"oneof=development production"` // runtime environment
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	Database       struct {
		Driver   string `mapstructure:"driver" json:"driver" yaml:"driver" validate:"oneof=mysql postgres memory"`           // driver name
		Host     string `mapstructure:"host" json:"host" yaml:"host" validate:"required_unless=Driver memory"`               // server host
		MaxConn  int32  `mapstructure:"maxconn" json:"maxconn" yaml:"maxconn" validate:"min=1"`                              // maximum opening connections number
		Password string `mapstructure:"password" json:"-" yaml:"password" validate:"required_unless=Driver memory"`          // db password
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`                                                        // server port
		Protocol string `mapstructure:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=tcp udp"`         // connection protocol, eg.tcp
		Query    string `mapstructure:"query" json:"query" yaml:"query"`                                                     // DSN query parameter
		Schema   string `mapstructure:"schema" json:"schema" yaml:"schema" validate:"required_unless=Driver memory"`         // use schema
		User     string `mapstructure:"username" json:"username" yaml:"username" validate:"required_unless=Driver memory"`   // db username
	} `mapstructure:"database" json:"database" yaml:"database"`
	Logging struct {
		FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`                            // log file path
		Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"` // global logging level
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
	Security struct {
		IDLength  int    `mapstructure:"id_length" json:"id_length" yaml:"id_length" validate:"min=8"` // length of generated ID for entities
		JWTMethod string `mapstructure:"jwt_method" json:"jwt_method" yaml:"jwt_method" validate:"oneof=HS256 HS512 ES256"`
		JWTSecret string `mapstructure:"jwt_secret" json:"-" yaml:"jwt_secret" validate:"required"`
		TokenName string `mapstructure:"token_name" json:"token_name" yaml:"token_name" validate:"required"` // jwt token name set in cookie
	} `mapstructure:"security" json:"security" yaml:"security"`
	KVStore struct {
		Driver   string `mapstructure:"driver" json:"driver" yaml:"driver" validate:"oneof=redis memory"`
		Host     string `mapstructure:"host" json:"host" yaml:"host"` // bind host address
		Port     int    `mapstructure:"port" json:"port" yaml:"port"` // bind listen port
		Password string `mapstructure:"password" json:"-" yaml:"password"`
		Channel  string `mapstructure:"channel" json:"channel" yaml:"channel"` // pub/sub channel for progress events, empty disables fan-out
	} `mapstructure:"kv" json:"kv" yaml:"kv"`
	Progress struct {
		PointsAward         int           `mapstructure:"points_award" json:"points_award" yaml:"points_award" validate:"min=0"`
		CompletionThreshold float64       `mapstructure:"completion_threshold" json:"completion_threshold" yaml:"completion_threshold" validate:"gt=0,lte=1"`
		SessionTTL          time.Duration `mapstructure:"session_ttl" json:"session_ttl" yaml:"session_ttl"`
		CatalogFile         string        `mapstructure:"catalog_file" json:"catalog_file" yaml:"catalog_file"` // YAML catalog, required with the memory database
	} `mapstructure:"progress" json:"progress" yaml:"progress"`
	Store struct {
		CallTimeout    time.Duration `mapstructure:"call_timeout" json:"call_timeout" yaml:"call_timeout"`
		MaxRetries     uint          `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries" validate:"min=1,max=10"`
		InitialBackoff time.Duration `mapstructure:"initial_backoff" json:"initial_backoff" yaml:"initial_backoff"`
		MaxBackoff     time.Duration `mapstructure:"max_backoff" json:"max_backoff" yaml:"max_backoff"`
	} `mapstructure:"store" json:"store" yaml:"store"`
	DevOP struct {
		APM bool `mapstructure:"apm" json:"apm" yaml:"apm"`
	} `mapstructure:"devop" json:"devop" yaml:"devop"`
}

// InitConfig init app config using viper
func InitConfig() (*AppConfig, error) {
	// app
	pflag.String("host", "", "binding address")
	pflag.String("app_id", "", "application identifier (required)")
	pflag.String("env", EnvDevelopment, "runtime environment, can be 'development' or 'production'")
	pflag.Int("port", 8081, "listening port")
	pflag.Duration("request_timeout", 30*time.Second, "abort requests running longer than this")

	// database
	pflag.String("database.driver", "mysql", "database driver to use, one of mysql, postgres or memory")
	pflag.String("database.host", "127.0.0.1", "database host")
	pflag.Int("database.port", 3306, "database server port")
	pflag.String("database.protocol", "", "connection protocol(if mysql is used, this flag must be set), eg.tcp")
	pflag.String("database.username", "", "database username (required)")
	pflag.String("database.password", "", "database password (required)")
	pflag.String("database.schema", "", "database schema (required)")
	pflag.String("database.query", "", `additional DSN query parameters('?' is auto prefixed), mysql always gets "parseTime=true"`)
	pflag.Int32("database.maxconn", 200, `max connection count, if you encounter a "too many connections" error, please consider
increasing the max_connection value of your db server, or lower this value`)

	// logging
	pflag.String("logging.level", "info", "logging level")
	pflag.String("logging.file_path", "", "log to file")

	// security
	pflag.Int("security.id_length", 21, "set length of generated ID for entities")
	pflag.String("security.jwt_method", "HS256", "hash algorithm used to verify identity tokens")
	pflag.String("security.jwt_secret", "", "JWT secret shared with the identity provider (required)")
	pflag.String("security.token_name", "", "cookie name carrying the token (required)")

	// kv storage
	pflag.String("kv.driver", "redis", "kv driver, redis or memory")
	pflag.String("kv.host", "127.0.0.1", "kv host")
	pflag.Int("kv.port", 6379, "kv server port")
	pflag.String("kv.password", "", "kv server password")
	pflag.String("kv.channel", "", "pub/sub channel used to fan out progress events between instances")

	// progress
	pflag.Int("progress.points_award", 10, "points awarded on the first completion of a lesson")
	pflag.Float64("progress.completion_threshold", 0.9, "fraction of a lesson that counts as watched")
	pflag.Duration("progress.session_ttl", 6*time.Hour, "lifetime of an idle playback session")
	pflag.String("progress.catalog_file", "", "YAML course catalog used with the memory database")

	// store
	pflag.Duration("store.call_timeout", 3*time.Second, "timeout of a single store call")
	pflag.Uint("store.max_retries", 3, "retries made after the first attempt before a store call is reported as unavailable")
	pflag.Duration("store.initial_backoff", 100*time.Millisecond, "wait before the first retry")
	pflag.Duration("store.max_backoff", 2*time.Second, "upper bound of the wait between retries")

	// DevOp
	pflag.Bool("devop.apm", false, "enable apm metrics")

	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config = new(AppConfig)
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Logging.Level == "debug" {
		if configJSON, err := json.MarshalIndent(config, "", "  "); err == nil {
			log.Printf("App config: %s\n", string(configJSON))
		}
	}
	return config, nil
}

func validateConfig(config *AppConfig) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("mapstructure")
		if name == "-" || name == "" {
			return ""
		}
		return name
	})
	validate.RegisterStructValidation(validateCatalogSource, AppConfig{})
	err := validate.Struct(config)
	if _, ok := err.(*validator.InvalidValidationError); ok {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	if err == nil {
		return nil
	}

	var msg []string
	for _, field := range err.(validator.ValidationErrors) {
		namespace := field.Namespace()
		fieldName := namespace[strings.IndexByte(namespace, '.')+1:] // trim top level namespace
		switch field.Tag() {
		case "required", "required_unless":
			msg = append(msg, fmt.Sprintf("%s is required", fieldName))
		case "required_if":
			msg = append(msg, fmt.Sprintf("%s is required when %s", fieldName, field.Param()))
		case "oneof":
			msg = append(msg, fmt.Sprintf("%s must be one of (%s)", fieldName, field.Param()))
		default:
			msg = append(msg, fmt.Sprintf("%s failed on %s=%s", fieldName, field.Tag(), field.Param()))
		}
	}
	return fmt.Errorf("failed to validate config: \n%s", strings.Join(msg, "\n"))
}

// validateCatalogSource the memory database has no course tables, the catalog must come from a file
func validateCatalogSource(sl validator.StructLevel) {
	config := sl.Current().Interface().(AppConfig)
	if config.Database.Driver == "memory" && config.Progress.CatalogFile == "" {
		sl.ReportError(config.Progress.CatalogFile, "progress.catalog_file", "CatalogFile", "required_if", "database.driver is memory")
	}
}
