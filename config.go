package users

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/viper"
)

const (
	// CurrentSchemaVersion is stamped on new records
	CurrentSchemaVersion = 4
	// DefaultAvatar is used until a user uploads one
	DefaultAvatar = "/i/accounts/avatars/missing.png"
	// DefaultHeader is used until a user uploads one
	DefaultHeader = "/i/accounts/headers/generic.png"
	// EnvPrefix namespaces environment overrides, ie USERS_TOKEN_ISSUER
	EnvPrefix = "USERS"
)

// DatabaseConfig selects the bun dialect and connection
type DatabaseConfig struct {
	Dialect string `mapstructure:"dialect" json:"dialect"`
	DSN     string `mapstructure:"dsn" json:"dsn"`
}

// S3Config configures the s3fs adapter
type S3Config struct {
	Bucket          string `mapstructure:"bucket" json:"bucket"`
	Prefix          string `mapstructure:"prefix" json:"prefix"`
	Region          string `mapstructure:"region" json:"region"`
	Endpoint        string `mapstructure:"endpoint" json:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" json:"-"`
	UsePathStyle    bool   `mapstructure:"use_path_style" json:"use_path_style"`
}

// StorageConfig selects the FileStorage backend
type StorageConfig struct {
	// Backend is one of os, memory or s3
	Backend  string   `mapstructure:"backend" json:"backend"`
	BasePath string   `mapstructure:"base_path" json:"base_path"`
	S3       S3Config `mapstructure:"s3" json:"s3"`
}

// Config is the single configuration surface of the module. Zero values
// are replaced by DefaultConfig values in Normalize.
type Config struct {
	PublicRoot    string         `mapstructure:"public_root" json:"public_root"`
	PrivateRoot   string         `mapstructure:"private_root" json:"private_root"`
	ArchiveRoot   string         `mapstructure:"archive_root" json:"archive_root"`
	PasswordCost  int            `mapstructure:"password_cost" json:"password_cost"`
	DefaultAvatar string         `mapstructure:"default_avatar" json:"default_avatar"`
	DefaultHeader string         `mapstructure:"default_header" json:"default_header"`
	SchemaVersion int            `mapstructure:"schema_version" json:"schema_version"`
	Token         TokenConfig    `mapstructure:"token" json:"token"`
	Database      DatabaseConfig `mapstructure:"database" json:"database"`
	Storage       StorageConfig  `mapstructure:"storage" json:"storage"`
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		PublicRoot:    "public/accounts",
		PrivateRoot:   "private/accounts",
		ArchiveRoot:   "archive",
		PasswordCost:  passwordHashCost(),
		DefaultAvatar: DefaultAvatar,
		DefaultHeader: DefaultHeader,
		SchemaVersion: CurrentSchemaVersion,
		Token: TokenConfig{
			Issuer:     "http://localhost:3000",
			Audience:   []string{"http://localhost:3000"},
			TTL:        DefaultTokenTTL,
			RefreshTTL: DefaultRefreshTTL,
			Origin:     "http://localhost:3000",
		},
		Database: DatabaseConfig{
			Dialect: DialectSQLite,
			DSN:     "file::memory:?cache=shared",
		},
		Storage: StorageConfig{
			Backend:  "os",
			BasePath: "data",
		},
	}
}

// Normalize fills zero values from DefaultConfig
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.PublicRoot == "" {
		c.PublicRoot = def.PublicRoot
	}
	if c.PrivateRoot == "" {
		c.PrivateRoot = def.PrivateRoot
	}
	if c.ArchiveRoot == "" {
		c.ArchiveRoot = def.ArchiveRoot
	}
	if c.PasswordCost == 0 {
		c.PasswordCost = def.PasswordCost
	}
	if c.DefaultAvatar == "" {
		c.DefaultAvatar = def.DefaultAvatar
	}
	if c.DefaultHeader == "" {
		c.DefaultHeader = def.DefaultHeader
	}
	if c.SchemaVersion == 0 {
		c.SchemaVersion = def.SchemaVersion
	}
	if c.Token.TTL == 0 {
		c.Token.TTL = def.Token.TTL
	}
	if c.Token.RefreshTTL == 0 {
		c.Token.RefreshTTL = def.Token.RefreshTTL
	}
	if c.Database.Dialect == "" {
		c.Database.Dialect = def.Database.Dialect
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	return c
}

// Validate checks the configuration once, at construction
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.PublicRoot, validation.Required),
		validation.Field(&c.PrivateRoot, validation.Required),
		validation.Field(&c.ArchiveRoot, validation.Required),
		validation.Field(&c.PasswordCost, validation.Min(4), validation.Max(31)),
		validation.Field(&c.SchemaVersion, validation.Min(1)),
		validation.Field(&c.Token, validation.By(validateTokenConfig)),
		validation.Field(&c.Database, validation.By(validateDatabaseConfig)),
		validation.Field(&c.Storage, validation.By(validateStorageConfig)),
	)
	return asValidationError("invalid configuration", err)
}

func validateTokenConfig(value any) error {
	t, _ := value.(TokenConfig)
	return validation.ValidateStruct(&t,
		validation.Field(&t.Issuer, validation.Required),
		validation.Field(&t.Origin, is.URL),
		validation.Field(&t.TTL, validation.Min(time.Second)),
		validation.Field(&t.RefreshTTL, validation.Min(time.Second)),
	)
}

func validateDatabaseConfig(value any) error {
	d, _ := value.(DatabaseConfig)
	return validation.ValidateStruct(&d,
		validation.Field(&d.Dialect, validation.Required, validation.In(DialectSQLite, DialectPostgres)),
	)
}

func validateStorageConfig(value any) error {
	s, _ := value.(StorageConfig)
	return validation.ValidateStruct(&s,
		validation.Field(&s.Backend, validation.Required, validation.In("os", "memory", "s3")),
		validation.Field(&s.S3, validation.By(func(any) error {
			if s.Backend != "s3" {
				return nil
			}
			return validation.ValidateStruct(&s.S3,
				validation.Field(&s.S3.Bucket, validation.Required),
				validation.Field(&s.S3.Region, validation.Required),
			)
		})),
	)
}

// LoadConfig reads path (any format viper understands) over the defaults,
// then applies USERS_ prefixed environment overrides. An empty path loads
// defaults and environment only.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read users config").
				WithMetadata(map[string]any{"path": path})
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode users config")
	}

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent
// from the file.
func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("public_root", c.PublicRoot)
	v.SetDefault("private_root", c.PrivateRoot)
	v.SetDefault("archive_root", c.ArchiveRoot)
	v.SetDefault("password_cost", c.PasswordCost)
	v.SetDefault("default_avatar", c.DefaultAvatar)
	v.SetDefault("default_header", c.DefaultHeader)
	v.SetDefault("schema_version", c.SchemaVersion)
	v.SetDefault("token.issuer", c.Token.Issuer)
	v.SetDefault("token.audience", c.Token.Audience)
	v.SetDefault("token.ttl", c.Token.TTL)
	v.SetDefault("token.refresh_ttl", c.Token.RefreshTTL)
	v.SetDefault("token.origin", c.Token.Origin)
	v.SetDefault("database.dialect", c.Database.Dialect)
	v.SetDefault("database.dsn", c.Database.DSN)
	v.SetDefault("storage.backend", c.Storage.Backend)
	v.SetDefault("storage.base_path", c.Storage.BasePath)
	v.SetDefault("storage.s3.bucket", c.Storage.S3.Bucket)
	v.SetDefault("storage.s3.prefix", c.Storage.S3.Prefix)
	v.SetDefault("storage.s3.region", c.Storage.S3.Region)
	v.SetDefault("storage.s3.endpoint", c.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.access_key_id", c.Storage.S3.AccessKeyID)
	v.SetDefault("storage.s3.secret_access_key", c.Storage.S3.SecretAccessKey)
	v.SetDefault("storage.s3.use_path_style", c.Storage.S3.UsePathStyle)
}
