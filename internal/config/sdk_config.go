package config

// SDKConfig holds settings shared with embedding applications.
type SDKConfig struct {
	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url" env:"ADSAUTH_PROXY_URL"`

	// Store selects and configures the token persistence backend.
	Store StoreConfig `yaml:"store" json:"store"`
}

// StoreConfig configures the token persistence backend. The first configured
// backend in the order postgres, sqlite, redis, object, git wins; the file backend is the fallback.
type StoreConfig struct {
	PostgresDSN    string `yaml:"postgres-dsn" json:"postgres-dsn" env:"PGSTORE_DSN"`
	PostgresSchema string `yaml:"postgres-schema" json:"postgres-schema" env:"PGSTORE_SCHEMA"`

	SQLitePath string `yaml:"sqlite-path" json:"sqlite-path" env:"SQLITESTORE_PATH"`

	RedisAddr     string `yaml:"redis-addr" json:"redis-addr" env:"REDISSTORE_ADDR"`
	RedisPassword string `yaml:"redis-password" json:"redis-password" env:"REDISSTORE_PASSWORD"`
	RedisDB       int    `yaml:"redis-db" json:"redis-db" env:"REDISSTORE_DB"`
	RedisPrefix   string `yaml:"redis-prefix" json:"redis-prefix" env:"REDISSTORE_PREFIX"`

	ObjectEndpoint  string `yaml:"object-endpoint" json:"object-endpoint" env:"OBJECTSTORE_ENDPOINT"`
	ObjectBucket    string `yaml:"object-bucket" json:"object-bucket" env:"OBJECTSTORE_BUCKET"`
	ObjectAccessKey string `yaml:"object-access-key" json:"object-access-key" env:"OBJECTSTORE_ACCESS_KEY"`
	ObjectSecretKey string `yaml:"object-secret-key" json:"object-secret-key" env:"OBJECTSTORE_SECRET_KEY"`
	ObjectRegion    string `yaml:"object-region" json:"object-region" env:"OBJECTSTORE_REGION"`
	ObjectPrefix    string `yaml:"object-prefix" json:"object-prefix" env:"OBJECTSTORE_PREFIX"`
	ObjectUseSSL    bool   `yaml:"object-use-ssl" json:"object-use-ssl" env:"OBJECTSTORE_USE_SSL"`

	GitURL       string `yaml:"git-url" json:"git-url" env:"GITSTORE_GIT_URL"`
	GitUsername  string `yaml:"git-username" json:"git-username" env:"GITSTORE_GIT_USERNAME"`
	GitToken     string `yaml:"git-token" json:"git-token" env:"GITSTORE_GIT_TOKEN"`
	GitLocalPath string `yaml:"git-local-path" json:"git-local-path" env:"GITSTORE_LOCAL_PATH"`
}
