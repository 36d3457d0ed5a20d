package config

import "time"

// Config is the full client configuration. Values are merged from defaults,
// an optional YAML file and DYNAGO_* environment variables, in that order.
type Config struct {
	Region      RegionConfig      `koanf:"region"`
	HTTP        HTTPConfig        `koanf:"http"`
	Retry       RetryConfig       `koanf:"retry"`
	Validate    ValidateConfig    `koanf:"validate"`
	Credentials CredentialsConfig `koanf:"credentials"`
	Log         LogConfig         `koanf:"log"`
}

// RegionConfig selects the target region and optionally overrides the
// resolved endpoint.
type RegionConfig struct {
	Name string `koanf:"name" validate:"required"`
	// Endpoint overrides the host resolved from the endpoint table, for
	// local stacks and test servers.
	Endpoint string `koanf:"endpoint"`
	// EndpointsPath points at a JSON overlay merged over the bundled
	// endpoint table.
	EndpointsPath string `koanf:"endpoints"`
}

// HTTPConfig tunes the underlying HTTP client.
type HTTPConfig struct {
	Secure    bool          `koanf:"secure"`
	Port      int           `koanf:"port" validate:"min=0,max=65535"`
	Timeout   time.Duration `koanf:"timeout" validate:"required,min=1s"`
	PoolSize  int           `koanf:"poolsize" validate:"min=1"`
	RateLimit float64       `koanf:"ratelimit" validate:"min=0"`
}

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	Max      int           `koanf:"max" validate:"min=0"`
	MaxDelay time.Duration `koanf:"maxdelay" validate:"min=0"`
}

// ValidateConfig toggles response validation.
type ValidateConfig struct {
	Checksums bool `koanf:"checksums"`
}

// CredentialsConfig carries static credentials. Leave empty to fall back
// to the environment provider chain.
type CredentialsConfig struct {
	AccessKey    string `koanf:"accesskey"`
	SecretKey    string `koanf:"secretkey"`
	SessionToken string `koanf:"sessiontoken"`
}

// LogConfig controls the client logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"required,oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty"`
}
