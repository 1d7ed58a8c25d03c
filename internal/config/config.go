package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	VCenter *vcenterConfig
	Check   *checkConfig
	Log     *logConfig
}

// vcenterConfig holds the endpoint and credentials. They are read from the
// environment only and never written anywhere.
type vcenterConfig struct {
	Server     string `envconfig:"VSAN_HEALTH_SERVER" default:""`
	Username   string `envconfig:"VSAN_HEALTH_USERNAME" default:""`
	Password   string `envconfig:"VSAN_HEALTH_PASSWORD" default:""`
	Insecure   bool   `envconfig:"VSAN_HEALTH_INSECURE" default:"false"`
	Thumbprint string `envconfig:"VSAN_HEALTH_THUMBPRINT" default:""`
}

type checkConfig struct {
	Cluster                 string        `envconfig:"VSAN_HEALTH_CLUSTER" default:"VSAN-Cluster"`
	Timeout                 time.Duration `envconfig:"VSAN_HEALTH_TIMEOUT" default:"2m"`
	Concurrency             int           `envconfig:"VSAN_HEALTH_CONCURRENCY" default:"8"`
	FetchFromCache          bool          `envconfig:"VSAN_HEALTH_FETCH_FROM_CACHE" default:"false"`
	Output                  string        `envconfig:"VSAN_HEALTH_OUTPUT" default:"table"`
	MetricsFile             string        `envconfig:"VSAN_HEALTH_METRICS_FILE" default:""`
	CapacityWarnPercent     float64       `envconfig:"VSAN_HEALTH_CAPACITY_WARN_PCT" default:"60"`
	CapacityCriticalPercent float64       `envconfig:"VSAN_HEALTH_CAPACITY_CRITICAL_PCT" default:"80"`
}

type logConfig struct {
	Level string `envconfig:"VSAN_HEALTH_LOG_LEVEL" default:"info"`
}

// New reads the configuration from the VSAN_HEALTH_* environment variables.
func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
