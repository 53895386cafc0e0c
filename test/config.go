package test

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// IT_WAIT_TIMEOUT bounds how long a scenario waits for async events
	WaitTimeout time.Duration `envconfig:"IT_WAIT_TIMEOUT" default:"5s"`
	BufferSize  int           `envconfig:"IT_BUFFER_SIZE" default:"64"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
