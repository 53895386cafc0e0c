package internal

import "time"

type Config struct {
	BufferSize     int           `env:"BUFFER_SIZE,required=true"`
	LimitMessages  *int          `env:"LIMIT_MESSAGES"`
	SinkTimeout    time.Duration `env:"SINK_TIMEOUT,required=true"`
	MetricInterval time.Duration `env:"METRIC_INTERVAL,required=true"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL,required=true"`
	TypingTTL      time.Duration `env:"TYPING_TTL,required=true"`
	PresenceTTL    time.Duration `env:"PRESENCE_TTL"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	DebugPort      int    `env:"DEBUG_PORT"`
}
