package internal

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Host             string        `env:"HOST,default=127.0.0.1" validate:"required"`
	Port             int           `env:"PORT,default=8080" validate:"min=0,max=65535"`
	BusCapacity      int           `env:"BUS_CAPACITY,default=32" validate:"min=1"`
	LogLevel         string        `env:"LOG_LEVEL,default=INFO" validate:"required"`
	MaxMessageSize   int           `env:"MAX_MESSAGE_SIZE,default=4096" validate:"min=64"`
	WriteTimeout     time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`
	MetricInterval   time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"gt=0"`
	RestartInterval  time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	CensoredWordsDir string        `env:"CENSORED_WORDS_DIR"`
	CharReplacement  string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

// Validate checks ranges the env decoder cannot express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Address is the listen address of the relay.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) ModerationEnabled() bool {
	return c.CensoredWordsDir != ""
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
