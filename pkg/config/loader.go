package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct using `env`
// and `envDefault` tags. Durations accept Go syntax ("5m", "168h").
//
//	type Config struct {
//	    Port   int           `env:"HTTP_PORT" envDefault:"5000"`
//	    OTPTTL time.Duration `env:"OTP_TTL" envDefault:"5m"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
