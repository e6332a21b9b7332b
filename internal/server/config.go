package server

import (
	"fmt"

	"github.com/openmirror/mirrorbox/internal/mirror"
	"github.com/openmirror/mirrorbox/internal/store"
)

const DefaultAddr = "127.0.0.1:7070"

type Config struct {
	HTTP   HTTPConfig     `mapstructure:"http"`
	S3     store.S3Config `mapstructure:"s3"`
	Mirror mirror.Config  `mapstructure:"mirror"`
	DBPath string         `mapstructure:"db_path"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if err := c.S3.Validate(); err != nil {
		return fmt.Errorf("s3: %w", err)
	}
	if err := c.Mirror.Validate(); err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path required")
	}
	return nil
}
