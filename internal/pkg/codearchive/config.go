package codearchive

import (
	"errors"
	"fmt"

	"github.com/BotPilotHQ/botpilot/internal/pkg/env"
)

// Config holds code archive configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads code archive configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("CODE_ARCHIVE_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("CODE_ARCHIVE_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("CODE_ARCHIVE_REGION", "us-east-1"),
		BucketName:      env.GetEnv("CODE_ARCHIVE_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("CODE_ARCHIVE_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("CODE_ARCHIVE_ENABLED", "false") == "true",
	}

	// Validate required fields if the archive is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("CODE_ARCHIVE_ACCESS_KEY_ID is required when the code archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("CODE_ARCHIVE_SECRET_ACCESS_KEY is required when the code archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("CODE_ARCHIVE_BUCKET_NAME is required when the code archive is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the code archive is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey generates a standardized object key for a bot code snapshot.
// Format: bots/YYYY/MM/UUID/UNIX.txt
func (c *Config) GetObjectKey(botUUID string, year, month int, deployedAtUnix int64) string {
	return fmt.Sprintf("bots/%04d/%02d/%s/%d.txt", year, month, botUUID, deployedAtUnix)
}

// GetBucketName returns the bucket name as configured
func (c *Config) GetBucketName() string {
	return c.BucketName
}
