package codearchive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/BotPilotHQ/botpilot/app/models"
)

// Client archives bot code snapshots to S3-compatible storage. Every
// successful deploy stores the exact code that went to the runner, so a
// user can recover an earlier version of their bot.
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewClient creates a new code archive client
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("code archive is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	client := &Client{
		s3Client: s3Client,
		config:   cfg,
	}

	log.Infof("[CodeArchive] Initialized S3 client for bucket: %s", cfg.GetBucketName())
	return client, nil
}

// ArchiveBot stores a snapshot of the bot's current code. Returns the
// object key of the stored snapshot.
func (c *Client) ArchiveBot(ctx context.Context, bot *models.Bot) (string, error) {
	deployedAt := time.Now()
	if bot.LastDeployedAt != nil {
		deployedAt = *bot.LastDeployedAt
	}
	objectKey := c.config.GetObjectKey(bot.UUID, deployedAt.Year(), int(deployedAt.Month()), deployedAt.Unix())

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.GetBucketName()),
		Key:           aws.String(objectKey),
		Body:          strings.NewReader(bot.Code),
		ContentType:   aws.String("text/plain; charset=utf-8"),
		ContentLength: aws.Int64(int64(len(bot.Code))),
		Metadata: map[string]string{
			"bot-uuid":      bot.UUID,
			"upload-source": "botpilot-codearchive",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive code for bot %s: %w", bot.UUID, err)
	}

	log.Infof("[CodeArchive] Archived code snapshot: s3://%s/%s", c.config.GetBucketName(), objectKey)
	return objectKey, nil
}

// FetchSnapshot downloads one archived code snapshot.
func (c *Client) FetchSnapshot(ctx context.Context, objectKey string) (string, error) {
	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.config.GetBucketName()),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch snapshot %s: %w", objectKey, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot %s: %w", objectKey, err)
	}
	return string(data), nil
}

// ListSnapshots lists the archived snapshot keys for one bot, newest last.
func (c *Client) ListSnapshots(ctx context.Context, botUUID string) ([]string, error) {
	var keys []string
	var continuation *string

	for {
		out, err := c.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.config.GetBucketName()),
			Prefix:            aws.String("bots/"),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots for bot %s: %w", botUUID, err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil && strings.Contains(*obj.Key, "/"+botUUID+"/") {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuation = out.NextContinuationToken
	}
	return keys, nil
}

// DeleteSnapshots removes all archived snapshots of one bot. Called when
// the bot is deleted.
func (c *Client) DeleteSnapshots(ctx context.Context, botUUID string) error {
	keys, err := c.ListSnapshots(ctx, botUUID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.config.GetBucketName()),
			Key:    aws.String(key),
		}); err != nil {
			return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
		}
	}
	return nil
}
