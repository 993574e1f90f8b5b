package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/greenfoldhq/greenfold/app/models"
)

// ErrDisabled is returned when the report archive is not configured.
var ErrDisabled = errors.New("report archive is disabled")

// Client wraps the S3 client with report-archive functionality
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewClientFromEnv creates an archive client from environment configuration.
func NewClientFromEnv(ctx context.Context) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, cfg)
}

// NewClient creates a new archive client
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, ErrDisabled
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
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
			// S3-compatible services need path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	return &Client{s3Client: s3Client, config: cfg}, nil
}

// reportSnapshot is the JSON document stored per published report.
type reportSnapshot struct {
	Organization struct {
		UUID string `json:"uuid"`
		Name string `json:"name"`
	} `json:"organization"`
	Report struct {
		UUID            string     `json:"uuid"`
		Title           string     `json:"title"`
		Framework       string     `json:"framework"`
		ReportingPeriod string     `json:"reporting_period"`
		PublishedAt     *time.Time `json:"published_at"`
	} `json:"report"`
	Sections   []models.ReportSection `json:"sections"`
	ArchivedAt time.Time              `json:"archived_at"`
}

// StoreReportSnapshot uploads an immutable JSON snapshot of a published
// report and returns the object key.
func (c *Client) StoreReportSnapshot(ctx context.Context, org *models.Organization, report *models.Report, sections []models.ReportSection) (string, error) {
	snapshot := reportSnapshot{ArchivedAt: time.Now().UTC()}
	snapshot.Organization.UUID = org.UUID
	snapshot.Organization.Name = org.Name
	snapshot.Report.UUID = report.UUID
	snapshot.Report.Title = report.Title
	snapshot.Report.Framework = report.Framework.Code
	snapshot.Report.ReportingPeriod = report.ReportingPeriod
	snapshot.Report.PublishedAt = report.PublishedAt
	snapshot.Sections = sections

	body, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report snapshot: %w", err)
	}

	key := c.config.GetObjectKey(org.UUID, report.UUID, snapshot.ArchivedAt)
	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata: map[string]string{
			"organization-uuid": org.UUID,
			"report-uuid":       report.UUID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report snapshot: %w", err)
	}

	return key, nil
}
