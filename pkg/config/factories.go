package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"fshuttle/internal/logger"
	"fshuttle/internal/processor"
	"fshuttle/pkg/store"
	storeFs "fshuttle/pkg/store/fs"
	storeMemory "fshuttle/pkg/store/memory"
	storeS3 "fshuttle/pkg/store/s3"
)

// CreateStore builds the file store selected by cfg.Type, decoding the
// matching type-specific section.
func CreateStore(ctx context.Context, cfg *StorageConfig) (store.Store, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemStore(ctx, cfg.Filesystem)
	case "memory":
		return createMemoryStore(ctx, cfg.Memory)
	case "s3":
		return createS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

func createFilesystemStore(ctx context.Context, options map[string]any) (store.Store, error) {
	type filesystemOptions struct {
		Root string `mapstructure:"root"`
	}

	var opts filesystemOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem storage config: %w", err)
	}
	if opts.Root == "" {
		opts.Root = DefaultStorageRoot
	}

	st, err := storeFs.New(ctx, opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem store: %w", err)
	}
	return st, nil
}

func createMemoryStore(ctx context.Context, options map[string]any) (store.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type memoryOptions struct {
		MaxBytes uint64 `mapstructure:"max_bytes"`
	}

	var opts memoryOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode memory storage config: %w", err)
	}

	return storeMemory.New(opts.MaxBytes), nil
}

func createS3Store(ctx context.Context, options map[string]any) (store.Store, error) {
	type s3Options struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var opts s3Options
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode s3 storage config: %w", err)
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("s3 storage: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	// Custom endpoint covers MinIO, Localstack and friends.
	if opts.Endpoint != "" {
		//nolint:staticcheck // pending migration to BaseEndpoint
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // pending migration to BaseEndpoint
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // pending migration to BaseEndpoint
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials when given, default chain otherwise.
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, opts.SecretAccessKey, "")
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		// Path-style addressing for S3-compatible endpoints.
		if opts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	st, err := storeS3.New(ctx, storeS3.Config{
		Client: client,
		Bucket: opts.Bucket,
		Prefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 store: %w", err)
	}

	logger.Info("s3 store initialized: bucket=%s region=%s prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)

	return st, nil
}

// CreateExecutor builds the command executor selected by cfg.Executor.
func CreateExecutor(cfg *ProcessorConfig) (processor.Executor, error) {
	switch cfg.Executor {
	case "inline":
		return processor.NewInline(), nil
	case "pool":
		return processor.NewPool(cfg.Workers, cfg.QueueSize), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %q", cfg.Executor)
	}
}

// CreateStager builds the upload stager selected by cfg.Staging.
func CreateStager(cfg *ProcessorConfig) (processor.Stager, error) {
	switch cfg.Staging {
	case "memory":
		return processor.NewMemoryStager(), nil
	case "disk":
		stager, err := processor.NewDiskStager(cfg.StagingDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk stager: %w", err)
		}
		return stager, nil
	default:
		return nil, fmt.Errorf("unknown staging type: %q", cfg.Staging)
	}
}
