// Package secrets loads the payment processor credentials from the
// configured backend at startup. Production deployments keep the secret
// key in AWS Secrets Manager or Vault; the env backend exists for
// development.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/config"
)

// Source retrieves named secret values
type Source interface {
	Get(ctx context.Context, name string) (string, error)
}

// EnvSource passes through values already present in the loaded config.
// Development only.
type EnvSource struct {
	values map[string]string
}

// NewEnvSource creates a source over static values
func NewEnvSource(values map[string]string) *EnvSource {
	return &EnvSource{values: values}
}

// Get returns the named value
func (s *EnvSource) Get(_ context.Context, name string) (string, error) {
	v, ok := s.values[name]
	if !ok || v == "" {
		return "", fmt.Errorf("secret not found: %s", name)
	}
	return v, nil
}

// AWSSource reads a JSON secret blob from AWS Secrets Manager
type AWSSource struct {
	client     *secretsmanager.Client
	secretName string
	logger     *zap.Logger
}

// NewAWSSource creates a Secrets Manager source using the default
// credentials chain (IAM role in production)
func NewAWSSource(ctx context.Context, region, secretName string, logger *zap.Logger) (*AWSSource, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &AWSSource{
		client:     secretsmanager.NewFromConfig(awsCfg),
		secretName: secretName,
		logger:     logger,
	}, nil
}

// Get fetches the secret blob and returns the named key from it
func (s *AWSSource) Get(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &s.secretName,
	})
	if err != nil {
		return "", fmt.Errorf("get secret value: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", s.secretName)
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &values); err != nil {
		return "", fmt.Errorf("decode secret %s: %w", s.secretName, err)
	}

	v, ok := values[name]
	if !ok || v == "" {
		return "", fmt.Errorf("secret not found: %s", name)
	}

	s.logger.Debug("Loaded secret from AWS Secrets Manager", zap.String("key", name))
	return v, nil
}

// VaultSource reads from a Vault KV v2 path
type VaultSource struct {
	client *vault.Client
	path   string
	logger *zap.Logger
}

// NewVaultSource creates a Vault source using token authentication
func NewVaultSource(address, token, path string, logger *zap.Logger) (*VaultSource, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	client.SetToken(token)

	return &VaultSource{
		client: client,
		path:   path,
		logger: logger,
	}, nil
}

// Get reads the named key from the configured KV path
func (s *VaultSource) Get(ctx context.Context, name string) (string, error) {
	secret, err := s.client.Logical().ReadWithContext(ctx, s.path)
	if err != nil {
		return "", fmt.Errorf("read vault path %s: %w", s.path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault path %s is empty", s.path)
	}

	// KV v2 nests values under "data"
	data := secret.Data
	if nested, ok := secret.Data["data"].(map[string]interface{}); ok {
		data = nested
	}

	v, ok := data[name].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("secret not found: %s", name)
	}

	s.logger.Debug("Loaded secret from Vault", zap.String("key", name))
	return v, nil
}

// LoadProcessorSecrets fills the processor secret key from the
// configured backend. Called once at startup, before any component that
// talks to the processor is constructed.
func LoadProcessorSecrets(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var source Source
	var err error

	switch cfg.Secrets.Backend {
	case "env":
		source = NewEnvSource(map[string]string{
			"processor_secret_key": cfg.Processor.SecretKey,
		})
	case "aws":
		source, err = NewAWSSource(ctx, cfg.Secrets.AWSRegion, cfg.Secrets.AWSSecretName, logger)
	case "vault":
		source, err = NewVaultSource(cfg.Secrets.VaultAddress, cfg.Secrets.VaultToken, cfg.Secrets.VaultPath, logger)
	default:
		return fmt.Errorf("unknown secrets backend %q", cfg.Secrets.Backend)
	}
	if err != nil {
		return err
	}

	secretKey, err := source.Get(ctx, "processor_secret_key")
	if err != nil {
		return fmt.Errorf("load processor secret key: %w", err)
	}
	cfg.Processor.SecretKey = secretKey

	return nil
}
