package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"betterats/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets defines where to find secrets in Vault (KVv2 paths)
type VaultSecrets struct {
	// APIKeys points to a secret whose "keys" field holds a comma separated
	// list, e.g. "key1,key2,key3"
	APIKeys string `mapstructure:"apiKeys"`
	// GeminiKey points to a secret whose "api_key" field holds the key
	GeminiKey string `mapstructure:"geminiKey"`
}

// secretReader is the part of VaultClient used to apply secrets to the config.
type secretReader interface {
	GetStringSecret(path, key string) (string, error)
	GetStringSliceSecret(path, key string) ([]string, error)
}

// VaultClient wraps the Vault API client
type VaultClient struct {
	client *api.Client
	config VaultConfig
	logger *errors.Logger
}

// NewVaultClient creates a new Vault client from configuration. It returns
// nil without error when Vault is disabled.
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !config.Enabled {
		return nil, nil
	}

	vaultConfig := api.DefaultConfig()
	if config.Address != "" {
		vaultConfig.Address = config.Address
	}
	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	token, err := resolveVaultToken(config)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault at %s: %w", vaultConfig.Address, err)
	}
	if logger != nil {
		logger.Info("Connected to Vault",
			"address", vaultConfig.Address,
			"version", health.Version,
			"sealed", health.Sealed)
	}

	return &VaultClient{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// resolveVaultToken resolves the Vault token from config or file
func resolveVaultToken(config VaultConfig) (string, error) {
	token := config.Token

	if token == "" && config.TokenFile != "" {
		tokenBytes, err := os.ReadFile(config.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(tokenBytes))
	}

	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 retrieves a secret from a Vault KVv2 store.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	return parseKVv2(secret.Data, path)
}

// parseKVv2 splits a raw KVv2 response body into data and version.
func parseKVv2(raw map[string]any, path string) (*VaultSecret, error) {
	data, ok := raw["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	metadata, ok := raw["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	versionRaw, ok := metadata["version"]
	if !ok {
		return nil, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}
	version, err := parseVersionValue(versionRaw, path)
	if err != nil {
		return nil, err
	}
	return &VaultSecret{Data: data, Version: version}, nil
}

// parseVersionValue parses version value from various types
func parseVersionValue(versionRaw any, path string) (int64, error) {
	switch v := versionRaw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, versionRaw)
	}
}

// GetStringSecret retrieves a string value from a Vault secret
func (vc *VaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return "", err
	}
	return stringField(secret, path, key)
}

func stringField(secret *VaultSecret, path, key string) (string, error) {
	value, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}
	return strValue, nil
}

// GetStringSliceSecret retrieves a comma-separated string as a slice from Vault
func (vc *VaultClient) GetStringSliceSecret(path, key string) ([]string, error) {
	value, err := vc.GetStringSecret(path, key)
	if err != nil {
		return nil, err
	}
	return splitAndTrim(value), nil
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config
func ApplyVaultSecrets(config *Config, logger *errors.Logger) error {
	if !config.Vault.Enabled {
		return nil
	}

	client, err := NewVaultClient(config.Vault, logger)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to initialize vault client", err)
	}
	return applySecrets(client, config, logger)
}

func applySecrets(reader secretReader, config *Config, logger *errors.Logger) error {
	secrets := config.Vault.Secrets

	if secrets.APIKeys != "" {
		apiKeys, err := reader.GetStringSliceSecret(secrets.APIKeys, "keys")
		if err != nil {
			return fmt.Errorf("failed to load API keys from vault: %w", err)
		}
		if len(apiKeys) > 0 {
			config.Server.APIKeys = apiKeys
			if logger != nil {
				logger.Info("API keys loaded from Vault", "count", len(apiKeys))
			}
		} else if logger != nil {
			logger.Warn("No API keys found in Vault", "path", secrets.APIKeys)
		}
	}

	if secrets.GeminiKey != "" {
		geminiKey, err := reader.GetStringSecret(secrets.GeminiKey, "api_key")
		if err != nil {
			return fmt.Errorf("failed to load Gemini API key from vault: %w", err)
		}
		if geminiKey != "" {
			applyGeminiKeyToConfig(config, geminiKey)
			if logger != nil {
				logger.Info("Gemini API key loaded from Vault", "masked_value", maskSecret(geminiKey))
			}
		} else if logger != nil {
			logger.Warn("Empty Gemini API key found in Vault", "path", secrets.GeminiKey)
		}
	}

	return nil
}

// applyGeminiKeyToConfig sets the key globally and on every operation that
// does not carry its own
func applyGeminiKeyToConfig(config *Config, geminiKey string) {
	config.AI.APIKey = geminiKey
	if config.AI.CandidateData.APIKey == "" {
		config.AI.CandidateData.APIKey = geminiKey
	}
	if config.AI.Assessment.APIKey == "" {
		config.AI.Assessment.APIKey = geminiKey
	}
}

func maskSecret(value string) string {
	if len(value) > 8 {
		return value[:4] + "****" + value[len(value)-4:]
	}
	return "****"
}
