// Package vault stores payment processor credentials in HashiCorp Vault,
// with a config-file fallback for development.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"gig-marketplace/config"
)

// GatewayCredentials is the processor credential set stored in Vault
type GatewayCredentials struct {
	SecretKey     string `json:"secret_key"`
	WebhookSecret string `json:"webhook_secret"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu     sync.RWMutex
	cached *GatewayCredentials
}

// NewClient creates a new Vault client. With vault disabled the client only
// serves credentials seeded via StoreGatewayCredentials.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// StoreGatewayCredentials writes the processor credentials to Vault
func (c *Client) StoreGatewayCredentials(ctx context.Context, creds GatewayCredentials) error {
	if !c.config.Enabled {
		c.mu.Lock()
		c.cached = &creds
		c.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"secret_key":     creds.SecretKey,
			"webhook_secret": creds.WebhookSecret,
		},
	}

	_, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(), secretData)
	if err != nil {
		return fmt.Errorf("failed to store gateway credentials in vault: %w", err)
	}

	c.mu.Lock()
	c.cached = &creds
	c.mu.Unlock()

	return nil
}

// GetGatewayCredentials retrieves the processor credentials, serving from the
// in-process cache after the first read
func (c *Client) GetGatewayCredentials(ctx context.Context) (*GatewayCredentials, error) {
	c.mu.RLock()
	if c.cached != nil {
		defer c.mu.RUnlock()
		return c.cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("gateway credentials not found and vault is disabled")
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway credentials from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("gateway credentials not found")
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	creds := &GatewayCredentials{
		SecretKey:     getString(data, "secret_key"),
		WebhookSecret: getString(data, "webhook_secret"),
	}

	c.mu.Lock()
	c.cached = creds
	c.mu.Unlock()

	return creds, nil
}

// InvalidateCache drops the cached credentials, forcing a Vault re-read on
// the next lookup. Used after rotation.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// HealthCheck verifies Vault connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !health.Initialized || health.Sealed {
		return fmt.Errorf("vault not ready: initialized=%v sealed=%v", health.Initialized, health.Sealed)
	}

	return nil
}

func (c *Client) secretPath() string {
	mount := c.config.MountPath
	if mount == "" {
		mount = "secret"
	}
	path := c.config.SecretPath
	if path == "" {
		path = "payments/stripe"
	}
	return fmt.Sprintf("%s/data/%s", mount, path)
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
