package dashboard

import "fmt"

// Config holds the HTTP listener settings for the dashboard API.
type Config struct {
	Listen string `json:"listen"`
	// JWTSecret guards the mutating endpoints. Empty leaves them open,
	// suitable only for a trusted home network.
	JWTSecret      string   `json:"jwt_secret"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
}

// Validate rejects unusable listener settings.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}
