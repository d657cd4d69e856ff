package config

import (
	"fmt"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

const redacted = "<redacted>"

// Redacted returns a copy safe to print: credentials are masked and slices
// are not shared with c.
func (c *Config) Redacted() Config {
	out := *c
	if out.Telegram.BotToken != "" {
		out.Telegram.BotToken = redacted
	}
	if out.Store.RedisPassword != "" {
		out.Store.RedisPassword = redacted
	}
	out.Encoding.Presets = slices.Clone(c.Encoding.Presets)
	out.Access.SeedUsers = slices.Clone(c.Access.SeedUsers)
	return out
}

// MarshalRedacted renders the effective configuration as TOML.
func (c *Config) MarshalRedacted() ([]byte, error) {
	data, err := toml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
