// Package gate decides who may submit videos and which preset their jobs use.
package gate

import (
	"context"
	"fmt"
	"log/slog"

	"clipper/internal/estimate"
	"clipper/internal/logging"
	"clipper/internal/services"
)

// Directory is the read side of the whitelist and settings store.
type Directory interface {
	IsAuthorized(ctx context.Context, userID int64) (bool, error)
	// PresetName returns "" when the user has not chosen a preset.
	PresetName(ctx context.Context, userID int64) (string, error)
}

// SettingsWriter persists a user's preset choice.
type SettingsWriter interface {
	SetPresetName(ctx context.Context, userID int64, name string) error
}

// Gate wraps a Directory with the preset table.
type Gate struct {
	dir    Directory
	table  *estimate.Table
	logger *slog.Logger
}

// New constructs a Gate.
func New(dir Directory, table *estimate.Table, logger *slog.Logger) *Gate {
	return &Gate{dir: dir, table: table, logger: logging.NewComponentLogger(logger, "gate")}
}

// Authorize reports whether userID may submit. Store errors deny access.
func (g *Gate) Authorize(ctx context.Context, userID int64) bool {
	ok, err := g.dir.IsAuthorized(ctx, userID)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, g.logger), "whitelist lookup failed", "whitelist_lookup_failed",
			logging.Int64(logging.FieldRequesterID, userID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the store backend"),
			logging.String(logging.FieldImpact, "request denied"),
		)
		return false
	}
	return ok
}

// CurrentPreset returns the user's preset, falling back to the default when
// unset, unknown or unreadable.
func (g *Gate) CurrentPreset(ctx context.Context, userID int64) estimate.Preset {
	name, err := g.dir.PresetName(ctx, userID)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, g.logger), "preset lookup failed", "preset_lookup_failed",
			logging.Int64(logging.FieldRequesterID, userID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "default preset used"),
		)
		return g.table.Default()
	}
	if name == "" {
		return g.table.Default()
	}
	preset, ok := g.table.Lookup(name)
	if !ok {
		g.logger.Info("stored preset no longer configured",
			logging.Int64(logging.FieldRequesterID, userID),
			logging.String("preset", name),
		)
		return g.table.Default()
	}
	return preset
}

// SetPreset validates and stores a preset choice.
func (g *Gate) SetPreset(ctx context.Context, userID int64, name string) (estimate.Preset, error) {
	preset, ok := g.table.Lookup(name)
	if !ok {
		return estimate.Preset{}, services.Wrap(services.ErrValidation, "settings", "set preset", fmt.Sprintf("unknown preset %q", name), nil)
	}
	writer, ok := g.dir.(SettingsWriter)
	if !ok {
		return estimate.Preset{}, services.Wrap(services.ErrConfiguration, "settings", "set preset", "store is read-only", nil)
	}
	if err := writer.SetPresetName(ctx, userID, preset.Name); err != nil {
		return estimate.Preset{}, services.Wrap(services.ErrTransient, "settings", "set preset", "store write failed", err)
	}
	return preset, nil
}

// Presets exposes the preset table for settings menus.
func (g *Gate) Presets() []estimate.Preset {
	return g.table.Presets()
}
