// Package guildconfig keeps the per-guild role tiers and channel settings.
//
// The whole settings document is cached in memory and rewritten to the storage
// backend on every change. A change is only applied to the cache after the
// backend accepted the new document.
package guildconfig

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/sentinel/internal/storage"
	"go.uber.org/zap"
)

var (
	// ErrPersist is returned when the settings document could not be written.
	ErrPersist = errors.New("failed to persist guild settings")
	// ErrCorruptDocument is returned when the stored document cannot be decoded.
	ErrCorruptDocument = errors.New("guild settings document is corrupt")
)

// Store is the in-memory view of the settings document.
type Store struct {
	mu      sync.Mutex
	guilds  map[string]*GuildAuthConfig
	backend storage.Backend
	logger  *zap.Logger
}

// NewStore loads the document from backend. A missing document is created
// as an empty object.
func NewStore(ctx context.Context, backend storage.Backend, logger *zap.Logger) (*Store, error) {
	s := &Store{
		guilds:  make(map[string]*GuildAuthConfig),
		backend: backend,
		logger:  logger.Named("guild_config"),
	}

	data, err := backend.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotExist):
		if err := s.persist(ctx, s.guilds); err != nil {
			return nil, err
		}

		s.logger.Info("Created empty guild settings document", zap.String("backend", backend.Name()))

		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load guild settings: %w", err)
	}

	guilds, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptDocument, err)
	}
	s.guilds = guilds

	s.logger.Info("Loaded guild settings",
		zap.String("backend", backend.Name()),
		zap.Int("guilds", len(s.guilds)))

	return s, nil
}

// Get returns a copy of the guild's configuration. An entry is created in
// memory when the guild has none; it is persisted with the next change.
func (s *Store) Get(guildID snowflake.ID) *GuildAuthConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := guildID.String()

	cfg, ok := s.guilds[key]
	if !ok {
		cfg = NewGuildAuthConfig()
		s.guilds[key] = cfg
	}

	return cfg.Clone()
}

// Snapshot returns a copy of every guild configuration keyed by guild id.
func (s *Store) Snapshot() map[string]*GuildAuthConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*GuildAuthConfig, len(s.guilds))
	for key, cfg := range s.guilds {
		out[key] = cfg.Clone()
	}

	return out
}

// SetRoleIDs replaces the role set selected by field.
func (s *Store) SetRoleIDs(ctx context.Context, guildID snowflake.ID, field RoleField, ids []snowflake.ID) error {
	_, err := s.update(ctx, guildID, func(cfg *GuildAuthConfig) bool {
		*cfg.roleSet(field) = dedupe(ids)
		return true
	})

	return err
}

// AddRoleID appends roleID to the role set unless it is already present.
// It reports whether the set changed.
func (s *Store) AddRoleID(ctx context.Context, guildID snowflake.ID, field RoleField, roleID snowflake.ID) (bool, error) {
	return s.update(ctx, guildID, func(cfg *GuildAuthConfig) bool {
		set := cfg.roleSet(field)
		if slices.Contains(*set, roleID) {
			return false
		}

		*set = append(*set, roleID)

		return true
	})
}

// RemoveRoleID removes roleID from the role set. It reports whether the
// id was present.
func (s *Store) RemoveRoleID(ctx context.Context, guildID snowflake.ID, field RoleField, roleID snowflake.ID) (bool, error) {
	return s.update(ctx, guildID, func(cfg *GuildAuthConfig) bool {
		set := cfg.roleSet(field)

		idx := slices.Index(*set, roleID)
		if idx < 0 {
			return false
		}

		*set = slices.Delete(*set, idx, idx+1)

		return true
	})
}

// SetChannelID sets the channel selected by field.
func (s *Store) SetChannelID(ctx context.Context, guildID snowflake.ID, field ChannelField, channelID snowflake.ID) error {
	_, err := s.update(ctx, guildID, func(cfg *GuildAuthConfig) bool {
		*cfg.channelSlot(field) = &channelID
		return true
	})

	return err
}

// ClearChannelID unsets the channel selected by field. It reports whether a
// channel was set.
func (s *Store) ClearChannelID(ctx context.Context, guildID snowflake.ID, field ChannelField) (bool, error) {
	return s.update(ctx, guildID, func(cfg *GuildAuthConfig) bool {
		slot := cfg.channelSlot(field)
		if *slot == nil {
			return false
		}

		*slot = nil

		return true
	})
}

// SetAutoRoleID sets the role granted to joining members.
func (s *Store) SetAutoRoleID(ctx context.Context, guildID, roleID snowflake.ID) error {
	_, err := s.update(ctx, guildID, func(cfg *GuildAuthConfig) bool {
		cfg.AutoRoleID = &roleID
		return true
	})

	return err
}

// ClearAutoRoleID unsets the auto role. It reports whether one was set.
func (s *Store) ClearAutoRoleID(ctx context.Context, guildID snowflake.ID) (bool, error) {
	return s.update(ctx, guildID, func(cfg *GuildAuthConfig) bool {
		if cfg.AutoRoleID == nil {
			return false
		}

		cfg.AutoRoleID = nil

		return true
	})
}

// Reset removes the guild's entry. It reports whether anything was configured.
func (s *Store) Reset(ctx context.Context, guildID snowflake.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := guildID.String()

	cfg, ok := s.guilds[key]
	if !ok {
		return false, nil
	}

	next := maps.Clone(s.guilds)
	delete(next, key)

	if err := s.persist(ctx, next); err != nil {
		return false, err
	}

	s.guilds = next
	s.logger.Info("Reset guild settings", zap.Uint64("guild_id", uint64(guildID)))

	return !cfg.IsZero(), nil
}

// update applies change to a copy of the guild's entry and persists the
// resulting document when change reports a modification. The lock is held
// across the write so concurrent mutators never interleave.
func (s *Store) update(ctx context.Context, guildID snowflake.ID, change func(cfg *GuildAuthConfig) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := guildID.String()
	cfg := s.guilds[key].Clone()

	if !change(cfg) {
		return false, nil
	}

	next := maps.Clone(s.guilds)
	next[key] = cfg

	if err := s.persist(ctx, next); err != nil {
		return false, err
	}

	s.guilds = next

	return true, nil
}

// persist encodes guilds and writes the whole document.
func (s *Store) persist(ctx context.Context, guilds map[string]*GuildAuthConfig) error {
	data, err := sonic.ConfigStd.MarshalIndent(guilds, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	if err := s.backend.Save(ctx, data); err != nil {
		s.logger.Error("Failed to save guild settings",
			zap.String("backend", s.backend.Name()),
			zap.Error(err))

		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	return nil
}

func dedupe(ids []snowflake.ID) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}

	return out
}
