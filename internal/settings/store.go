/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const recordID = 1

// Record is the single persisted settings row.
type Record struct {
	ID                 uint `gorm:"primaryKey"`
	BaudRate           int
	BellDurationMs     int
	BellEnabled        bool
	AutoConnectEnabled bool
	UpdatedAt          time.Time
}

// TableName pins the table name.
func (Record) TableName() string { return "bell_settings" }

func (r Record) settings() Settings {
	return Settings{
		BaudRate:           r.BaudRate,
		BellDurationMs:     r.BellDurationMs,
		BellEnabled:        r.BellEnabled,
		AutoConnectEnabled: r.AutoConnectEnabled,
	}
}

func recordFrom(s Settings) Record {
	return Record{
		ID:                 recordID,
		BaudRate:           s.BaudRate,
		BellDurationMs:     s.BellDurationMs,
		BellEnabled:        s.BellEnabled,
		AutoConnectEnabled: s.AutoConnectEnabled,
	}
}

// Store keeps settings in memory and, when a database is given, in the
// bell_settings table. Observers run after every successful change.
type Store struct {
	db       *gorm.DB
	defaults Settings
	logger   zerolog.Logger

	mu        sync.RWMutex
	current   Settings
	observers map[int]func(Settings)
	nextObs   int
}

// NewStore loads the persisted row, seeding it with defaults on first run.
// A nil db keeps settings in memory only.
func NewStore(ctx context.Context, db *gorm.DB, defaults Settings, logger zerolog.Logger) (*Store, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		db:        db,
		defaults:  defaults,
		current:   defaults,
		observers: make(map[int]func(Settings)),
		logger:    logger.With().Str("component", "settings").Logger(),
	}
	if db == nil {
		return s, nil
	}

	var rec Record
	err := db.WithContext(ctx).First(&rec, recordID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = recordFrom(defaults)
		if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
			return nil, fmt.Errorf("seed settings: %w", err)
		}
		s.logger.Info().Msg("seeded bell settings with defaults")
	case err != nil:
		return nil, fmt.Errorf("load settings: %w", err)
	default:
		loaded := rec.settings()
		if err := loaded.Validate(); err != nil {
			s.logger.Warn().Err(err).Msg("stored settings invalid, using defaults")
			loaded = defaults
		}
		s.current = loaded
	}
	return s, nil
}

// Current implements Provider.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates and persists a partial change.
func (s *Store) Update(ctx context.Context, p Patch) (Settings, error) {
	next := s.Current().Apply(p)
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	if err := s.save(ctx, next); err != nil {
		return Settings{}, err
	}
	return next, nil
}

// Reset restores defaults.
func (s *Store) Reset(ctx context.Context) (Settings, error) {
	if err := s.save(ctx, s.defaults); err != nil {
		return Settings{}, err
	}
	return s.defaults, nil
}

// Observe registers fn for later changes.
func (s *Store) Observe(fn func(Settings)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) save(ctx context.Context, next Settings) error {
	if s.db != nil {
		rec := recordFrom(next)
		if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}

	s.mu.Lock()
	s.current = next
	observers := make([]func(Settings), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	s.logger.Info().
		Int("baud_rate", next.BaudRate).
		Int("bell_duration_ms", next.BellDurationMs).
		Bool("bell_enabled", next.BellEnabled).
		Bool("auto_connect", next.AutoConnectEnabled).
		Msg("bell settings changed")

	for _, fn := range observers {
		fn(next)
	}
	return nil
}
