/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/schoolbell/internal/config"
	"github.com/friendsincode/schoolbell/internal/settings"
)

func TestConnectMigrateAndSeed(t *testing.T) {
	cfg := &config.Config{
		Environment: "production",
		DBBackend:   config.DatabaseSQLite,
		DBDSN:       filepath.Join(t.TempDir(), "schoolbell.db"),
	}
	database, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = Close(database) })

	if err := Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !database.Migrator().HasTable("bell_settings") {
		t.Fatal("bell_settings table missing")
	}

	store, err := settings.NewStore(context.Background(), database, settings.Defaults(), zerolog.Nop())
	if err != nil {
		t.Fatalf("settings store: %v", err)
	}
	if store.Current() != settings.Defaults() {
		t.Fatalf("seeded settings = %+v", store.Current())
	}
	UpdateConnectionMetrics(database)
}

func TestDialectorRejectsUnknownBackend(t *testing.T) {
	if _, err := Dialector("oracle", "dsn"); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
	for _, b := range []config.DatabaseBackend{config.DatabaseSQLite, config.DatabasePostgres, config.DatabaseMySQL} {
		if _, err := Dialector(b, "dsn"); err != nil {
			t.Errorf("Dialector(%s): %v", b, err)
		}
	}
}
