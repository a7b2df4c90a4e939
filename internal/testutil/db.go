// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"mesh_manager/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database private to t.
// The pool is pinned to one connection so every query sees the same memory
// database; code under test must only use the tx handle inside transactions.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=private&_pragma=foreign_keys(1)", name)

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := gdb.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return gdb
}

// SeedFirmware inserts a firmware row with a zero-filled payload of size bytes
func SeedFirmware(t testing.TB, gdb *gorm.DB, nodeType, version string, size int) *model.Firmware {
	t.Helper()

	fw := &model.Firmware{
		NodeType:   nodeType,
		Version:    version,
		Hardware:   model.DefaultHardware,
		Filename:   fmt.Sprintf("%s_%s.bin", nodeType, version),
		SizeBytes:  int64(size),
		MD5Hash:    "d41d8cd98f00b204e9800998ecf8427e",
		BinaryData: make([]byte, size),
	}
	if err := gdb.Create(fw).Error; err != nil {
		t.Fatalf("failed to seed firmware: %v", err)
	}
	return fw
}

// Logger returns a logger that discards output
func Logger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
