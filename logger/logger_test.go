//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of tapcsv.
//
// tapcsv is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// tapcsv is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with tapcsv. If not, see https://www.gnu.org/licenses/.

package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aaronlmathis/tapcsv/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"", "info"},
		{"warn", "warn"},
		{"error", "error"},
		{"unknown", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input).String())
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.LoggingConfig
	}{
		{"json format info level", &config.LoggingConfig{Level: "info", Format: "json", Output: "stderr"}},
		{"text format debug level", &config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}},
		{"defaults", &config.LoggingConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, log)
			log.Info("test message")
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tapcsv.log")

	log, err := New(&config.LoggingConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	log.WithStream("customers").Infow("synced", "records", 3)
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stream":"customers"`)
	assert.Contains(t, string(data), `"records":3`)
}

func TestNew_FileOutputUnwritable(t *testing.T) {
	_, err := New(&config.LoggingConfig{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}

func TestContextMethods(t *testing.T) {
	obsCore, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(obsCore))

	log.WithStream("orders").WithFile("/data/orders/a.csv").Warn("skipped")
	log.WithFields(map[string]interface{}{"rows": 2}).Debug("decoded")

	entries := logs.All()
	require.Len(t, entries, 2)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "orders", ctx["stream"])
	assert.Equal(t, "/data/orders/a.csv", ctx["file"])
	assert.Equal(t, int64(2), entries[1].ContextMap()["rows"])
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.Info("discarded")
	assert.NoError(t, log.Sync())
}
