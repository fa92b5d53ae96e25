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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// JSON and YAML files are supported; environment variables are substituted and an
// external csv_files_definition file, when set, replaces the inline files list.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".json":
		v.SetConfigType("json")
	default:
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)

	if err := cfg.loadFilesDefinition(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFilesDefinition reads a JSON array of file configs.
func LoadFilesDefinition(path string) ([]FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("csv_files_definition %q: %w", path, err)
	}
	var files []FileConfig
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("csv_files_definition %q: %w", path, err)
	}
	return files, nil
}

func (c *Config) loadFilesDefinition() error {
	if c.CSVFilesDefinition == "" {
		return nil
	}
	files, err := LoadFilesDefinition(c.CSVFilesDefinition)
	if err != nil {
		return err
	}
	c.Files = files
	return nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) {
	cfg.CSVFilesDefinition = expandEnvVar(cfg.CSVFilesDefinition)
	for i := range cfg.Files {
		cfg.Files[i].Path = expandEnvVar(cfg.Files[i].Path)
	}

	s3 := &cfg.Filesystem.S3
	s3.Region = expandEnvVar(s3.Region)
	s3.Profile = expandEnvVar(s3.Profile)
	s3.AccessKeyID = expandEnvVar(s3.AccessKeyID)
	s3.SecretAccessKey = expandEnvVar(s3.SecretAccessKey)
	s3.SessionToken = expandEnvVar(s3.SessionToken)
	s3.EndpointURL = expandEnvVar(s3.EndpointURL)
	cfg.Filesystem.GCS.CredentialsFile = expandEnvVar(cfg.Filesystem.GCS.CredentialsFile)

	cfg.Output.File = expandEnvVar(cfg.Output.File)
	cfg.Output.Dir = expandEnvVar(cfg.Output.Dir)
	cfg.Output.Postgres.DSN = expandEnvVar(cfg.Output.Postgres.DSN)
	cfg.Output.MongoDB.URI = expandEnvVar(cfg.Output.MongoDB.URI)

	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
	cfg.Metrics.Textfile = expandEnvVar(cfg.Metrics.Textfile)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat, outputType, metricsTextfile string, addMetadataColumns bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if outputType != "" {
		c.Output.Type = outputType
	}
	if metricsTextfile != "" {
		c.Metrics.Textfile = metricsTextfile
	}
	if addMetadataColumns {
		c.AddMetadataColumns = true
	}
}
