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

// Package config provides configuration structures and loading for tapcsv.
package config

// Config represents the complete tap configuration.
type Config struct {
	Files              []FileConfig     `yaml:"files" mapstructure:"files"`
	CSVFilesDefinition string           `yaml:"csv_files_definition" mapstructure:"csv_files_definition"`
	AddMetadataColumns bool             `yaml:"add_metadata_columns" mapstructure:"add_metadata_columns"`
	Filesystem         FilesystemConfig `yaml:"filesystem" mapstructure:"filesystem"`
	Output             OutputConfig     `yaml:"output" mapstructure:"output"`
	Logging            LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Metrics            MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
}

// FileConfig is the per-stream configuration. One FileConfig produces one stream.
type FileConfig struct {
	Entity           string   `json:"entity" yaml:"entity" mapstructure:"entity"`
	Path             string   `json:"path" yaml:"path" mapstructure:"path"`
	Keys             []string `json:"keys" yaml:"keys" mapstructure:"keys"`
	Encoding         string   `json:"encoding,omitempty" yaml:"encoding" mapstructure:"encoding"`
	Delimiter        string   `json:"delimiter,omitempty" yaml:"delimiter" mapstructure:"delimiter"`
	DoubleQuote      *bool    `json:"doublequote,omitempty" yaml:"doublequote" mapstructure:"doublequote"`
	EscapeChar       string   `json:"escapechar,omitempty" yaml:"escapechar" mapstructure:"escapechar"`
	QuoteChar        string   `json:"quotechar,omitempty" yaml:"quotechar" mapstructure:"quotechar"`
	SkipInitialSpace bool     `json:"skipinitialspace,omitempty" yaml:"skipinitialspace" mapstructure:"skipinitialspace"`
	Strict           bool     `json:"strict,omitempty" yaml:"strict" mapstructure:"strict"`
}

// Default dialect and encoding values for a FileConfig.
const (
	DefaultEncoding  = "utf-8"
	DefaultDelimiter = ","
	DefaultQuoteChar = `"`
)

// WithDefaults returns a copy with unset dialect fields filled in.
// The returned value shares no slices or pointers with the receiver.
func (f FileConfig) WithDefaults() FileConfig {
	out := f
	out.Keys = append([]string{}, f.Keys...)
	if out.Encoding == "" {
		out.Encoding = DefaultEncoding
	}
	if out.Delimiter == "" {
		out.Delimiter = DefaultDelimiter
	}
	if out.QuoteChar == "" {
		out.QuoteChar = DefaultQuoteChar
	}
	doubleQuote := true
	if f.DoubleQuote != nil {
		doubleQuote = *f.DoubleQuote
	}
	out.DoubleQuote = &doubleQuote
	return out
}

// FilesystemConfig selects where stream paths are resolved.
type FilesystemConfig struct {
	Protocol string    `yaml:"protocol" mapstructure:"protocol"` // local, s3, gcs
	S3       S3Config  `yaml:"s3" mapstructure:"s3"`
	GCS      GCSConfig `yaml:"gcs" mapstructure:"gcs"`
}

// S3Config holds Amazon S3 (or S3-compatible) connection settings.
type S3Config struct {
	Region          string `yaml:"region" mapstructure:"region"`
	Profile         string `yaml:"profile" mapstructure:"profile"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken    string `yaml:"session_token" mapstructure:"session_token"`
	EndpointURL     string `yaml:"endpoint_url" mapstructure:"endpoint_url"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// GCSConfig holds Google Cloud Storage connection settings.
type GCSConfig struct {
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	Anonymous       bool   `yaml:"anonymous" mapstructure:"anonymous"` // public buckets and emulators
}

// OutputConfig selects the sink records are loaded into.
type OutputConfig struct {
	Type     string               `yaml:"type" mapstructure:"type"` // singer, csv, parquet, postgres, mongodb
	File     string               `yaml:"file" mapstructure:"file"` // singer: file instead of stdout
	Dir      string               `yaml:"dir" mapstructure:"dir"`   // csv, parquet: one file per stream
	Parquet  ParquetOutputConfig  `yaml:"parquet" mapstructure:"parquet"`
	Postgres PostgresOutputConfig `yaml:"postgres" mapstructure:"postgres"`
	MongoDB  MongoOutputConfig    `yaml:"mongodb" mapstructure:"mongodb"`
}

// ParquetOutputConfig configures the Parquet sink.
type ParquetOutputConfig struct {
	Compression string `yaml:"compression" mapstructure:"compression"` // snappy, gzip, zstd, none
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// PostgresOutputConfig configures the PostgreSQL sink.
type PostgresOutputConfig struct {
	DSN         string `yaml:"dsn" mapstructure:"dsn"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
	CreateTable bool   `yaml:"create_table" mapstructure:"create_table"`
	Truncate    bool   `yaml:"truncate" mapstructure:"truncate"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// MongoOutputConfig configures the MongoDB sink.
type MongoOutputConfig struct {
	URI       string `yaml:"uri" mapstructure:"uri"`
	Database  string `yaml:"database" mapstructure:"database"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stderr, stdout, or file path
}

// MetricsConfig represents run metrics export settings.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"` // Prometheus textfile path, empty disables export
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Filesystem: FilesystemConfig{
			Protocol: "local",
		},
		Output: OutputConfig{
			Type: "singer",
			Parquet: ParquetOutputConfig{
				Compression: "snappy",
				BatchSize:   1000,
			},
			Postgres: PostgresOutputConfig{
				Schema:      "public",
				CreateTable: true,
				BatchSize:   1000,
			},
			MongoDB: MongoOutputConfig{
				BatchSize: 1000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
