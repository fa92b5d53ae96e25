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
	"strings"
	"unicode/utf8"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if len(c.Files) == 0 {
		errors = append(errors, ValidationError{
			Field:   "files",
			Message: "at least one file definition is required (inline or via csv_files_definition)",
		})
	}

	seen := make(map[string]bool, len(c.Files))
	for i, f := range c.Files {
		prefix := fmt.Sprintf("files[%d]", i)
		if f.Entity != "" {
			prefix = fmt.Sprintf("files[%s]", f.Entity)
			if seen[f.Entity] {
				errors = append(errors, ValidationError{
					Field:   prefix + ".entity",
					Message: "duplicate entity name",
				})
			}
			seen[f.Entity] = true
		}
		errors = append(errors, validateFile(prefix, &f)...)
	}

	errors = append(errors, c.validateFilesystem()...)
	errors = append(errors, c.validateOutput()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func validateFile(prefix string, f *FileConfig) ValidationErrors {
	var errors ValidationErrors

	if f.Entity == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".entity",
			Message: "entity is required",
		})
	}
	if f.Path == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".path",
			Message: "path is required",
		})
	}
	if f.Delimiter != "" && utf8.RuneCountInString(f.Delimiter) != 1 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".delimiter",
			Message: fmt.Sprintf("must be a single character, got %q", f.Delimiter),
		})
	}
	if f.QuoteChar != "" && utf8.RuneCountInString(f.QuoteChar) != 1 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".quotechar",
			Message: fmt.Sprintf("must be a single character, got %q", f.QuoteChar),
		})
	}
	if f.EscapeChar != "" && utf8.RuneCountInString(f.EscapeChar) != 1 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".escapechar",
			Message: fmt.Sprintf("must be a single character, got %q", f.EscapeChar),
		})
	}
	if f.Delimiter != "" && f.Delimiter == f.QuoteChar {
		errors = append(errors, ValidationError{
			Field:   prefix + ".quotechar",
			Message: "must differ from delimiter",
		})
	}
	for j, key := range f.Keys {
		if key == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.keys[%d]", prefix, j),
				Message: "key name must not be empty",
			})
		}
	}

	return errors
}

func (c *Config) validateFilesystem() ValidationErrors {
	var errors ValidationErrors

	switch c.Filesystem.Protocol {
	case "local", "s3", "gcs":
	default:
		errors = append(errors, ValidationError{
			Field:   "filesystem.protocol",
			Message: fmt.Sprintf("must be one of local, s3, gcs, got %q", c.Filesystem.Protocol),
		})
	}

	s3 := c.Filesystem.S3
	if (s3.AccessKeyID == "") != (s3.SecretAccessKey == "") {
		errors = append(errors, ValidationError{
			Field:   "filesystem.s3",
			Message: "access_key_id and secret_access_key must be set together",
		})
	}

	return errors
}

func (c *Config) validateOutput() ValidationErrors {
	var errors ValidationErrors
	out := c.Output

	switch out.Type {
	case "singer":
	case "csv", "parquet":
		if out.Dir == "" {
			errors = append(errors, ValidationError{
				Field:   "output.dir",
				Message: fmt.Sprintf("dir is required for %s output", out.Type),
			})
		}
	case "postgres":
		if out.Postgres.DSN == "" {
			errors = append(errors, ValidationError{
				Field:   "output.postgres.dsn",
				Message: "dsn is required for postgres output",
			})
		}
		if out.Postgres.BatchSize <= 0 {
			errors = append(errors, ValidationError{
				Field:   "output.postgres.batch_size",
				Message: "must be positive",
			})
		}
	case "mongodb":
		if out.MongoDB.URI == "" {
			errors = append(errors, ValidationError{
				Field:   "output.mongodb.uri",
				Message: "uri is required for mongodb output",
			})
		}
		if out.MongoDB.Database == "" {
			errors = append(errors, ValidationError{
				Field:   "output.mongodb.database",
				Message: "database is required for mongodb output",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "output.type",
			Message: fmt.Sprintf("must be one of singer, csv, parquet, postgres, mongodb, got %q", out.Type),
		})
	}

	if out.Type == "parquet" {
		switch out.Parquet.Compression {
		case "", "snappy", "gzip", "zstd", "none":
		default:
			errors = append(errors, ValidationError{
				Field:   "output.parquet.compression",
				Message: fmt.Sprintf("must be one of snappy, gzip, zstd, none, got %q", out.Parquet.Compression),
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error, got %q", c.Logging.Level),
		})
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("must be json or text, got %q", c.Logging.Format),
		})
	}
	if c.Logging.Output == "stdout" && c.Output.Type == "singer" && c.Output.File == "" {
		errors = append(errors, ValidationError{
			Field:   "logging.output",
			Message: "stdout is reserved for singer messages",
		})
	}

	return errors
}
