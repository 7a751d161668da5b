// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads service configuration.
//
// Precedence is environment (FONDAT_*) over the YAML file over Defaults. The
// file is parsed strictly: unknown keys and trailing documents are errors.
// ConfigHolder watches the file and swaps in a new configuration only when it
// loads and validates.
package config
