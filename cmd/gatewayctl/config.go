// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds gatewayctl settings loaded from config.yaml.
//
// Every field is optional: the zero Config falls back to environment
// variables and the gateway package defaults, so `gatewayctl classify`
// works with no file at all.
type Config struct {
	// OpenAIAPIKey is the upstream credential.
	// Falls back to the OPENAI_API_KEY environment variable.
	OpenAIAPIKey string `yaml:"openai_api_key"`

	// OpenAIBaseURL overrides the upstream API base URL.
	OpenAIBaseURL string `yaml:"openai_base_url"`

	// DefaultModel is used when requests name no model.
	DefaultModel string `yaml:"default_model"`

	// FallbackModels are tried in order after the requested model fails.
	FallbackModels []string `yaml:"fallback_models"`

	// ProbeModel is the model the connectivity probe targets.
	ProbeModel string `yaml:"probe_model"`
}

// loadConfig reads the YAML configuration file. A missing file is not an
// error; the zero Config then applies.
func loadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// apiKey returns the configured credential, falling back to the
// environment.
func (c Config) apiKey() string {
	if c.OpenAIAPIKey != "" {
		return c.OpenAIAPIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}
