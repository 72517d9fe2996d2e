// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the engine's YAML configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Vector  VectorConfig  `yaml:"vector"`
	LLM     LLMConfig     `yaml:"llm"`
}

type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Dir enables file logging when set, e.g. "~/.graphforge/logs".
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

type ServerConfig struct {
	// Listen is the HTTP bind address, e.g. ":8080".
	Listen string `yaml:"listen"`
}

type StorageConfig struct {
	// Path is the badger directory. Empty disables payload offloading
	// and the storage transaction sink.
	Path string `yaml:"path"`

	// OffloadThresholdBytes moves stage payloads at or above this size
	// out of memory into the store.
	OffloadThresholdBytes int64 `yaml:"offload_threshold_bytes"`
}

type VectorConfig struct {
	// Host is the Weaviate host, e.g. "localhost:8081". Empty disables
	// the vector index and the vector_writer tool.
	Host   string `yaml:"host"`
	Scheme string `yaml:"scheme"`
}

type LLMConfig struct {
	// Backend is "openai" or "heuristic". The heuristic backend needs
	// no network or credentials.
	Backend string `yaml:"backend"`
}

// DefaultConfig returns the configuration used when no config file is
// present: heuristic extraction, in-memory state, no server defaults.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Server:  ServerConfig{Listen: ":8080"},
		Storage: StorageConfig{OffloadThresholdBytes: 1 << 20},
		Vector:  VectorConfig{Scheme: "http"},
		LLM:     LLMConfig{Backend: "heuristic"},
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file
// is not an error; the defaults are returned.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}
	if config.Vector.Scheme == "" {
		config.Vector.Scheme = "http"
	}
	if config.Storage.OffloadThresholdBytes <= 0 {
		config.Storage.OffloadThresholdBytes = 1 << 20
	}
	return config, nil
}
