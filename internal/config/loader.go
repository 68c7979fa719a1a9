package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_HTTP_PORT, RETRIEVAL_DEFAULT_ALPHA, etc.)
//  2. YAML config file (~/.config/ragd/config.yaml)
//  3. Hardcoded defaults
//
// The configPath parameter specifies the YAML file to load. If empty, the
// default path is used; a missing file is not an error.
//
// The config file must live under ~/.config/ragd/ or /etc/ragd/ and carry
// 0600 or 0400 permissions, since it may hold API keys.
//
// Environment variables map to YAML fields by splitting on the first
// underscore: SERVER_HTTP_PORT -> server.http_port,
// EMBEDDING_API_KEY -> embedding.api_key. The nested vectorstore
// subsections use explicit prefixes: VECTORSTORE_WEAVIATE_HOST ->
// vectorstore.weaviate.host, VECTORSTORE_QDRANT_API_KEY ->
// vectorstore.qdrant.api_key.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "ragd", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a
		// check-then-open race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment overrides. The first underscore separates the section
	// from the field; later underscores stay in the field name. The
	// vectorstore subsections nest one level deeper, so their prefixes
	// are mapped explicitly: VECTORSTORE_QDRANT_API_KEY ->
	// vectorstore.qdrant.api_key.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		lower := strings.ToLower(s)
		for _, prefix := range []string{"vectorstore_weaviate_", "vectorstore_qdrant_"} {
			if strings.HasPrefix(lower, prefix) {
				field := strings.TrimPrefix(lower, prefix)
				section := strings.Replace(strings.TrimSuffix(prefix, "_"), "_", ".", 1)
				return section + "." + field
			}
		}
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg, k)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validateConfigPath checks if path is in allowed directories. This runs
// even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so one cannot point out of the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Paths that don't exist yet still validate on the literal path.
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "ragd"),
		"/etc/ragd",
	}
	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/ragd/ or /etc/ragd/")
}

// validateConfigFileProperties checks file permissions and size from an
// already-opened descriptor.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
