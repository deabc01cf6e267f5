package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1 << 20 // 1MB

// Loader resolves and loads named configuration documents from a single root
// directory. Paths are confined to the root so request-supplied config names
// cannot escape it.
type Loader struct {
	root     string
	validate *validator.Validate
}

// NewLoader creates a loader rooted at dir. The directory must exist.
func NewLoader(dir string) (*Loader, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &ConfigError{Path: dir, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &ConfigError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &ConfigError{Path: dir, Err: errors.New("config root is not a directory")}
	}
	return &Loader{root: abs, validate: validator.New(validator.WithRequiredStructEnabled())}, nil
}

// Root returns the absolute config root directory.
func (l *Loader) Root() string { return l.root }

// Load reads, parses and validates a named config document. The name may be
// given with or without the .yaml extension and may contain subdirectories,
// but must resolve inside the loader's root.
func (l *Loader) Load(name string) (*Config, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &ConfigError{Path: name, Err: err}
	}
	if info.IsDir() {
		return nil, &ConfigError{Path: name, Err: errors.New("path is a directory, not a config document")}
	}
	if info.Size() > maxConfigFileSize {
		return nil, &ConfigError{Path: name, Err: fmt.Errorf("config file exceeds %d bytes", maxConfigFileSize)}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: name, Err: err}
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, &ConfigError{Path: name, Err: fmt.Errorf("parse yaml: %w", err)}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &ConfigError{Path: name, Err: fmt.Errorf("unmarshal: %w", err)}
	}

	if err := l.validate.Struct(&cfg); err != nil {
		return nil, &ConfigError{Path: name, Err: fmt.Errorf("validate: %w", err)}
	}

	return &cfg, nil
}

// resolve maps a document name to an absolute path confined to the root.
func (l *Loader) resolve(name string) (string, error) {
	if name == "" {
		return "", &ConfigError{Path: name, Err: errors.New("empty config name")}
	}
	if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
		name += ".yaml"
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}
	path = filepath.Clean(path)

	if path != l.root && !strings.HasPrefix(path, l.root+string(filepath.Separator)) {
		return "", &ConfigError{Path: name, Err: errors.New("unsafe path outside config root")}
	}
	return path, nil
}
