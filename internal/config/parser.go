package config

import (
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Parser reads configuration files.
type Parser struct {
	lua *LuaParser
}

// NewParser returns a parser. Call Close when done.
func NewParser() *Parser {
	return &Parser{lua: NewLuaParser(nil)}
}

// Parse evaluates configuration content.
func (p *Parser) Parse(content []byte) (*Config, error) {
	return p.lua.Parse(content)
}

// ParseFile reads and evaluates the file at path.
func (p *Parser) ParseFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := p.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseFromFS reads and evaluates a file from fsys.
func (p *Parser) ParseFromFS(fsys fs.FS, path string) (*Config, error) {
	content, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return p.Parse(content)
}

// ParseReader evaluates configuration read from r.
func (p *Parser) ParseReader(r io.Reader) (*Config, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return p.Parse(content)
}

// Close releases the parser's Lua runtime.
func (p *Parser) Close() error {
	return p.lua.Close()
}

// Load parses and validates the file at path. An empty path yields the
// defaults. Warnings are returned alongside a valid configuration.
func Load(path string) (*Config, *ValidationResult, error) {
	if path == "" {
		cfg := DefaultConfig()
		return &cfg, &ValidationResult{}, nil
	}
	p := NewParser()
	defer p.Close()

	cfg, err := p.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	result := NewValidator().Validate(cfg)
	if err := result.Error(); err != nil {
		return nil, result, err
	}
	return cfg, result, nil
}
