// Package config loads service and collection settings from YAML, TOML or
// CUE files, with environment overrides for the server section.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/svcstore/internal/cache"
	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/server"
	"github.com/roach88/svcstore/internal/service"
	"github.com/roach88/svcstore/internal/store"
	"github.com/roach88/svcstore/internal/transport"
)

// Environment variables read by Path and Load.
const (
	EnvConfig = "SVCSTORE_CONFIG"
	EnvAddr   = "SVCSTORE_ADDR"
	EnvDB     = "SVCSTORE_DB"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":3030"

//go:embed schema.cue
var schemaSource string

// Config is the root of a configuration file.
type Config struct {
	Server   ServerConfig    `json:"server" yaml:"server" toml:"server"`
	Services []ServiceConfig `json:"services" yaml:"services" toml:"services"`
}

// ServerConfig holds the serve command's settings.
type ServerConfig struct {
	Addr    string `json:"addr" yaml:"addr" toml:"addr"`
	DB      string `json:"db" yaml:"db" toml:"db"`
	Metrics bool   `json:"metrics" yaml:"metrics" toml:"metrics"`
}

// ServiceConfig describes one service and the client collection mirroring it.
type ServiceConfig struct {
	Name        string `json:"name" yaml:"name" toml:"name"`
	IDField     string `json:"idField,omitempty" yaml:"idField,omitempty" toml:"idField,omitempty"`
	TempIDField string `json:"tempIdField,omitempty" yaml:"tempIdField,omitempty" toml:"tempIdField,omitempty"`
	StartID     int    `json:"startId,omitempty" yaml:"startId,omitempty" toml:"startId,omitempty"`

	Paginate *transport.Paginate `json:"paginate,omitempty" yaml:"paginate,omitempty" toml:"paginate,omitempty"`

	ReplaceItems        bool     `json:"replaceItems,omitempty" yaml:"replaceItems,omitempty" toml:"replaceItems,omitempty"`
	AddOnUpsert         bool     `json:"addOnUpsert,omitempty" yaml:"addOnUpsert,omitempty" toml:"addOnUpsert,omitempty"`
	AutoRemove          bool     `json:"autoRemove,omitempty" yaml:"autoRemove,omitempty" toml:"autoRemove,omitempty"`
	KeepCopiesInStore   bool     `json:"keepCopiesInStore,omitempty" yaml:"keepCopiesInStore,omitempty" toml:"keepCopiesInStore,omitempty"`
	ParamsForServer     []string `json:"paramsForServer,omitempty" yaml:"paramsForServer,omitempty" toml:"paramsForServer,omitempty"`
	Whitelist           []string `json:"whitelist,omitempty" yaml:"whitelist,omitempty" toml:"whitelist,omitempty"`
	SkipRequestIfExists bool     `json:"skipRequestIfExists,omitempty" yaml:"skipRequestIfExists,omitempty" toml:"skipRequestIfExists,omitempty"`
	PreferUpdate        bool     `json:"preferUpdate,omitempty" yaml:"preferUpdate,omitempty" toml:"preferUpdate,omitempty"`
	EnableEvents        bool     `json:"enableEvents,omitempty" yaml:"enableEvents,omitempty" toml:"enableEvents,omitempty"`

	Model *ModelConfig `json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty"`
}

// ModelConfig enables the model-wrapped record variant.
type ModelConfig struct {
	Name     string    `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Defaults ir.Record `json:"defaults,omitempty" yaml:"defaults,omitempty" toml:"defaults,omitempty"`
}

// Path returns flag when set, otherwise $SVCSTORE_CONFIG.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(EnvConfig)
}

// Load reads path, picking the decoder by extension, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg *Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		cfg, err = decodeYAML(data)
	case ".toml":
		cfg, err = decodeTOML(data)
	case ".cue":
		cfg, err = decodeCUE(data, path)
	case ".json":
		cfg, err = decodeJSON(data)
	default:
		return nil, fmt.Errorf("config %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.normalizeDefaults(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

func decodeTOML(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse toml: unknown keys %s", strings.Join(keys, ", "))
	}
	return &cfg, nil
}

func decodeJSON(data []byte) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &cfg, nil
}

// decodeCUE unifies the file with the embedded schema, so CUE configs are
// type-checked before they are exported to JSON and decoded.
func decodeCUE(data []byte, path string) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	user := ctx.CompileBytes(data, cue.Filename(path))
	if err := user.Err(); err != nil {
		return nil, fmt.Errorf("parse cue: %w", err)
	}
	v := schema.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate cue: %w", err)
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("export cue: %w", err)
	}
	return decodeJSON(raw)
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvDB); v != "" {
		c.Server.DB = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
}

// normalizeDefaults re-decodes model defaults so numbers have the same Go
// types whichever format they came from.
func (c *Config) normalizeDefaults() error {
	for i := range c.Services {
		m := c.Services[i].Model
		if m == nil || m.Defaults == nil {
			continue
		}
		raw, err := json.Marshal(m.Defaults)
		if err != nil {
			return fmt.Errorf("service %q: model defaults: %w", c.Services[i].Name, err)
		}
		if m.Defaults, err = ir.DecodeRecord(raw); err != nil {
			return fmt.Errorf("service %q: model defaults: %w", c.Services[i].Name, err)
		}
	}
	return nil
}

// Validate checks every service entry, reporting all problems at once.
func (c *Config) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for i, s := range c.Services {
		label := fmt.Sprintf("services[%d]", i)
		if s.Name != "" {
			label = fmt.Sprintf("service %q", s.Name)
		}
		switch {
		case strings.Trim(s.Name, "/") == "":
			errs = append(errs, fmt.Errorf("%s: name required", label))
		case strings.Contains(s.Name, "/"):
			errs = append(errs, fmt.Errorf("%s: name must not contain '/'", label))
		case server.IsReserved(s.Name):
			errs = append(errs, fmt.Errorf("%s: name is reserved", label))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("%s: duplicate name", label))
		}
		seen[s.Name] = true

		if p := s.Paginate; p != nil {
			if p.Default < 0 || p.Max < 0 {
				errs = append(errs, fmt.Errorf("%s: paginate values must not be negative", label))
			} else if p.Max > 0 && p.Default > p.Max {
				errs = append(errs, fmt.Errorf("%s: paginate default %d exceeds max %d", label, p.Default, p.Max))
			}
		}
		for _, op := range s.Whitelist {
			if !strings.HasPrefix(op, "$") {
				errs = append(errs, fmt.Errorf("%s: whitelisted operator %q must start with '$'", label, op))
			}
		}
		if s.IDField != "" && s.IDField == s.TempIDField {
			errs = append(errs, fmt.Errorf("%s: idField and tempIdField must differ", label))
		}
	}
	return errors.Join(errs...)
}

// Service returns the named service entry.
func (c *Config) Service(name string) (ServiceConfig, bool) {
	for _, s := range c.Services {
		if s.Name == name {
			return s, true
		}
	}
	return ServiceConfig{}, false
}

// CacheOptions builds the client collection options.
func (s ServiceConfig) CacheOptions() cache.Options {
	opts := cache.Options{
		ServicePath:         s.Name,
		IDField:             s.IDField,
		TempIDField:         s.TempIDField,
		ReplaceItems:        s.ReplaceItems,
		AddOnUpsert:         s.AddOnUpsert,
		AutoRemove:          s.AutoRemove,
		KeepCopiesInStore:   s.KeepCopiesInStore,
		ParamsForServer:     s.ParamsForServer,
		Whitelist:           s.Whitelist,
		SkipRequestIfExists: s.SkipRequestIfExists,
	}
	if s.Model != nil {
		opts.Model = &cache.Model{Name: s.Model.Name, Defaults: ir.CloneRecord(s.Model.Defaults)}
	}
	return opts
}

// ServiceOptions builds the client service options.
func (s ServiceConfig) ServiceOptions() service.Options {
	return service.Options{
		PreferUpdate: s.PreferUpdate,
		EnableEvents: s.EnableEvents,
	}
}

// StoreOptions builds the server-side SQLite service options.
func (s ServiceConfig) StoreOptions() store.ServiceOptions {
	return store.ServiceOptions{
		Name:      s.Name,
		IDField:   s.IDField,
		StartID:   s.StartID,
		Paginate:  s.Paginate,
		Whitelist: s.Whitelist,
	}
}
