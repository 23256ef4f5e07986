package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/transport"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const yamlConfig = `
server:
  addr: ":8080"
  db: todos.db
  metrics: true
services:
  - name: todos
    startId: 1
    paginate:
      default: 10
      max: 50
    whitelist: ["$regex"]
    addOnUpsert: true
    enableEvents: true
    model:
      name: Todo
      defaults:
        isComplete: false
        priority: 2
  - name: notes
    idField: _id
`

const tomlConfig = `
[server]
addr = ":8080"
db = "todos.db"
metrics = true

[[services]]
name = "todos"
startId = 1
whitelist = ["$regex"]
addOnUpsert = true
enableEvents = true

[services.paginate]
default = 10
max = 50

[services.model]
name = "Todo"

[services.model.defaults]
isComplete = false
priority = 2

[[services]]
name = "notes"
idField = "_id"
`

const cueConfig = `
server: {
	addr:    ":8080"
	db:      "todos.db"
	metrics: true
}
services: [{
	name:    "todos"
	startId: 1
	paginate: {default: 10, max: 50}
	whitelist: ["$regex"]
	addOnUpsert:  true
	enableEvents: true
	model: {
		name: "Todo"
		defaults: {isComplete: false, priority: 2}
	}
}, {
	name:    "notes"
	idField: "_id"
}]
`

// Each format decodes to the same configuration.
func TestLoadFormats(t *testing.T) {
	tests := []struct {
		file    string
		content string
	}{
		{"svcstore.yaml", yamlConfig},
		{"svcstore.toml", tomlConfig},
		{"svcstore.cue", cueConfig},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, ServerConfig{Addr: ":8080", DB: "todos.db", Metrics: true}, cfg.Server)
			require.Len(t, cfg.Services, 2)

			todos := cfg.Services[0]
			assert.Equal(t, "todos", todos.Name)
			assert.Equal(t, 1, todos.StartID)
			assert.Equal(t, &transport.Paginate{Default: 10, Max: 50}, todos.Paginate)
			assert.Equal(t, []string{"$regex"}, todos.Whitelist)
			assert.True(t, todos.AddOnUpsert)
			assert.True(t, todos.EnableEvents)
			require.NotNil(t, todos.Model)
			assert.Equal(t, "Todo", todos.Model.Name)
			assert.Equal(t, ir.Record{"isComplete": false, "priority": 2}, todos.Model.Defaults)

			notes, ok := cfg.Service("notes")
			require.True(t, ok)
			assert.Equal(t, "_id", notes.IDField)
			assert.Nil(t, notes.Paginate)
		})
	}
}

func TestLoadJSON(t *testing.T) {
	cfg, err := Load(writeConfig(t, "svcstore.json", `{"services":[{"name":"todos"}]}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, "todos", cfg.Services[0].Name)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	tests := []struct {
		file    string
		content string
	}{
		{"bad.yaml", "services:\n  - name: todos\n    pagination: 3\n"},
		{"bad.toml", "[[services]]\nname = \"todos\"\npagination = 3\n"},
		{"bad.cue", "services: [{name: \"todos\", pagination: 3}]\n"},
		{"bad.json", `{"services":[{"name":"todos","pagination":3}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadCUESchemaTypes(t *testing.T) {
	_, err := Load(writeConfig(t, "bad.cue", `services: [{name: "todos", startId: "one"}]`))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "bad.cue", `services: [{name: "todos", paginate: {default: -1}}]`))
	require.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "svcstore.ini", "x=1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")

	_, err = Load(writeConfig(t, "broken.yaml", "services: [\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{Services: []ServiceConfig{{Name: "todos"}, {Name: "notes"}}},
		},
		{
			name:    "missing name",
			cfg:     Config{Services: []ServiceConfig{{}}},
			wantErr: "services[0]: name required",
		},
		{
			name:    "slash in name",
			cfg:     Config{Services: []ServiceConfig{{Name: "a/b"}}},
			wantErr: "must not contain '/'",
		},
		{
			name:    "duplicate",
			cfg:     Config{Services: []ServiceConfig{{Name: "todos"}, {Name: "todos"}}},
			wantErr: "duplicate name",
		},
		{
			name:    "reserved name",
			cfg:     Config{Services: []ServiceConfig{{Name: "todos"}, {Name: "metrics"}}},
			wantErr: `service "metrics": name is reserved`,
		},
		{
			name:    "paginate default above max",
			cfg:     Config{Services: []ServiceConfig{{Name: "todos", Paginate: &transport.Paginate{Default: 20, Max: 10}}}},
			wantErr: "exceeds max",
		},
		{
			name:    "operator without dollar",
			cfg:     Config{Services: []ServiceConfig{{Name: "todos", Whitelist: []string{"regex"}}}},
			wantErr: "must start with '$'",
		},
		{
			name:    "same id fields",
			cfg:     Config{Services: []ServiceConfig{{Name: "todos", IDField: "k", TempIDField: "k"}}},
			wantErr: "must differ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvAddr, "127.0.0.1:9000")
	t.Setenv(EnvDB, "/tmp/other.db")

	cfg, err := Load(writeConfig(t, "svcstore.yaml", yamlConfig))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/other.db", cfg.Server.DB)
}

func TestPath(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/svcstore.yaml")
	assert.Equal(t, "local.yaml", Path("local.yaml"))
	assert.Equal(t, "/etc/svcstore.yaml", Path(""))
}

func TestServiceConfigOptions(t *testing.T) {
	cfg, err := Load(writeConfig(t, "svcstore.yaml", yamlConfig))
	require.NoError(t, err)
	todos, _ := cfg.Service("todos")

	co := todos.CacheOptions()
	assert.Equal(t, "todos", co.ServicePath)
	assert.True(t, co.AddOnUpsert)
	require.NotNil(t, co.Model)
	assert.Equal(t, ir.Record{"isComplete": false, "priority": 2}, co.Model.Defaults)

	co.Model.Defaults["priority"] = 9
	assert.Equal(t, 2, todos.Model.Defaults["priority"])

	so := todos.ServiceOptions()
	assert.True(t, so.EnableEvents)
	assert.False(t, so.PreferUpdate)

	st := todos.StoreOptions()
	assert.Equal(t, "todos", st.Name)
	assert.Equal(t, 1, st.StartID)
	assert.Equal(t, &transport.Paginate{Default: 10, Max: 50}, st.Paginate)

	_, ok := cfg.Service("missing")
	assert.False(t, ok)
}
