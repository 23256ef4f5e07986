package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/server"
	"github.com/roach88/svcstore/internal/testutil"
	"github.com/roach88/svcstore/internal/transport/memory"
	"github.com/roach88/svcstore/internal/transport/rest"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const recordsJSON = `[
  {"id": 1, "title": "b", "done": false},
  {"id": 2, "title": "a", "done": true},
  {"id": 3, "title": "c", "done": false},
  {"title": "draft"}
]`

func TestQueryText(t *testing.T) {
	path := writeFile(t, "records.json", recordsJSON)

	out, _, err := execute(t, "query", path, "--query", `{"done": false, "$sort": {"title": -1}}`)
	require.NoError(t, err)
	assert.Equal(t, "2 of 2 record(s) (skip 0)\n"+
		`{"done":false,"id":3,"title":"c"}`+"\n"+
		`{"done":false,"id":1,"title":"b"}`+"\n", out)
}

func TestQueryJSONWithTemps(t *testing.T) {
	path := writeFile(t, "records.json", recordsJSON)

	out, _, err := execute(t, "--format", "json", "query", path, "--temps", "--query", `{"title": "draft"}`)
	require.NoError(t, err)

	var resp struct {
		Status string  `json:"status"`
		Data   ir.Page `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Data, 1)
	assert.Equal(t, true, resp.Data.Data[0][ir.TempFlag])
}

func TestQueryErrors(t *testing.T) {
	_, _, err := execute(t, "query", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	path := writeFile(t, "records.json", `{"id": 1}`)
	_, _, err = execute(t, "query", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	path = writeFile(t, "records.json", recordsJSON)
	_, _, err = execute(t, "query", path, "--query", `{"title": {"$bogus": 1}}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidateCommand(t *testing.T) {
	good := writeFile(t, "svcstore.yaml", "services:\n  - name: todos\n  - name: notes\n")
	out, _, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Equal(t, "valid: 2 service(s)\n", out)

	out, _, err = execute(t, "--format", "json", "validate", good)
	require.NoError(t, err)
	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"todos", "notes"}, resp.Data.Services)

	bad := writeFile(t, "svcstore.yaml", "services:\n  - name: todos\n  - name: todos\n")
	out, _, err = execute(t, "validate", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "duplicate name")

	_, _, err = execute(t, "validate", filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenarioCommand(t *testing.T) {
	out, _, err := execute(t, "scenario", "../harness/testdata/scenarios/temp_promotion.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, `"scenario_name":"temp_promotion"`)
	assert.Contains(t, out, "PASS temp_promotion")

	failing := writeFile(t, "failing.yaml", "name: failing\nsteps:\n  - op: clear\nexpect:\n  - type: temps\n    count: 1\n")
	out, _, err = execute(t, "scenario", failing)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL failing")
	assert.Contains(t, out, "1 temps")
}

func TestFindCommand(t *testing.T) {
	t.Setenv("SVCSTORE_CONFIG", "")
	remote := memory.New(memory.Options{Name: "todos", Paginate: &memory.Paginate{Default: 3, Max: 10}})
	remote.Seed(testutil.Todos()...)
	h := server.New(server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, h.Register("todos", remote))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	out, _, err := execute(t, "--format", "json", "find", "todos", "--url", srv.URL, "--query", `{"isComplete": false}`, "--qid", "main")
	require.NoError(t, err)
	var resp struct {
		Data struct {
			Page       ir.Page        `json:"page"`
			Paginated  bool           `json:"paginated"`
			Pagination map[string]any `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Paginated)
	assert.Equal(t, 10, resp.Data.Page.Total)
	assert.Len(t, resp.Data.Page.Data, 3)
	assert.Contains(t, resp.Data.Pagination, "mostRecent")

	_, _, err = execute(t, "find", "missing", "--url", srv.URL)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "NotFound (404)")
}

func TestFindCommandAppliesConfig(t *testing.T) {
	t.Setenv("SVCSTORE_CONFIG", "")
	remote := memory.New(memory.Options{Name: "todos"})
	remote.Seed(testutil.Todos()...)
	h := server.New(server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, h.Register("todos", remote))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	path := writeFile(t, "svcstore.yaml", `services:
  - name: todos
    preferUpdate: true
    enableEvents: true
    model:
      name: Todo
      defaults:
        priority: normal
`)
	out, _, err := execute(t, "--format", "json", "find", "todos", "--url", srv.URL, "--config", path, "--query", `{"id": 1}`)
	require.NoError(t, err)
	var resp struct {
		Data struct {
			Page ir.Page `json:"page"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Page.Data, 1)
	assert.Equal(t, "normal", resp.Data.Page.Data[0]["priority"])

	_, _, err = execute(t, "find", "todos", "--url", srv.URL, "--config", writeFile(t, "bad.yaml", "services:\n  - name: health\n"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestResolveFindConfig(t *testing.T) {
	t.Setenv("SVCSTORE_CONFIG", "")
	opts := &FindOptions{RootOptions: &RootOptions{}}

	collOpts, svcOpts, err := resolveFindConfig(opts, "todos")
	require.NoError(t, err)
	assert.Equal(t, "todos", collOpts.ServicePath)
	assert.False(t, svcOpts.EnableEvents)

	t.Setenv("SVCSTORE_CONFIG", writeFile(t, "svcstore.toml", `[[services]]
name = "todos"
idField = "_id"
preferUpdate = true
enableEvents = true
paramsForServer = ["$populate"]
`))
	collOpts, svcOpts, err = resolveFindConfig(opts, "todos")
	require.NoError(t, err)
	assert.Equal(t, "todos", collOpts.ServicePath)
	assert.Equal(t, "_id", collOpts.IDField)
	assert.Equal(t, []string{"$populate"}, collOpts.ParamsForServer)
	assert.True(t, svcOpts.PreferUpdate)
	assert.True(t, svcOpts.EnableEvents)

	collOpts, svcOpts, err = resolveFindConfig(opts, "notes")
	require.NoError(t, err)
	assert.Equal(t, "notes", collOpts.ServicePath)
	assert.False(t, svcOpts.PreferUpdate)
}

func TestServeConfigResolution(t *testing.T) {
	t.Setenv("SVCSTORE_CONFIG", "")
	_, err := resolveServeConfig(&ServeOptions{RootOptions: &RootOptions{}, Services: []string{"todos"}})
	assert.ErrorContains(t, err, "no database")

	_, err = resolveServeConfig(&ServeOptions{RootOptions: &RootOptions{}, Database: "x.db"})
	assert.ErrorContains(t, err, "no services")

	path := writeFile(t, "svcstore.yaml", "server:\n  db: from-config.db\nservices:\n  - name: todos\n    startId: 1\n")
	cfg, err := resolveServeConfig(&ServeOptions{RootOptions: &RootOptions{}, Config: path, Services: []string{"todos", "notes"}, Addr: ":9999"})
	require.NoError(t, err)
	assert.Equal(t, "from-config.db", cfg.Server.DB)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	require.Len(t, cfg.Services, 2)
	assert.Equal(t, 1, cfg.Services[0].StartID)
	assert.Equal(t, "notes", cfg.Services[1].Name)
}

func TestServeRoundTrip(t *testing.T) {
	t.Setenv("SVCSTORE_CONFIG", "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    filepath.Join(t.TempDir(), "svcstore.db"),
		Addr:        "127.0.0.1:0",
		Services:    []string{"todos"},
		Metrics:     true,
		ready:       ready,
	}
	var stdout bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- runServe(opts, cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	client, err := rest.NewClient(addr, "todos")
	require.NoError(t, err)
	created, err := client.Create(ctx, ir.Record{"title": "persisted"}, ir.Params{})
	require.NoError(t, err)
	res, err := client.Find(ctx, ir.Params{})
	require.NoError(t, err)
	require.Len(t, res.Records(), 1)
	assert.Equal(t, ir.MustKey(created["id"]), ir.MustKey(res.Records()[0]["id"]))

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `svcstore_service_calls_total{operation="todos.create",status="success"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, stdout.String(), "Serving 1 service(s)")
}
