package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svcstore/internal/ir"
)

func TestOutputFormatterJSONSuccess(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]any{"total": 2}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"total": float64(2)}, resp.Data)
}

func TestOutputFormatterJSONError(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Error(ErrCodeRemote, "find failed", map[string]any{"status": 404}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRemote, resp.Error.Code)
	assert.Equal(t, "find failed", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatterTextError(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, f.Error(ErrCodeParse, "bad query", "ignored unless verbose"))
	assert.Equal(t, "Error [E003]: bad query\n", buf.String())

	buf.Reset()
	f.Verbose = true
	require.NoError(t, f.Error(ErrCodeParse, "bad query", "line 1"))
	assert.Equal(t, "Error [E003]: bad query\nDetails: line 1\n", buf.String())
}

func TestOutputFormatterFail(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	cause := errors.New("connection refused")
	err := f.Fail(ExitFailure, ErrCodeRemote, "find failed", cause)

	assert.Equal(t, "Error [E005]: find failed: connection refused\n", buf.String())
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "find failed: connection refused")
}

func TestOutputFormatterRecords(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Records([]ir.Record{
		{"title": "b", "id": 2},
		{"id": 1, "tags": []any{"x"}, "done": true},
	}))
	assert.Equal(t, `{"id":2,"title":"b"}`+"\n"+`{"done":true,"id":1,"tags":["x"]}`+"\n", buf.String())
}

func TestOutputFormatterVerboseLog(t *testing.T) {
	var out, errOut bytes.Buffer

	f := &OutputFormatter{Format: "text", Writer: &out}
	f.VerboseLog("hidden %d", 1)
	assert.Empty(t, out.String())

	f.Verbose = true
	f.VerboseLog("loaded %d record(s)", 3)
	assert.Contains(t, out.String(), "loaded 3 record(s)")

	out.Reset()
	f = &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut, Verbose: true}
	f.VerboseLog("diagnostic")
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "diagnostic")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "usage")))
}
