package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/poiesic/partners/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmbeddingServer answers OpenAI-style embedding requests with a 4-wide
// vector chosen by topic, so similar texts share a direction.
func newEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i, text := range req.Input {
			data[i] = item{Object: "embedding", Embedding: topicVector(text), Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func topicVector(text string) []float32 {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "payment"):
		return []float32{1, 0, 0, 0}
	case strings.Contains(text, "logistics"):
		return []float32{0, 1, 0, 0}
	default:
		return []float32{0, 0, 1, 0}
	}
}

func setupEnv(t *testing.T) {
	t.Helper()
	srv := newEmbeddingServer(t)
	t.Setenv("PARTNERS_STORE", "badger")
	t.Setenv("PARTNERS_DATA_DIR", filepath.Join(t.TempDir(), "db"))
	t.Setenv("PARTNERS_EMBEDDING_BACKEND", "openai")
	t.Setenv("PARTNERS_EMBEDDING_HOST", srv.URL)
	t.Setenv("PARTNERS_EMBEDDING_DIMENSIONS", "4")
	t.Setenv("PARTNERS_LOG_LEVEL", "error")
}

// run executes the CLI and returns what it wrote to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var stdout, stderr bytes.Buffer
	app.Writer = &stdout
	app.ErrWriter = &stderr
	full := append([]string{"partners", "--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)
	err := app.Run(full)
	return stdout.String(), err
}

func idString(id core.ID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestParseAttrs(t *testing.T) {
	attrs, err := parseAttrs([]string{"tier=gold", "employees=120", "active=true", `tags=["a","b"]`, "note=not json{"})
	require.NoError(t, err)
	require.Len(t, attrs, 5)

	v, _ := attrs.Get("tier")
	assert.Equal(t, core.KindString, v.Kind())
	assert.Equal(t, "gold", v.Str())

	v, _ = attrs.Get("employees")
	assert.Equal(t, core.KindNumber, v.Kind())
	assert.Equal(t, 120.0, v.Number())

	v, _ = attrs.Get("active")
	assert.True(t, v.Bool())

	v, _ = attrs.Get("tags")
	assert.Len(t, v.List(), 2)

	v, _ = attrs.Get("note")
	assert.Equal(t, "not json{", v.Str())
}

func TestParseAttrs_LastValueWins(t *testing.T) {
	attrs, err := parseAttrs([]string{"tier=gold", "tier=silver"})
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	v, _ := attrs.Get("tier")
	assert.Equal(t, "silver", v.Str())
}

func TestParseAttrs_Invalid(t *testing.T) {
	for _, pair := range []string{"novalue", "=value"} {
		_, err := parseAttrs([]string{pair})
		assert.ErrorIs(t, err, core.ErrValidation, pair)
	}
}

func TestReadInputs_Stdin(t *testing.T) {
	inputs, err := readInputs("-", strings.NewReader(`[{"name":"Acme","industry":"Logistics"}]`))
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "Acme", inputs[0].Name)
	assert.Equal(t, "Logistics", *inputs[0].Industry)

	_, err = readInputs("-", strings.NewReader(`{"name":`))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestInvalidLogLevel(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "--log-level", "loud", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInvalidID(t *testing.T) {
	setupEnv(t)
	for _, args := range [][]string{{"get", "abc"}, {"get", "0"}, {"delete"}} {
		_, err := run(t, args...)
		assert.Error(t, err, args)
	}
}

func TestUpdate_NothingToUpdate(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "update", "1")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestUpdate_UnknownClearField(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "update", "--clear", "name", "1")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSearch_UnknownStrategy(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "search", "--strategy", "magic", "payments")
	assert.ErrorIs(t, err, core.ErrUnknownStrategy)
}

func TestEndToEnd(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "add", "--name", "PayFlow", "--description", "Payment processing", "--industry", "Fintech", "--attr", "tier=gold")
	require.NoError(t, err)
	var payflow core.Partner
	require.NoError(t, json.Unmarshal([]byte(out), &payflow))
	assert.NotZero(t, payflow.Id)
	assert.Equal(t, "PayFlow", payflow.Name)

	_, err = run(t, "add", "--name", "Shipit", "--description", "Freight and logistics", "--location", "Rotterdam")
	require.NoError(t, err)

	out, err = run(t, "search", "--strategy", "semantic", "--top-n", "1", "payment", "gateway")
	require.NoError(t, err)
	var resp core.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "payment gateway", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "PayFlow", resp.Results[0].Partner.Name)

	out, err = run(t, "search", "--strategy", "keyword", "rotterdam")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Shipit", resp.Results[0].Partner.Name)
	assert.InDelta(t, 0.7, resp.Results[0].Score, 1e-9)

	out, err = run(t, "update", "--industry", "Payments", "--clear", "description", idString(payflow.Id))
	require.NoError(t, err)
	var updated core.Partner
	require.NoError(t, json.Unmarshal([]byte(out), &updated))
	assert.Equal(t, "Payments", *updated.Industry)
	assert.Nil(t, updated.Description)

	_, err = run(t, "index")
	require.NoError(t, err)

	out, err = run(t, "search", "--strategy", "fulltext", "payments")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, payflow.Id, resp.Results[0].Partner.Id)

	out, err = run(t, "list")
	require.NoError(t, err)
	var page []core.Partner
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Len(t, page, 2)

	_, err = run(t, "delete", idString(payflow.Id))
	require.NoError(t, err)
	_, err = run(t, "get", idString(payflow.Id))
	assert.Error(t, err)
}

func TestImportAndReembed(t *testing.T) {
	setupEnv(t)

	file := filepath.Join(t.TempDir(), "partners.json")
	writeFile(t, file, `[
		{"name": "PayFlow", "description": "Payment processing"},
		{"name": "Shipit", "industry": "Logistics"},
		{"name": "Greenleaf", "location": "Oslo", "additional_data": {"tier": "silver"}}
	]`)

	out, err := run(t, "import", file)
	require.NoError(t, err)
	var created []core.Partner
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	require.Len(t, created, 3)
	assert.Equal(t, "Greenleaf", created[2].Name)

	out, err = run(t, "reembed", "--batch-size", "2", "--retry-delay", "1ms")
	require.NoError(t, err)
	var summary struct {
		Total   int
		Updated int
		Skipped int
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Updated)
	assert.Zero(t, summary.Skipped)
}
