package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/appmap/pkg/diagram"
	"github.com/matzehuels/appmap/pkg/errors"
	"github.com/matzehuels/appmap/pkg/layout"
)

const testCatalog = `
[[streams]]
id = 1
name = "sp"

[[streams]]
id = 2
name = "mi"

[[connection_types]]
id = 1
name = "sftp"
color = "#002ac0"

[[apps]]
id = 1
name = "Billing"
stream_id = 1

[[apps]]
id = 2
name = "Accounts"
stream_id = 1

[[apps]]
id = 3
name = "Ledger"
stream_id = 2

[[integrations]]
id = 10
source_app_id = 3
target_app_id = 1
connection_type_id = 1
direction = "one_way"
`

// setupConfig writes a catalog and a config using the file layout store
// and file cache, and returns the config path.
func setupConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	catalogPath := filepath.Join(dir, "catalog.toml")
	if err := os.WriteFile(catalogPath, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := `
[storage]
backend = "file"
dir = "` + filepath.Join(dir, "layouts") + `"

[cache]
backend = "file"
dir = "` + filepath.Join(dir, "cache") + `"

[catalog]
file = "` + catalogPath + `"

[[streams]]
name = "sp"
display_name = "Sales Platform"

[[streams]]
name = "gone"
`
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

// execute runs one CLI invocation and returns what it wrote to its output.
func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	var out bytes.Buffer
	c.SetOutput(&out)

	root := c.RootCommand()
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustExecute(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := execute(t, cfgPath, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func decodeDiagram(t *testing.T, out string) diagram.Data {
	t.Helper()
	var d diagram.Data
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("decode diagram: %v\n%s", err, out)
	}
	return d
}

func writeLayoutFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func findNode(d diagram.Data, id string) (diagram.Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return diagram.Node{}, false
}

func TestStreamsCommand(t *testing.T) {
	out := mustExecute(t, setupConfig(t), "streams")
	for _, want := range []string{"sp", "Sales Platform", "gone", "missing"} {
		if !strings.Contains(out, want) {
			t.Errorf("streams output missing %q:\n%s", want, out)
		}
	}
}

func TestDiagramCommand(t *testing.T) {
	cfg := setupConfig(t)

	d := decodeDiagram(t, mustExecute(t, cfg, "diagram", "sp"))
	if len(d.Nodes) != 4 {
		t.Errorf("nodes = %d, want 4 (group, two home apps, one partner)", len(d.Nodes))
	}
	if len(d.Edges) != 1 || d.Edges[0].ID != "3-1" {
		t.Errorf("edges = %+v, want one 3-1 edge", d.Edges)
	}

	dot := mustExecute(t, cfg, "diagram", "sp", "-f", "dot")
	if !strings.Contains(dot, "digraph") || !strings.Contains(dot, "sftp") {
		t.Errorf("dot output:\n%s", dot)
	}

	app := decodeDiagram(t, mustExecute(t, cfg, "diagram", "--app", "3"))
	if _, ok := findNode(app, "1"); !ok {
		t.Error("app diagram should contain the integration partner")
	}
}

func TestDiagramCommandErrors(t *testing.T) {
	cfg := setupConfig(t)

	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"not allowed", []string{"diagram", "ops"}, errors.ErrCodeStreamNotAllowed},
		{"missing from catalog", []string{"diagram", "gone"}, errors.ErrCodeDiagramLoadFailed},
		{"unknown app", []string{"diagram", "--app", "99"}, errors.ErrCodeNotFound},
		{"app and stream", []string{"diagram", "--app", "1", "sp"}, ""},
		{"bad format", []string{"diagram", "sp", "-f", "gif"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, cfg, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.code != "" && !errors.Is(err, tt.code) {
				t.Errorf("error %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestDiagramCommandRequiresStreamOffTerminal(t *testing.T) {
	_, err := execute(t, setupConfig(t), "diagram")
	if err == nil || !strings.Contains(err.Error(), "stream argument is required") {
		t.Errorf("err = %v", err)
	}
}

func TestDiagramCommandWritesFile(t *testing.T) {
	cfg := setupConfig(t)
	path := filepath.Join(t.TempDir(), "sp.dot")

	out := mustExecute(t, cfg, "diagram", "sp", "-f", "dot", "-o", path)
	if out != "" {
		t.Errorf("nothing should be written to the output when -o is set, got %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("digraph")) {
		t.Errorf("file content:\n%s", data)
	}
}

func TestLayoutSaveGetRoundTrip(t *testing.T) {
	cfg := setupConfig(t)
	path := writeLayoutFile(t, `{"nodes_layout": {"1": {"position": {"x": 10, "y": 20}}}, "config": {"zoom": 2}}`)

	mustExecute(t, cfg, "layout", "save", "--stream", "sp", path)

	var l layout.Layout
	if err := json.Unmarshal([]byte(mustExecute(t, cfg, "layout", "get", "--stream", "sp")), &l); err != nil {
		t.Fatal(err)
	}
	if l.Key != layout.StreamKey(1) {
		t.Errorf("key = %v, want stream:1", l.Key)
	}
	if p := l.NodesLayout["1"].Position; p == nil || p.X != 10 || p.Y != 20 {
		t.Errorf("position = %+v", p)
	}

	d := decodeDiagram(t, mustExecute(t, cfg, "diagram", "sp"))
	n, ok := findNode(d, "1")
	if !ok || n.Position == nil || n.Position.X != 10 || n.Position.Y != 20 {
		t.Errorf("merged node 1 = %+v", n)
	}

	list := mustExecute(t, cfg, "layout", "list")
	if !strings.Contains(list, "stream:1") {
		t.Errorf("layout list:\n%s", list)
	}
}

func TestLayoutCommandValidation(t *testing.T) {
	cfg := setupConfig(t)
	for _, args := range [][]string{
		{"layout", "get"},
		{"layout", "get", "--stream", "sp", "--app", "1"},
		{"layout", "save", "--stream", "ops", writeLayoutFile(t, `{}`)},
		{"layout", "save", "--stream", "sp", writeLayoutFile(t, `not json`)},
	} {
		if _, err := execute(t, cfg, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestAppDeletePrunesLayouts(t *testing.T) {
	cfg := setupConfig(t)
	path := writeLayoutFile(t, `{
		"nodes_layout": {"1": {"position": {"x": 1, "y": 1}}, "3": {"position": {"x": 3, "y": 3}}},
		"edges_layout": [{"id": "3-1"}]
	}`)
	mustExecute(t, cfg, "layout", "save", "--stream", "sp", path)

	mustExecute(t, cfg, "app", "delete", "3")

	var l layout.Layout
	if err := json.Unmarshal([]byte(mustExecute(t, cfg, "layout", "get", "--stream", "sp")), &l); err != nil {
		t.Fatal(err)
	}
	if _, ok := l.NodesLayout["3"]; ok {
		t.Error("node 3 should be pruned")
	}
	if len(l.EdgesLayout) != 0 {
		t.Errorf("edges = %+v, want none", l.EdgesLayout)
	}
	if _, ok := l.NodesLayout["1"]; !ok {
		t.Error("node 1 should remain")
	}

	if _, err := execute(t, cfg, "app", "delete", "99"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("delete unknown app: %v", err)
	}
}

func TestLayoutPrune(t *testing.T) {
	cfg := setupConfig(t)
	path := writeLayoutFile(t, `{
		"nodes_layout": {"1": {}, "9": {}},
		"edges_layout": [{"id": "9-1"}, {"id": "3-1"}]
	}`)
	mustExecute(t, cfg, "layout", "save", "--stream", "sp", path)

	mustExecute(t, cfg, "layout", "prune")

	var l layout.Layout
	if err := json.Unmarshal([]byte(mustExecute(t, cfg, "layout", "get", "--stream", "sp")), &l); err != nil {
		t.Fatal(err)
	}
	if _, ok := l.NodesLayout["9"]; ok {
		t.Error("node of unknown app 9 should be pruned")
	}
	if len(l.EdgesLayout) != 1 || l.EdgesLayout[0].ID != "3-1" {
		t.Errorf("edges = %+v, want only 3-1", l.EdgesLayout)
	}
}

func TestCachePathAndClear(t *testing.T) {
	cfg := setupConfig(t)
	want := filepath.Join(filepath.Dir(cfg), "cache")

	if got := strings.TrimSpace(mustExecute(t, cfg, "cache", "path")); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}

	mustExecute(t, cfg, "layout", "save", "--stream", "sp", writeLayoutFile(t, `{"nodes_layout": {"1": {}}}`))
	mustExecute(t, cfg, "diagram", "sp")
	mustExecute(t, cfg, "cache", "clear")

	shards, _ := os.ReadDir(want)
	for _, s := range shards {
		if s.IsDir() {
			t.Errorf("shard %s left after clear", s.Name())
		}
	}
}

func TestCompletionCommand(t *testing.T) {
	out := mustExecute(t, setupConfig(t), "completion", "bash")
	if !strings.Contains(out, appName) {
		t.Error("completion script should mention the command name")
	}
}

func TestMissingExplicitConfig(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "nope.toml"), "streams")
	if err == nil {
		t.Fatal("expected error for a missing --config file")
	}
}
