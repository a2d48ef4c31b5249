package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const signupDoc = `
name: signup
flavor: fast_track
steps:
  - id: check_email
    script: "return ctx.has('email')"
  - id: known
    script: "return ctx.get('known') === true ? PassFast : true"
    fast_track: true
  - id: create
    script: "ctx.set('created', email); return true"
    in: [email]
  - task: signal.left
    kind: fail
    id: report
`

func writeDoc(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("ACTIVITY_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("ACTIVITY_STORE_DSN", "")
	t.Setenv("ACTIVITY_LOG_LEVEL", "")
	t.Setenv("ACTIVITY_LOG_FORMAT", "")
	t.Setenv("ACTIVITY_MAX_STEPS", "")
}

func TestRun(t *testing.T) {
	isolate(t)
	path := writeDoc(t, signupDoc)

	tests := []struct {
		name    string
		args    []string
		end     string
		created any
	}{
		{"success", []string{"--set", "email=a@b.c"}, "End.success", "a@b.c"},
		{"failure", nil, "End.failure", nil},
		{"pass fast", []string{"--ctx", `{"email": "a@b.c", "known": true}`}, "End.pass_fast", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"run", path}, tt.args...)...)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			var res runResult
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("decode output: %v\n%s", err, out)
			}
			if res.End != tt.end {
				t.Errorf("expected %s, got %s", tt.end, res.End)
			}
			if res.RunID == "" {
				t.Error("expected a run id")
			}
			if res.Context["created"] != tt.created {
				t.Errorf("expected created %v, got %v", tt.created, res.Context["created"])
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	isolate(t)
	path := writeDoc(t, signupDoc)

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"run", filepath.Join(t.TempDir(), "nope.yaml")}},
		{"bad ctx", []string{"run", path, "--ctx", "{"}},
		{"bad set", []string{"run", path, "--set", "novalue"}},
		{"no file", []string{"run"}},
		{"explicit config missing", []string{"run", path, "--config", filepath.Join(t.TempDir(), "c.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestInspect(t *testing.T) {
	isolate(t)
	out, err := execute(t, "inspect", writeDoc(t, signupDoc))
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}

	for _, want := range []string{
		"ROW",
		"check_email",
		"failure->report",
		"pass_fast->End.pass_fast",
		"success->End.success",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestValidate(t *testing.T) {
	isolate(t)

	out, err := execute(t, "validate", writeDoc(t, signupDoc))
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "ok: 9 rows") {
		t.Errorf("expected ok with 9 rows, got %q", out)
	}

	broken := `
flavor: path
steps:
  - task: signal.right
    magnetic_to: [nothing]
  - task: signal.left
    connect: [{output: success, id: missing}]
`
	out, err = execute(t, "validate", writeDoc(t, broken))
	if err == nil {
		t.Fatal("expected error for unresolved connection")
	}
	if !strings.Contains(out, "warning: row signal.right is unreachable") {
		t.Errorf("expected unreachable warning, got %q", out)
	}
}

func TestHistory(t *testing.T) {
	isolate(t)

	if _, err := execute(t, "history"); err == nil {
		t.Error("expected error without a store")
	}

	t.Setenv("ACTIVITY_STORE_DSN", filepath.Join(t.TempDir(), "trace.db"))
	out, err := execute(t, "run", writeDoc(t, signupDoc), "--set", "email=x")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var res runResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v", err)
	}

	out, err = execute(t, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, res.RunID) || !strings.Contains(out, "invocation_end") {
		t.Errorf("expected run %s listed, got:\n%s", res.RunID, out)
	}

	out, err = execute(t, "history", res.RunID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	for _, want := range []string{"invocation_start", "step_end", "create", "invocation_end"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected events to contain %q, got:\n%s", want, out)
		}
	}

	if _, err := execute(t, "history", "unknown-run"); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestLoadConfig(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logLevel: debug\nlogFormat: json\nstore: memory\nmaxSteps: 50\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	want := Config{LogLevel: "debug", LogFormat: "json", Store: "memory", MaxSteps: 50}
	if !reflect.DeepEqual(*cfg, want) {
		t.Errorf("expected %+v, got %+v", want, *cfg)
	}

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("ACTIVITY_LOG_LEVEL", "warn")
		t.Setenv("ACTIVITY_MAX_STEPS", "7")
		cfg, err := LoadConfig(path, true)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.LogLevel != "warn" || cfg.MaxSteps != 7 {
			t.Errorf("expected env overrides, got %+v", *cfg)
		}
	})

	t.Run("missing default file", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"), false)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
			t.Errorf("expected defaults, got %+v", *cfg)
		}
	})

	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad level", "ACTIVITY_LOG_LEVEL", "loud"},
		{"bad format", "ACTIVITY_LOG_FORMAT", "xml"},
		{"bad max steps", "ACTIVITY_MAX_STEPS", "many"},
		{"negative max steps", "ACTIVITY_MAX_STEPS", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := LoadConfig("", false); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseInput(t *testing.T) {
	got, err := parseInput(`{"a": 1}`, []string{"b=true", "c=hello", "a=2"})
	if err != nil {
		t.Fatalf("parseInput failed: %v", err)
	}
	want := map[string]any{"a": float64(2), "b": true, "c": "hello"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
