package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
)

type recordingTurns struct {
	turns []*agent.Turn
}

func (r *recordingTurns) AppendTurns(_ context.Context, turns ...*agent.Turn) error {
	r.turns = append(r.turns, turns...)
	return nil
}

func newFileRegistry(t *testing.T, recorder TurnRecorder) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultToolConfig()
	cfg.UploadsDir = filepath.Join(dir, "uploads")
	cfg.ReportsDir = filepath.Join(dir, "reports")
	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	for name, exec := range NewFileTools(cfg, recorder).Executors() {
		r.Register(&Tool{Definition: agent.ToolDefinition{Name: name}, Executor: exec})
	}
	return r, cfg.UploadsDir
}

func TestUploadFile_RecordsAuditTurn(t *testing.T) {
	recorder := &recordingTurns{}
	r, uploads := newFileRegistry(t, recorder)
	if err := os.WriteFile(filepath.Join(uploads, "bank.csv"), []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := execute(t, r, "upload_file", `{"filename":"bank.csv","description":"May statement"}`)
	if res.IsError {
		t.Fatalf("unexpected error: %v", res.Error)
	}
	if len(recorder.turns) != 1 {
		t.Fatalf("recorded %d turns", len(recorder.turns))
	}
	turn := recorder.turns[0]
	if turn.ConversationID != AuditConversationID || turn.Role != agent.RoleSystem || turn.Content != "File uploaded: bank.csv" {
		t.Errorf("unexpected audit turn: %+v", turn)
	}
}

func TestUploadFile_PathTraversal(t *testing.T) {
	recorder := &recordingTurns{}
	r, uploads := newFileRegistry(t, recorder)

	// A file outside uploads must not be reachable through a relative path.
	secret := filepath.Join(filepath.Dir(uploads), "secret.txt")
	if err := os.WriteFile(secret, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"../secret.txt", "/etc/passwd", "..", "uploads/../../secret.txt"} {
		res := execute(t, r, "upload_file", `{"filename":`+quote(name)+`}`)
		if !res.IsError {
			t.Errorf("%q: expected error", name)
			continue
		}
		if res.Error.Code != domain.ToolErrNotFound && res.Error.Code != domain.ToolErrValidation {
			t.Errorf("%q: code = %s", name, res.Error.Code)
		}
	}
	if len(recorder.turns) != 0 {
		t.Errorf("audit turns recorded for rejected uploads: %d", len(recorder.turns))
	}
}

func TestListFiles(t *testing.T) {
	r, uploads := newFileRegistry(t, nil)
	for _, name := range []string{"a.csv", "b.xlsx", "noext"} {
		if err := os.WriteFile(filepath.Join(uploads, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(uploads, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	res := execute(t, r, "list_files", `{"directory":"uploads","limit":2}`)
	out := res.Result.(map[string]interface{})
	if out["count"] != 2 {
		t.Errorf("count = %v", out["count"])
	}

	// Missing reports directory lists nothing
	res = execute(t, r, "list_files", `{"directory":"reports"}`)
	if res.IsError || res.Result.(map[string]interface{})["count"] != 0 {
		t.Errorf("unexpected result: %+v", res)
	}

	res = execute(t, r, "list_files", `{"directory":"/tmp"}`)
	if !res.IsError || res.Error.Code != domain.ToolErrValidation {
		t.Errorf("expected validation error, got %+v", res)
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
