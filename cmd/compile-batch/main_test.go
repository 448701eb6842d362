package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/receipts-compiler/internal/entity"
	"github.com/joseph-ayodele/receipts-compiler/internal/objectstore"
	"github.com/joseph-ayodele/receipts-compiler/internal/repository"
)

// seed creates a local datastore with one user, one expense and one stored
// receipt under dir, then closes it.
func seed(t *testing.T, dir string) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenLocal(ctx, filepath.Join(dir, "receipts.db"), nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer repository.Close(db, nil)

	for _, q := range []string{
		`INSERT INTO profiles (id, full_name, is_admin) VALUES ('alice', 'Alice', false)`,
		`INSERT INTO expenses (id, user_id, job_no, details) VALUES ('E1', 'alice', 'J-1', 'hotel')`,
		`INSERT INTO receipts (id, expense_id, storage_path, created_at) VALUES ('r1', 'E1', 'alice/r1.png', '2025-03-01T09:00:00Z')`,
	} {
		if _, err := db.SQL.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed %q: %v", q, err)
		}
	}

	store, err := objectstore.NewLocalStore(filepath.Join(dir, "objects"), nil)
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	m := image.NewRGBA(image.Rect(0, 0, 20, 30))
	m.Set(2, 2, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := store.Put(ctx, "receipts", "alice/r1.png", buf.Bytes(), "image/png"); err != nil {
		t.Fatalf("store receipt: %v", err)
	}
}

func writeRequest(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "request.json")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write request: %v", err)
	}
	return p
}

func localEnv(t *testing.T) {
	t.Setenv("AMQP_URL", "")
	t.Setenv("RECEIPTS_BUCKET", "receipts")
	t.Setenv("EXPORTS_BUCKET", "exports")
	t.Setenv("EXPORT_MANIFEST", "false")
}

func TestRunCompilesFromFile(t *testing.T) {
	localEnv(t)
	dir := t.TempDir()
	seed(t, dir)
	reqPath := writeRequest(t, dir, `{"expenses":[{"id":"E1","job_no":"J-1"}],"periodLabel":"March 2025","subjectName":"Alice"}`)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--request", reqPath, "--dir", dir, "--as-user", "alice"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}
	var h entity.RetrievalHandle
	if err := json.Unmarshal(stdout.Bytes(), &h); err != nil {
		t.Fatalf("decode handle: %v (%s)", err, stdout.String())
	}
	if h.Filename != "Receipts_Alice_March_2025.pdf" || h.DownloadURL == "" {
		t.Fatalf("unexpected handle %+v", h)
	}

	// A second run against the same files works once the first has released them.
	stdout.Reset()
	if code := run(context.Background(), []string{"--request", reqPath, "--dir", dir, "--as-user", "alice"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("second run exit code %d, stderr:\n%s", code, stderr.String())
	}
}

func TestRunExitCodes(t *testing.T) {
	localEnv(t)
	dir := t.TempDir()
	seed(t, dir)
	good := writeRequest(t, dir, `{"expenses":[{"id":"E1"}]}`)

	cases := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{name: "missing request flag", args: []string{"--dir", dir}, code: exitConfig, stderr: "--request is required"},
		{name: "unreadable request", args: []string{"--request", filepath.Join(dir, "nope.json"), "--dir", dir}, code: exitFailure},
		{name: "no token", args: []string{"--request", good, "--dir", dir}, code: exitCompile, stderr: "Unauthenticated"},
		{name: "bad token", args: []string{"--request", good, "--dir", dir, "--token", "forged"}, code: exitCompile, stderr: "Unauthenticated"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tc.args, &stdout, &stderr)
			if code != tc.code {
				t.Fatalf("exit code %d, want %d; stderr:\n%s", code, tc.code, stderr.String())
			}
			if tc.stderr != "" && !strings.Contains(stderr.String(), tc.stderr) {
				t.Fatalf("stderr missing %q:\n%s", tc.stderr, stderr.String())
			}
			if stdout.Len() != 0 {
				t.Fatalf("failed run wrote a handle: %s", stdout.String())
			}
		})
	}
}
