package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

type captureWriter struct {
	err  error
	puts map[string][]byte
}

func (w *captureWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.err != nil {
		return w.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if w.puts == nil {
		w.puts = make(map[string][]byte)
	}
	w.puts[path] = b
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiveNow_UploadsPresentDocs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "positions.json"), []byte(`{"positions":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stats.json"), []byte(`{"lifetime":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	// blacklist.json deliberately absent

	w := &captureWriter{}
	a := NewArchiver(w, dir, time.Hour, testLogger())

	if err := a.ArchiveNow(context.Background()); err != nil {
		t.Fatalf("ArchiveNow: %v", err)
	}

	// Two documents, each under a dated key and a latest key.
	if len(w.puts) != 4 {
		t.Fatalf("uploaded %d objects, want 4: %v", len(w.puts), keysOf(w.puts))
	}
	if got, ok := w.puts["state/latest/positions.json"]; !ok || string(got) != `{"positions":{}}` {
		t.Errorf("latest positions upload = %q", got)
	}
	var dated int
	for key := range w.puts {
		if strings.HasPrefix(key, "state/") && !strings.HasPrefix(key, "state/latest/") {
			dated++
		}
	}
	if dated != 2 {
		t.Errorf("dated uploads = %d, want 2", dated)
	}
	for key := range w.puts {
		if strings.Contains(key, "blacklist") {
			t.Errorf("absent document uploaded: %s", key)
		}
	}
}

func TestArchiveNow_WriterFailureAborts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "positions.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	w := &captureWriter{err: errors.New("bucket gone")}
	a := NewArchiver(w, dir, time.Hour, testLogger())

	if err := a.ArchiveNow(context.Background()); err == nil {
		t.Error("upload failure must surface an error")
	}
}

func TestArchiveNow_EmptyStateDirIsNoop(t *testing.T) {
	w := &captureWriter{}
	a := NewArchiver(w, t.TempDir(), time.Hour, testLogger())

	if err := a.ArchiveNow(context.Background()); err != nil {
		t.Fatalf("ArchiveNow: %v", err)
	}
	if len(w.puts) != 0 {
		t.Errorf("uploaded %d objects from an empty dir", len(w.puts))
	}
}

func keysOf(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

type fakeReader struct {
	objects map[string][]byte
}

func (r *fakeReader) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := r.objects[path]
	if !ok {
		return nil, fmt.Errorf("s3blob: get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (r *fakeReader) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for key, b := range r.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, domain.BlobInfo{Path: key, Size: int64(len(b))})
		}
	}
	return infos, nil
}

func TestRestoreLatest_PullsMissingDocs(t *testing.T) {
	dir := t.TempDir()
	r := &fakeReader{objects: map[string][]byte{
		"state/latest/positions.json": []byte(`{"token-1":{}}`),
		"state/latest/stats.json":     []byte(`{"lifetime":{}}`),
	}}

	restored, err := RestoreLatest(context.Background(), r, dir, testLogger())
	if err != nil {
		t.Fatalf("RestoreLatest: %v", err)
	}
	if restored != 2 {
		t.Errorf("restored = %d, want 2", restored)
	}

	got, err := os.ReadFile(filepath.Join(dir, "positions.json"))
	if err != nil {
		t.Fatalf("restored positions.json missing: %v", err)
	}
	if string(got) != `{"token-1":{}}` {
		t.Errorf("positions.json = %q", got)
	}
	// blacklist.json has no archived copy and is simply absent.
	if _, err := os.Stat(filepath.Join(dir, "blacklist.json")); !os.IsNotExist(err) {
		t.Error("document without an archive copy must not be created")
	}
}

func TestRestoreLatest_NeverOverwritesLocal(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "positions.json")
	if err := os.WriteFile(local, []byte(`{"local":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	r := &fakeReader{objects: map[string][]byte{
		"state/latest/positions.json": []byte(`{"remote":{}}`),
	}}

	restored, err := RestoreLatest(context.Background(), r, dir, testLogger())
	if err != nil {
		t.Fatalf("RestoreLatest: %v", err)
	}
	if restored != 0 {
		t.Errorf("restored = %d, want 0 with local files present", restored)
	}
	got, _ := os.ReadFile(local)
	if string(got) != `{"local":{}}` {
		t.Errorf("local document = %q, must stay untouched", got)
	}
}

func TestRestoreLatest_EmptyArchive(t *testing.T) {
	restored, err := RestoreLatest(context.Background(), &fakeReader{}, t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("RestoreLatest: %v", err)
	}
	if restored != 0 {
		t.Errorf("restored = %d, want 0 from an empty archive", restored)
	}
}
