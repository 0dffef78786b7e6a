package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

// stateDocs are the durable documents the engine persists locally. The
// archiver uploads each one when present.
var stateDocs = []string{"positions.json", "blacklist.json", "stats.json"}

// Archiver periodically uploads the engine's state documents to object
// storage: a dated copy for history and a latest/ copy for recovery. The
// local files remain the source of truth; the archive is an off-host backup.
type Archiver struct {
	writer   domain.BlobWriter
	stateDir string
	interval time.Duration
	logger   *slog.Logger
}

// NewArchiver creates an Archiver that uploads the documents under stateDir
// every interval.
func NewArchiver(writer domain.BlobWriter, stateDir string, interval time.Duration, logger *slog.Logger) *Archiver {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Archiver{
		writer:   writer,
		stateDir: stateDir,
		interval: interval,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// Run uploads once immediately, then on every interval tick until the
// context ends. Upload failures are logged and retried on the next tick.
func (a *Archiver) Run(ctx context.Context) error {
	if err := a.ArchiveNow(ctx); err != nil {
		a.logger.Warn("initial state archive failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.ArchiveNow(ctx); err != nil {
				a.logger.Warn("state archive failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ArchiveNow uploads every present state document. Missing documents are
// skipped; any upload failure aborts the pass.
func (a *Archiver) ArchiveNow(ctx context.Context) error {
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")
	uploaded := 0

	for _, doc := range stateDocs {
		data, err := os.ReadFile(filepath.Join(a.stateDir, doc))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("s3blob: read state doc %s: %w", doc, err)
		}

		for _, key := range []string{
			fmt.Sprintf("state/%s/%s", stamp, doc),
			"state/latest/" + doc,
		} {
			if err := a.writer.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
				return fmt.Errorf("s3blob: archive %s: %w", doc, err)
			}
		}
		uploaded++
	}

	if uploaded > 0 {
		a.logger.Debug("state archived",
			slog.Int("documents", uploaded),
			slog.String("stamp", stamp),
		)
	}
	return nil
}

// RestoreLatest downloads the latest/ copy of each state document that is
// missing under stateDir. Documents already present locally are never
// overwritten; the local files stay the source of truth. It returns the
// number of documents restored.
func RestoreLatest(ctx context.Context, reader domain.BlobReader, stateDir string, logger *slog.Logger) (int, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return 0, fmt.Errorf("s3blob: state dir %s: %w", stateDir, err)
	}

	restored := 0
	for _, doc := range stateDocs {
		local := filepath.Join(stateDir, doc)
		if _, err := os.Stat(local); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return restored, fmt.Errorf("s3blob: stat %s: %w", local, err)
		}

		body, err := reader.Get(ctx, "state/latest/"+doc)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return restored, fmt.Errorf("s3blob: restore %s: %w", doc, err)
		}
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			return restored, fmt.Errorf("s3blob: restore %s: %w", doc, err)
		}
		if err := os.WriteFile(local, data, 0o644); err != nil {
			return restored, fmt.Errorf("s3blob: restore %s: %w", doc, err)
		}

		logger.Info("state document restored from archive",
			slog.String("document", doc),
			slog.Int("bytes", len(data)),
		)
		restored++
	}
	return restored, nil
}
