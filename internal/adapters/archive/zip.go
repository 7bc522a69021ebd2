package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"review_harvester/internal/domain"
)

// Zip writes each archive as <Dir>/<name>.zip.
type Zip struct {
	Dir string
	now func() time.Time
}

func NewZip(dir string) *Zip { return &Zip{Dir: dir, now: time.Now} }

func (z *Zip) Archive(ctx context.Context, name string, files []domain.ArchiveFile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(z.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(z.Dir, name+".zip")
	// write next to the target and rename so a crash never leaves half a zip
	tmp, err := os.CreateTemp(z.Dir, name+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	zw := zip.NewWriter(tmp)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: z.now()})
		if err != nil {
			tmp.Close()
			return "", fmt.Errorf("add %s: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			tmp.Close()
			return "", fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	log.Info().Str("path", path).Int("files", len(files)).Msg("report archived")
	return path, nil
}
