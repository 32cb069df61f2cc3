package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/config"
)

func init() {
	Register("file", func(cfg config.Config, _ *slog.Logger) (Source, error) {
		return NewDir(cfg.DataDir)
	})
}

// Dir reads files below a root directory.
type Dir struct {
	root string
	fsys fs.FS
}

func NewDir(root string) (*Dir, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("data dir %q is not a directory", root)
	}
	return &Dir{root: root, fsys: os.DirFS(root)}, nil
}

// NewFS serves files from fsys; used for embedded or test data.
func NewFS(fsys fs.FS) *Dir {
	return &Dir{root: "fs", fsys: fsys}
}

func (d *Dir) Name() string { return "file" }

func (d *Dir) Root() string { return d.root }

func (d *Dir) FS() fs.FS { return d.fsys }

func (d *Dir) Fetch(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p, err)
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if !fs.ValidPath(p) || p == "." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	f, err := d.fsys.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	if len(b) > MaxFileSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, p)
	}
	return b, nil
}
