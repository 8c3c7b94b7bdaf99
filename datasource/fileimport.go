package datasource

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/pipeline"
)

// FileImport reads local files into records. Each configured path may
// be a file, a directory (walked recursively), a glob pattern, or a
// zip archive whose entries are read individually.
type FileImport struct {
	paths []string
	tags  []string
	log   *slog.Logger
}

func NewFileImport(cfg pipeline.Config, env Env) (DataSource, error) {
	paths := cfg.Strings("files")
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: fileimport needs files", ErrBadConfig)
	}
	log := env.Log
	if log == nil {
		log = slog.Default()
	}
	return &FileImport{paths: paths, tags: cfg.Strings("tags"), log: log}, nil
}

func (f *FileImport) Fetch(ctx context.Context) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		for _, p := range f.paths {
			matches, err := expandPath(p)
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			for _, m := range matches {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return
				}
				if !f.emitPath(ctx, m, yield) {
					return
				}
			}
		}
	}
}

// expandPath resolves one configured path to concrete files.
func expandPath(p string) ([]string, error) {
	info, err := os.Stat(p)
	if err == nil && info.IsDir() {
		var files []string
		err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		return files, err
	}
	if err == nil {
		return []string{p}, nil
	}
	matches, gerr := filepath.Glob(p)
	if gerr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadConfig, p, gerr)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("fileimport: %s: %w", p, err)
	}
	return matches, nil
}

func (f *FileImport) emitPath(ctx context.Context, path string, yield func(*core.Record, error) bool) bool {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return f.emitArchive(ctx, path, yield)
	}
	rec, err := f.readFile(path)
	if err != nil {
		return yield(nil, err)
	}
	return yield(rec, nil)
}

func (f *FileImport) readFile(path string) (*core.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fileimport: %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("fileimport: %s: %w", path, err)
	}
	rec := core.NewRecord(0)
	rec.Set(core.FieldContent, string(data))
	rec.Set(core.FieldDate, info.ModTime())
	rec.Set("source.file", filepath.ToSlash(path))
	if len(f.tags) > 0 {
		rec.SetTags(f.tags)
	}
	return rec, nil
}

func (f *FileImport) emitArchive(ctx context.Context, path string, yield func(*core.Record, error) bool) bool {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return yield(nil, fmt.Errorf("fileimport: %s: %w", path, err))
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if ctx.Err() != nil {
			return yield(nil, ctx.Err())
		}
		if entry.FileInfo().IsDir() {
			continue
		}
		rec, err := f.readEntry(path, entry)
		if err != nil {
			f.log.Warn("skipping archive entry", "archive", path, "entry", entry.Name, "error", err)
			continue
		}
		if !yield(rec, nil) {
			return false
		}
	}
	return true
}

func (f *FileImport) readEntry(archive string, entry *zip.File) (*core.Record, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	rec := core.NewRecord(0)
	rec.Set(core.FieldContent, string(data))
	rec.Set(core.FieldDate, entry.Modified)
	rec.Set("source.file", filepath.ToSlash(archive)+"#"+entry.Name)
	if len(f.tags) > 0 {
		rec.SetTags(f.tags)
	}
	return rec, nil
}
