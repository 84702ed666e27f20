package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalFile reads a CSV document from disk
type LocalFile struct {
	DatasetName string
	Path        string
	Cols        Columns
}

func NewLocalFile(name, path string, cols Columns) *LocalFile {
	return &LocalFile{DatasetName: name, Path: path, Cols: cols}
}

func (l *LocalFile) Name() string        { return l.DatasetName }
func (l *LocalFile) RawFilename() string { return filepath.Base(l.Path) }
func (l *LocalFile) Columns() Columns    { return l.Cols }

func (l *LocalFile) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s, %w", l.Path, err)
	}
	return raw, nil
}

func (l *LocalFile) Parse(raw []byte) (*Table, error) {
	return ParseCSV(raw)
}
