package docsource

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kbforge/ragpipe/internal/logutil"
	"github.com/kbforge/ragpipe/internal/model"
	appErr "github.com/kbforge/ragpipe/internal/pkg/errors"
)

var supportedExtensions = map[string]struct{}{
	".txt": {},
	".md":  {},
}

// Loader reads knowledge-base source documents from a directory tree.
// Only plain-text formats are read; everything else is skipped with a log
// line rather than an error, so one stray PDF does not sink a whole run.
type Loader struct {
	root string
}

func NewLoader(root string) (*Loader, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: document directory is required", appErr.ErrConfiguration)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", appErr.ErrConfiguration, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", appErr.ErrConfiguration, root)
	}
	return &Loader{root: root}, nil
}

// Load walks the root and returns every supported document, sorted by name
// so repeated runs see a stable order. The document name is the path
// relative to the root with the extension dropped.
func (l *Loader) Load(ctx context.Context) ([]model.Document, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("root", l.root))

	var docs []model.Document
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != l.root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := supportedExtensions[ext]; !ok {
			logger.Debug("skipping unsupported file", zap.String("file", path))
			return nil
		}
		doc, err := l.read(path, d)
		if err != nil {
			logger.Warn("skipping unreadable file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if strings.TrimSpace(doc.Text) == "" {
			logger.Warn("skipping empty file", zap.String("file", path))
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", l.root, err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	logger.Info("documents loaded", zap.Int("count", len(docs)))
	return docs, nil
}

func (l *Loader) read(path string, d fs.DirEntry) (model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, err
	}
	info, err := d.Info()
	if err != nil {
		return model.Document{}, err
	}
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	name := strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
	return model.Document{
		Name:         name,
		Text:         string(data),
		DiscoveredAt: info.ModTime(),
	}, nil
}
