// Package filesystem turns local files and directories into documents for
// ingestion.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// DefaultMaxFileSize is the largest file read by default (50 MiB).
const DefaultMaxFileSize int64 = 50 << 20

// Skipped records a file found while walking a directory that was not
// turned into a document.
type Skipped struct {
	Path   string
	Reason string
}

// Connector reads documents from the local filesystem.
type Connector struct {
	typeOverride domain.DocumentType
	maxFileSize  int64
}

// Option configures the connector.
type Option func(*Connector)

// WithType forces every file to be read as t instead of detecting the type
// from its extension.
func WithType(t domain.DocumentType) Option {
	return func(c *Connector) {
		c.typeOverride = t
	}
}

// WithMaxFileSize sets the size above which files are refused.
func WithMaxFileSize(n int64) Option {
	return func(c *Connector) {
		c.maxFileSize = n
	}
}

// New creates a filesystem connector.
func New(opts ...Option) *Connector {
	c := &Connector{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect reads every path into a document. A path naming a file must be
// readable and of a supported type. A directory is walked recursively,
// skipping hidden entries; files in it that cannot be used are reported as
// skipped instead of failing the call.
func (c *Connector) Collect(ctx context.Context, paths []string) ([]domain.Document, []Skipped, error) {
	var (
		docs    []domain.Document
		skipped []Skipped
	)

	for _, p := range paths {
		p = filepath.Clean(ResolvePath(p))
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil, fmt.Errorf("%w: %s does not exist", domain.ErrNotFound, p)
			}
			return nil, nil, fmt.Errorf("stat %s: %w", p, err)
		}

		if !info.IsDir() {
			doc, err := c.read(p, info)
			if err != nil {
				return nil, nil, err
			}
			docs = append(docs, doc)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if path != p && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			doc, err := c.read(path, info)
			if err != nil {
				logger.Debug("Skipping %s: %v", path, err)
				skipped = append(skipped, Skipped{Path: path, Reason: err.Error()})
				return nil
			}
			docs = append(docs, doc)
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}

	logger.Debug("Collected %d document(s), skipped %d file(s)", len(docs), len(skipped))
	return docs, skipped, nil
}

func (c *Connector) read(path string, info fs.FileInfo) (domain.Document, error) {
	docType := c.typeOverride
	if docType == "" {
		t, err := domain.DocumentTypeFromPath(path)
		if err != nil {
			return domain.Document{}, err
		}
		docType = t
	}
	if c.maxFileSize > 0 && info.Size() > c.maxFileSize {
		return domain.Document{}, fmt.Errorf("%w: %s is %d bytes, limit is %d",
			domain.ErrInvalidInput, path, info.Size(), c.maxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w", path, err)
	}

	name := filepath.Base(path)
	return domain.Document{
		ID:      filepath.ToSlash(path),
		Name:    name,
		Type:    docType,
		Content: content,
		Metadata: map[string]string{
			"filename":  name,
			"extension": strings.TrimPrefix(filepath.Ext(name), "."),
			"path":      path,
		},
	}, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
