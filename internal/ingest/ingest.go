// Package ingest loads intake documents from disk and prepares page images
// for the vision extraction passes.
package ingest

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bardavid-law/intake-cli/internal/config"
	"github.com/bardavid-law/intake-cli/pkg/vision"
)

// Document is a loaded intake document ready for extraction.
type Document struct {
	Path      string
	PageCount int
	Pages     []vision.Image
}

// Loader renders documents into base64 page images.
type Loader struct {
	cfg config.IngestConfig
}

// NewLoader creates a Loader with the given ingest configuration.
func NewLoader(cfg config.IngestConfig) *Loader {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = 150
	}
	if cfg.MaxFileMB <= 0 {
		cfg.MaxFileMB = 32
	}
	return &Loader{cfg: cfg}
}

// Load reads the file at path and returns a Document with one image per
// page. PDFs are rendered to PNG via pdftoppm; JPEG and PNG files are
// passed through as a single page.
func (l *Loader) Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: stat %s", path)
	}
	if info.IsDir() {
		return nil, eris.Errorf("ingest: %s is a directory", path)
	}
	if info.Size() > int64(l.cfg.MaxFileMB)<<20 {
		return nil, eris.Errorf("ingest: %s exceeds %d MB limit", path, l.cfg.MaxFileMB)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return l.loadPDF(path)
	case ".jpg", ".jpeg":
		return l.loadImage(path, "image/jpeg")
	case ".png":
		return l.loadImage(path, "image/png")
	default:
		return nil, eris.Errorf("ingest: unsupported file type %s", filepath.Ext(path))
	}
}

func (l *Loader) loadImage(path, mediaType string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	return &Document{
		Path:      path,
		PageCount: 1,
		Pages: []vision.Image{{
			MediaType: mediaType,
			Data:      base64.StdEncoding.EncodeToString(data),
		}},
	}, nil
}

func (l *Loader) loadPDF(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: page count for %s", path)
	}
	if pageCount == 0 {
		return nil, eris.Errorf("ingest: %s has no pages", path)
	}

	renderCount := pageCount
	if renderCount > l.cfg.MaxPages {
		zap.L().Warn("document truncated to page limit",
			zap.String("path", path),
			zap.Int("pages", pageCount),
			zap.Int("limit", l.cfg.MaxPages),
		)
		renderCount = l.cfg.MaxPages
	}

	tmpDir, err := os.MkdirTemp("", "intake-render-*")
	if err != nil {
		return nil, eris.Wrap(err, "ingest: create temp dir")
	}
	defer os.RemoveAll(tmpDir)

	pages := make([]vision.Image, renderCount)
	var g errgroup.Group
	g.SetLimit(4)
	for page := 1; page <= renderCount; page++ {
		g.Go(func() error {
			data, err := renderPage(path, tmpDir, page, l.cfg.RenderDPI)
			if err != nil {
				return err
			}
			pages[page-1] = vision.Image{
				MediaType: "image/png",
				Data:      base64.StdEncoding.EncodeToString(data),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Document{Path: path, PageCount: pageCount, Pages: pages}, nil
}

// renderPage renders one PDF page to PNG using pdftoppm (poppler-utils).
func renderPage(pdfPath, tmpDir string, page, dpi int) ([]byte, error) {
	outputPrefix := filepath.Join(tmpDir, fmt.Sprintf("page-%04d", page))

	pageStr := fmt.Sprintf("%d", page)
	cmd := exec.Command("pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: pdftoppm page %d (output: %s)", page, string(output))
	}

	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read rendered page %d", page)
	}
	return data, nil
}

// ListDocuments returns supported document paths under dir, sorted by name.
// Used by batch mode to discover an intake folder's contents.
func ListDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read dir %s", dir)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pdf", ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

var checkRenderer sync.Once
var rendererErr error

// CheckRenderer verifies that pdftoppm is available on PATH. Called once
// before the first PDF render so missing poppler fails fast with a clear
// message instead of per-page errors.
func CheckRenderer() error {
	checkRenderer.Do(func() {
		if _, err := exec.LookPath("pdftoppm"); err != nil {
			rendererErr = eris.Wrap(err, "ingest: pdftoppm not found (install poppler-utils)")
		}
	})
	return rendererErr
}
