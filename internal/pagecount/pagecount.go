// Package pagecount estimates how many pages an uploaded document has.
package pagecount

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// Fallback is used whenever a document cannot be inspected.
const Fallback = 1

var docxPages = regexp.MustCompile(`<Pages>(\d+)</Pages>`)

var disableConfigDir sync.Once

// Resolver counts pages of PDF and DOCX documents. It never fails: unknown
// formats and unreadable files count as a single page.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver builds a Resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	// pdfcpu otherwise creates a config directory under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)
	return &Resolver{logger: logger}
}

// Resolve returns the page count of data, using name to pick the format.
func (r *Resolver) Resolve(name string, data []byte) int {
	var (
		pages int
		err   error
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		pages, err = countPDF(data)
	case ".docx":
		pages, err = countDOCX(data)
	default:
		return Fallback
	}
	if err == nil && pages < 1 {
		err = fmt.Errorf("document reports %d pages", pages)
	}
	if err != nil {
		r.logger.Warn("page count unavailable, using fallback", zap.String("file", name), zap.Error(err))
		return Fallback
	}
	return pages
}

// countPDF reads the page tree, so objects rewritten by incremental updates
// are counted once.
func countPDF(data []byte) (pages int, err error) {
	defer func() {
		if p := recover(); p != nil {
			pages, err = 0, fmt.Errorf("pdf parser panic: %v", p)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}

func countDOCX(data []byte) (int, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	for _, f := range zr.File {
		if f.Name != "docProps/app.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return 0, err
		}
		xml, err := io.ReadAll(io.LimitReader(rc, 1<<20))
		_ = rc.Close()
		if err != nil {
			return 0, err
		}
		m := docxPages.FindSubmatch(xml)
		if m == nil {
			return 0, errors.New("docProps/app.xml has no page count")
		}
		return strconv.Atoi(string(m[1]))
	}
	return 0, errors.New("docProps/app.xml is missing")
}
