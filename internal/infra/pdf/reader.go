package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/bryanwahyu/bloodreport-ai/internal/domain/reports"
)

var pageSuffix = regexp.MustCompile(`(\d+)\.txt$`)

// Reader validates and extracts text from PDF reports using pdfcpu.
type Reader struct {
	conf *model.Configuration
}

func NewReader() *Reader {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Reader{conf: conf}
}

func (r *Reader) Inspect(data []byte) (reports.PDFInfo, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return reports.PDFInfo{}, reports.ErrInvalidPDF
	}
	if err := api.Validate(bytes.NewReader(data), r.conf); err != nil {
		return reports.PDFInfo{}, fmt.Errorf("%w: %v", reports.ErrInvalidPDF, err)
	}
	n, err := api.PageCount(bytes.NewReader(data), r.conf)
	if err != nil {
		return reports.PDFInfo{}, fmt.Errorf("%w: %v", reports.ErrInvalidPDF, err)
	}
	return reports.PDFInfo{PageCount: n}, nil
}

// ExtractText dumps every page content stream and pulls the shown strings out of it.
// Each page is collapsed to a single line of text; pages are joined by "\n".
// Scanned reports yield "".
func (r *Reader) ExtractText(ctx context.Context, data []byte) (string, error) {
	dir, err := os.MkdirTemp("", "report-content-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	if err := api.ExtractContent(bytes.NewReader(data), dir, "report", nil, r.conf); err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Slice(files, func(i, j int) bool { return pageNumber(files[i]) < pageNumber(files[j]) })

	var pages []string
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", err
		}
		if txt := collapseSpace(TextFromContent(raw)); txt != "" {
			pages = append(pages, txt)
		}
	}
	return strings.Join(pages, "\n"), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func pageNumber(name string) int {
	m := pageSuffix.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
