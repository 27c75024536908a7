// Package receipt checks uploaded receipt files before they are stored.
package receipt

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
)

const mimePDF = "application/pdf"

// Inspector opens PDFs with MuPDF and decodes image headers so broken or disguised files
// are refused at upload
type Inspector struct {
	maxPages int
	logger   *zap.Logger
}

// NewInspector creates an Inspector. maxPages <= 0 disables the page limit.
func NewInspector(maxPages int, logger *zap.Logger) port.ReceiptInspector {
	return &Inspector{
		maxPages: maxPages,
		logger:   logger,
	}
}

// Inspect returns the receipt's MIME type and page count
func (i *Inspector) Inspect(ctx context.Context, filename string, content []byte) (*port.ReceiptInfo, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	sniffed := http.DetectContentType(content)

	switch ext {
	case ".pdf":
		if sniffed != mimePDF {
			return nil, fmt.Errorf("%s is not a PDF (detected %s)", filename, sniffed)
		}
		return i.inspectPDF(filename, content)
	case ".jpg", ".jpeg", ".png":
		return i.inspectImage(filename, content, sniffed)
	default:
		return nil, fmt.Errorf("unsupported receipt type %q", ext)
	}
}

func (i *Inspector) inspectPDF(filename string, content []byte) (*port.ReceiptInfo, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		i.logger.Warn("Failed to open PDF receipt", zap.String("file", filename), zap.Error(err))
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages < 1 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	if i.maxPages > 0 && pages > i.maxPages {
		return nil, fmt.Errorf("PDF has %d pages, at most %d allowed", pages, i.maxPages)
	}

	i.logger.Debug("Inspected PDF receipt", zap.String("file", filename), zap.Int("pages", pages))
	return &port.ReceiptInfo{MimeType: mimePDF, PageCount: pages}, nil
}

func (i *Inspector) inspectImage(filename string, content []byte, sniffed string) (*port.ReceiptInfo, error) {
	if sniffed != "image/jpeg" && sniffed != "image/png" {
		return nil, fmt.Errorf("%s is not a JPEG or PNG image (detected %s)", filename, sniffed)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	i.logger.Debug("Inspected image receipt",
		zap.String("file", filename),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height))
	return &port.ReceiptInfo{MimeType: sniffed, PageCount: 1}, nil
}
