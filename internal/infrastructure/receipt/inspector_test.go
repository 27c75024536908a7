package receipt

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// minimalPDF builds a small well-formed PDF with the given number of blank pages
func minimalPDF(pages int) []byte {
	var objs []string
	kids := make([]string, pages)
	for p := 0; p < pages; p++ {
		kids[p] = fmt.Sprintf("%d 0 R", p+3)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages),
	)
	for p := 0; p < pages; p++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for n, obj := range objs {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestInspector_PDF(t *testing.T) {
	inspector := NewInspector(5, zap.NewNop())

	info, err := inspector.Inspect(context.Background(), "receipt.PDF", minimalPDF(2))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", info.MimeType)
	assert.Equal(t, 2, info.PageCount)
}

func TestInspector_PDFPageLimit(t *testing.T) {
	inspector := NewInspector(1, zap.NewNop())

	_, err := inspector.Inspect(context.Background(), "receipt.pdf", minimalPDF(3))
	assert.ErrorContains(t, err, "at most 1")
}

func TestInspector_Image(t *testing.T) {
	inspector := NewInspector(0, zap.NewNop())

	info, err := inspector.Inspect(context.Background(), "photo.png", pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.MimeType)
	assert.Equal(t, 1, info.PageCount)
}

func TestInspector_Rejects(t *testing.T) {
	inspector := NewInspector(0, zap.NewNop())
	png := pngBytes(t)

	tests := []struct {
		name     string
		filename string
		content  []byte
	}{
		{name: "empty", filename: "a.pdf", content: nil},
		{name: "text disguised as pdf", filename: "a.pdf", content: []byte("just some text")},
		{name: "png named pdf", filename: "a.pdf", content: png},
		{name: "text named jpg", filename: "a.jpg", content: []byte("hello")},
		{name: "truncated png", filename: "a.png", content: png[:12]},
		{name: "unsupported extension", filename: "a.docx", content: []byte("PK")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inspector.Inspect(context.Background(), tt.filename, tt.content)
			assert.Error(t, err)
		})
	}
}
