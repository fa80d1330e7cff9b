package pdf

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal PDF with one Helvetica text page per content
// stream, with xref offsets computed as it goes.
func buildPDF(contents ...string) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	// 1 catalog, 2 pages, 3 font, then page/content pairs
	kids := ""
	for i := range contents {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>", kids, len(contents)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	for i, c := range contents {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(c), c))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestReaderExtractText(t *testing.T) {
	data := buildPDF(
		"BT /F1 12 Tf 72 720 Td (Hemoglobin    13.5 g/dL) Tj 0 -14 Td (WBC 7.2) Tj ET",
		"BT /F1 12 Tf 72 720 Td [(Glucose)-300(  95 mg/dL)] TJ ET",
	)
	r := NewReader()

	info, err := r.Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, 2, info.PageCount)

	text, err := r.ExtractText(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "Hemoglobin 13.5 g/dL WBC 7.2\nGlucose 95 mg/dL", text)
}

func TestReaderExtractTextNoText(t *testing.T) {
	data := buildPDF("0 0 m 100 100 l S")

	text, err := NewReader().ExtractText(context.Background(), data)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestReaderExtractTextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReader().ExtractText(ctx, buildPDF("BT (x) Tj ET"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "a b c", collapseSpace("  a\t b\n\nc  "))
	assert.Equal(t, "", collapseSpace(" \n "))
}
