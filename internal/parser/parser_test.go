package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// buildPDF returns a minimal PDF with one page per entry of pages. An empty
// entry yields a page without text.
func buildPDF(pages []string) []byte {
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	objects = append(objects,
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		content := "BT ET"
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestLoadDocuments_PDFPages(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "report.pdf", buildPDF([]string{"Hello first page", "", "Third page text"}))

	res, err := LoadDocuments(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, res.Documents, 2)

	first, third := res.Documents[0], res.Documents[1]
	assert.Equal(t, path, first.Source)
	require.NotNil(t, first.Page)
	assert.Equal(t, 1, *first.Page)
	assert.Contains(t, first.Text, "Hello first page")

	require.NotNil(t, third.Page)
	assert.Equal(t, 3, *third.Page)
	assert.Contains(t, third.Text, "Third page text")
	assert.Empty(t, res.Skipped)
}

func TestSupportedExtensions(t *testing.T) {
	assert.Equal(t, []string{".pdf", ".txt"}, SupportedExtensions())
	assert.True(t, IsSupported("a/REPORT.PDF"))
	assert.True(t, IsSupported("notes.txt"))
	assert.False(t, IsSupported("slides.pptx"))
	assert.False(t, IsSupported("README"))
}

func TestLoadDocuments_Text(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sky.txt", []byte("The sky is blue."))

	res, err := LoadDocuments(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)

	doc := res.Documents[0]
	assert.Equal(t, "The sky is blue.", doc.Text)
	assert.Equal(t, path, doc.Source)
	assert.Nil(t, doc.Page)
	assert.Empty(t, res.Skipped)
}

func TestLoadDocuments_StripsBOM(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bom.txt", []byte("\xef\xbb\xbfhello"))

	res, err := LoadDocuments(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "hello", res.Documents[0].Text)
}

func TestLoadDocuments_SkipsUnsupportedAndKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "b.txt", []byte("second letter"))
	skipped := writeFile(t, dir, "deck.pptx", []byte("binary"))
	last := writeFile(t, dir, "A.TXT", []byte("first letter"))

	res, err := LoadDocuments(context.Background(), []string{first, skipped, last})
	require.NoError(t, err)

	require.Len(t, res.Documents, 2)
	assert.Equal(t, first, res.Documents[0].Source)
	assert.Equal(t, last, res.Documents[1].Source)
	assert.Equal(t, []string{skipped}, res.Skipped)
}

func TestLoadDocuments_OnlyUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.csv", []byte("a,b"))

	res, err := LoadDocuments(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.Equal(t, []string{path}, res.Skipped)
}

func TestLoadDocuments_BlankTextContributesNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blank.txt", []byte(" \n\t\n"))

	res, err := LoadDocuments(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
}

func TestLoadDocuments_Errors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", []byte("fine"))
	badText := writeFile(t, dir, "latin1.txt", []byte{0x63, 0x61, 0x66, 0xe9, 0xff})
	badPDF := writeFile(t, dir, "broken.pdf", []byte("this is not a pdf at all"))
	missing := filepath.Join(dir, "missing.txt")

	tests := []struct {
		name  string
		paths []string
		file  string
	}{
		{"invalid encoding", []string{good, badText}, badText},
		{"corrupt pdf", []string{badPDF, good}, badPDF},
		{"missing file", []string{missing}, missing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := LoadDocuments(context.Background(), tt.paths)
			require.Error(t, err)
			assert.Nil(t, res)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.file, loadErr.File)
			assert.Contains(t, err.Error(), filepath.Base(tt.file))
		})
	}

	_, err := LoadDocuments(context.Background(), []string{badText})
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestLoadDocuments_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", []byte("text"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadDocuments(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}
