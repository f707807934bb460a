package extract

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pythagorean/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractText(t *testing.T) {
	path := writeFile(t, "notes.md", "# Title\n\nbody \xff text\x00\n")
	res, err := New().Extract(path)
	require.NoError(t, err)
	assert.Equal(t, TypeText, res.FileType)
	assert.Equal(t, "# Title\n\nbody  text", res.Text)
}

func TestExtractUnsupported(t *testing.T) {
	path := writeFile(t, "slides.pptx", "whatever")
	_, err := New().Extract(path)
	require.Error(t, err)
	assert.Equal(t, util.KindInvalidArgument, util.KindOf(err))
	assert.True(t, errors.Is(err, util.ErrUnsupportedType))
	assert.False(t, New().Supported("slides.pptx"))
	assert.True(t, New().Supported("REPORT.PDF"))
}

func TestExtractCorruptPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", "this is not a pdf")
	_, err := New().Extract(path)
	require.Error(t, err)
	assert.Equal(t, util.KindExtraction, util.KindOf(err))
}

func TestExtractDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>First </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t><w:tab/><w:t>line.</w:t></w:r></w:p>
  </w:body>
</w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	res, err := New().Extract(path)
	require.NoError(t, err)
	assert.Equal(t, TypeDocx, res.FileType)
	assert.Equal(t, "First paragraph.\nSecond\tline.", res.Text)
}

func TestExtractExcelFirstSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.xlsx")
	wb := excelize.NewFile()
	require.NoError(t, wb.SetCellValue("Sheet1", "A1", "item"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B1", "cost"))
	require.NoError(t, wb.SetCellValue("Sheet1", "A2", "rent"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B2", 1200))
	_, err := wb.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, wb.SetCellValue("Other", "A1", "ignored"))
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	res, err := New().Extract(path)
	require.NoError(t, err)
	assert.Equal(t, TypeExcel, res.FileType)
	assert.Equal(t, "item\tcost\nrent\t1200", res.Text)
}
