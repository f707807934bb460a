// Package extract turns uploaded files into plain text for chunking.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pythagorean/internal/util"
)

const (
	TypePDF   = "pdf"
	TypeDocx  = "docx"
	TypeExcel = "excel"
	TypeText  = "text"
)

type Result struct {
	Text     string `json:"text"`
	FileType string `json:"file_type"`
}

type readerFunc func(path string) (string, error)

// Extractor dispatches on file extension. Unknown extensions fail with an
// invalid-argument error, reader failures with an extraction error.
type Extractor struct {
	readers map[string]readerFunc
	types   map[string]string
}

func New() *Extractor {
	e := &Extractor{readers: map[string]readerFunc{}, types: map[string]string{}}
	e.register(TypePDF, readPDF, ".pdf")
	e.register(TypeDocx, readDocx, ".docx", ".doc")
	e.register(TypeExcel, readExcel, ".xlsx", ".xls")
	e.register(TypeText, readText, ".txt", ".md")
	return e
}

func (e *Extractor) register(fileType string, fn readerFunc, exts ...string) {
	for _, ext := range exts {
		e.readers[ext] = fn
		e.types[ext] = fileType
	}
}

// Supported reports whether name has an extension Extract can read.
func (e *Extractor) Supported(name string) bool {
	_, ok := e.readers[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (e *Extractor) Extract(path string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	fn, ok := e.readers[ext]
	if !ok {
		return Result{}, fmt.Errorf("%q: %w", ext, util.ErrUnsupportedType)
	}
	text, err := fn(path)
	if err != nil {
		return Result{}, util.Wrap(util.KindExtraction, "extract "+ext, err)
	}
	return Result{Text: util.SanitizeText(text), FileType: e.types[ext]}, nil
}

func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	return strings.ToValidUTF8(string(b), ""), nil
}
