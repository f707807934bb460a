package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// readDocx pulls paragraph text out of word/document.xml, one line per paragraph.
func readDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return parseDocumentXML(rc)
	}
	return "", fmt.Errorf("docx has no word/document.xml")
}

func parseDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b         strings.Builder
		paragraph []string
		inText    bool
		inRun     bool
		inPara    bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				paragraph = paragraph[:0]
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				// tab stops in paragraph properties share the element name
				if inRun {
					paragraph = append(paragraph, "\t")
				}
			case "br", "cr":
				if inRun {
					paragraph = append(paragraph, "\n")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				if inPara {
					b.WriteString(strings.Join(paragraph, ""))
					b.WriteString("\n")
				}
				inPara = false
			}
		case xml.CharData:
			if inText {
				paragraph = append(paragraph, string(t))
			}
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
