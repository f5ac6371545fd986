package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"SejmAudit/internal/domain"
)

// docxText reads the main document part of the OOXML container and collects
// character data, inserting breaks at paragraph ends.
func docxText(_ context.Context, data []byte) (domain.ExtractionResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("open docx container: %w", err)
	}

	var res domain.ExtractionResult

	body, err := readZipEntry(zr, "word/document.xml")
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("read document part: %w", err)
	}
	text, err := ooxmlCharData(body)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("parse document part: %w", err)
	}
	res.Text = text

	// Author and creation date live in the core-properties part; optional.
	if core, err := readZipEntry(zr, "docProps/core.xml"); err == nil {
		res.Author, res.FileDate = coreProperties(core)
	}

	return res, nil
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("entry %s not found", name)
}

// ooxmlCharData walks XML tokens collecting text, with newlines on paragraph
// boundaries so downstream keyword matching keeps word separation.
func ooxmlCharData(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "tr" {
				sb.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func coreProperties(body []byte) (author, created string) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var current string
	for {
		tok, err := dec.Token()
		if err != nil {
			return author, created
		}
		switch t := tok.(type) {
		case xml.StartElement:
			current = t.Name.Local
		case xml.CharData:
			switch current {
			case "creator":
				author = strings.TrimSpace(string(t))
			case "created":
				created = strings.TrimSpace(string(t))
			}
		case xml.EndElement:
			current = ""
		}
	}
}
