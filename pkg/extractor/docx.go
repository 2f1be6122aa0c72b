package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"docubot-be/pkg/apperror"
)

const (
	documentPart = "word/document.xml"

	wordNS         = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	wordStrictNS   = "http://purl.oclc.org/ooxml/wordprocessingml/main"
	markupCompatNS = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// extractWord reads the paragraphs of an OOXML package. Legacy binary .doc
// files are not zip archives and fail here.
func extractWord(content []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", apperror.Wrap(apperror.ErrExtraction, "open word document", err)
	}

	var part *zip.File
	for _, f := range archive.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return "", apperror.New(apperror.ErrExtraction, "word document has no "+documentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return "", apperror.Wrap(apperror.ErrExtraction, "open "+documentPart, err)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(rc)
	if err != nil {
		return "", apperror.Wrap(apperror.ErrExtraction, "parse "+documentPart, err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

// paragraph holds the run text of one w:p. Paragraphs nested inside it,
// such as text box content, are emitted after it.
type paragraph struct {
	text   strings.Builder
	nested []string
}

// readParagraphs emits one entry per top level w:p. Text counts only from
// w:t, w:tab, w:br and w:cr that are direct children of a w:r run.
func readParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		open       []xml.Name
		stack      []*paragraph
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if skipSubtree(el.Name) {
				if err := decoder.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			if len(stack) > 0 && len(open) > 0 && isWord(open[len(open)-1], "r") {
				current := stack[len(stack)-1]
				switch {
				case isWord(el.Name, "tab"):
					current.text.WriteByte('\t')
				case isWord(el.Name, "br"), isWord(el.Name, "cr"):
					current.text.WriteByte('\n')
				}
			}
			if isWord(el.Name, "p") {
				stack = append(stack, &paragraph{})
			}
			open = append(open, el.Name)
		case xml.EndElement:
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
			if !isWord(el.Name, "p") || len(stack) == 0 {
				continue
			}
			done := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			lines := append([]string{done.text.String()}, done.nested...)
			if len(stack) == 0 {
				paragraphs = append(paragraphs, lines...)
			} else {
				outer := stack[len(stack)-1]
				outer.nested = append(outer.nested, lines...)
			}
		case xml.CharData:
			n := len(open)
			if len(stack) > 0 && n >= 2 && isWord(open[n-1], "t") && isWord(open[n-2], "r") {
				stack[len(stack)-1].text.Write(el)
			}
		}
	}

	return paragraphs, nil
}

func isWord(name xml.Name, local string) bool {
	return name.Local == local && (name.Space == wordNS || name.Space == wordStrictNS)
}

// skipSubtree reports elements whose content is never document text.
// mc:Fallback repeats the mc:Choice content for older readers.
func skipSubtree(name xml.Name) bool {
	if name.Space == markupCompatNS && name.Local == "Fallback" {
		return true
	}
	return isWord(name, "pPr") || isWord(name, "rPr")
}
