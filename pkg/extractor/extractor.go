// Package extractor turns uploaded documents into plain text.
package extractor

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"docubot-be/internal/pkg/logger"
	"docubot-be/pkg/apperror"
)

const module = "Extractor"

// Format is the closed set of document kinds the extractor understands.
type Format int

const (
	FormatUnsupported Format = iota
	FormatPDF
	FormatWord
	FormatText
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatWord:
		return "word"
	case FormatText:
		return "text"
	default:
		return "unsupported"
	}
}

// Document is an uploaded file: its original name and raw bytes.
type Document struct {
	Filename string
	Content  []byte
}

// DetectFormat resolves the format from the filename extension, ignoring case.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".doc", ".docx":
		return FormatWord
	case ".txt":
		return FormatText
	default:
		return FormatUnsupported
	}
}

type Extractor struct {
	logger logger.ILogger
}

func New(log logger.ILogger) *Extractor {
	return &Extractor{logger: log}
}

// Extract returns the document text. Pages and paragraphs are joined with '\n';
// an empty result is valid.
func (e *Extractor) Extract(doc *Document) (string, error) {
	if doc == nil || strings.TrimSpace(doc.Filename) == "" {
		return "", apperror.New(apperror.ErrInvalidInput, "no file provided")
	}

	format := DetectFormat(doc.Filename)
	if format == FormatUnsupported {
		return "", apperror.Newf(apperror.ErrUnsupportedFormat, "cannot extract %q", filepath.Ext(doc.Filename))
	}
	if len(doc.Content) == 0 {
		return "", apperror.Newf(apperror.ErrInvalidInput, "%s is empty", doc.Filename)
	}

	e.logger.Debug(module, "Extracting document", map[string]interface{}{
		"filename": doc.Filename,
		"format":   format.String(),
		"bytes":    len(doc.Content),
	})

	var (
		text string
		err  error
	)
	switch format {
	case FormatPDF:
		text, err = extractPDF(doc.Content)
	case FormatWord:
		text, err = extractWord(doc.Content)
	case FormatText:
		text, err = extractPlain(doc.Content)
	}
	if err != nil {
		e.logger.Warn(module, "Extraction failed", map[string]interface{}{
			"filename": doc.Filename,
			"error":    err.Error(),
		})
		return "", err
	}

	e.logger.Info(module, "Document extracted", map[string]interface{}{
		"filename": doc.Filename,
		"format":   format.String(),
		"chars":    utf8.RuneCountInString(text),
	})
	return text, nil
}

// ExtractReader reads r to the end from its current position and extracts it.
func (e *Extractor) ExtractReader(filename string, r io.Reader) (string, error) {
	if r == nil {
		return "", apperror.New(apperror.ErrInvalidInput, "no file provided")
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return "", apperror.Wrap(apperror.ErrInvalidInput, "read upload", err)
	}
	return e.Extract(&Document{Filename: filename, Content: content})
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func extractPlain(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		return "", apperror.New(apperror.ErrExtraction, "text file is not valid UTF-8")
	}
	return string(content), nil
}
