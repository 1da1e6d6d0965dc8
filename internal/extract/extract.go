package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrNoText      = errors.New("no readable text found in document")
)

// Extractor turns an uploaded file into plain text.
type Extractor interface {
	Extract(filename string, data []byte) (string, error)
}

// FileExtractor handles .pdf and .txt uploads, chosen by file extension.
type FileExtractor struct{}

func New() FileExtractor { return FileExtractor{} }

// Supported reports whether filename has an extension Extract understands.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".txt":
		return true
	}
	return false
}

func (FileExtractor) Extract(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = pdfText(data)
	case ".txt":
		text, err = plainText(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(filename))
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

// pdfText recovers from panics inside the PDF parser, which happen on
// malformed object streams.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf text: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(data), nil
}
