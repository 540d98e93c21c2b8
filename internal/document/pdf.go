package document

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF pulls plain text out of each page individually so a single
// corrupt page degrades to a PageError instead of losing the document.
func extractPDF(path string) ([]Segment, []PageError, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	total := reader.NumPage()
	var segments []Segment
	var pageErrs []PageError

	for i := 1; i <= total; i++ {
		text, err := extractPage(reader, i)
		if err != nil {
			pageErrs = append(pageErrs, PageError{Page: i, Reason: err.Error()})
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Page: i, Text: text})
	}

	return segments, pageErrs, nil
}

// extractPage isolates the pdf library's panics on malformed content
// streams to the page being read.
func extractPage(reader *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is unreadable", n)
	}
	return page.GetPlainText(nil)
}
