package resultview

import (
	"bytes"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/hashicorp-forge/docview/pkg/docclient"
)

const (
	// Heading is the fixed page heading shown above a loaded record.
	Heading = "Document Result"

	// LoadingText is shown while no record is held.
	LoadingText = "Loading..."

	indent = "  "
)

// Page is a rendered snapshot of the view.
type Page struct {
	Loading bool
	Heading string
	// Content is the record formatted by Format.
	Content string
	Record  docclient.Record
}

// LoadingPage returns the page shown while no record is held.
func LoadingPage() Page {
	return Page{Loading: true}
}

// WriteText writes the page as plain text.
func (p Page) WriteText(w io.Writer) error {
	if p.Loading {
		_, err := fmt.Fprintln(w, LoadingText)
		return err
	}
	_, err := fmt.Fprintf(w, "%s\n\n%s\n", p.Heading, p.Content)
	return err
}

// Format renders record with two-space indentation per nesting level,
// keeping object keys in the order the record carries them.
func Format(record docclient.Record) (string, error) {
	if len(record) == 0 {
		return "null", nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, record, "", indent); err != nil {
		return "", fmt.Errorf("error indenting document record: %w", err)
	}
	return buf.String(), nil
}
