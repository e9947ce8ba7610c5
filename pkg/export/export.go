package export

import "fmt"

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Renderer turns a dataset into file bytes of one format.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// Registry maps a format name (csv, pdf, xlsx) to its renderer.
type Registry map[string]Renderer

// DefaultRegistry returns every built-in renderer.
func DefaultRegistry() Registry {
	return Registry{
		"csv":  NewCSVExporter(),
		"pdf":  NewPDFExporter(),
		"xlsx": NewXLSXExporter(),
	}
}

func (r Registry) Lookup(format string) (Renderer, error) {
	renderer, ok := r[format]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return renderer, nil
}

func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		out[i] = row[header]
	}
	return out
}
