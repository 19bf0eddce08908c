package report

import "io"

const (
	ContentTypeSpreadsheet = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeDocument    = "application/pdf"
)

// Renderer writes a laid-out table in some document format.
type Renderer interface {
	Render(w io.Writer, t *Table) error
	ContentType() string
}
