package report

import (
	"encoding/csv"
	"io"
)

// Renderer writes a table as a downloadable artifact.
type Renderer interface {
	Format() string
	Extension() string
	ContentType() string
	Render(w io.Writer, t *Table) error
}

type CSVRenderer struct{}

func (CSVRenderer) Format() string      { return "csv" }
func (CSVRenderer) Extension() string   { return ".csv" }
func (CSVRenderer) ContentType() string { return "text/csv; charset=utf-8" }

func (CSVRenderer) Render(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}
