package output

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"
)

// Tabular is implemented by results that know their own table layout.
type Tabular interface {
	Table() *Table
}

// Table is tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable returns a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// AddRow appends a row. Values are rendered with fmt unless they are
// strings.
func (t *Table) AddRow(cells ...any) {
	row := make([]string, len(cells))
	for i, c := range cells {
		row[i] = cell(reflect.ValueOf(c))
	}
	t.Rows = append(t.Rows, row)
}

// Render writes the table aligned on two-space gutters.
func (t *Table) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// TableFormatter renders data as a table.
//
// Tabular values and *Table render as-is. A slice of structs renders one
// row per element and a single struct renders FIELD/VALUE pairs; columns
// are named by json tags and a `table:"-"` tag hides a field. Anything else
// falls back to JSON.
type TableFormatter struct{}

// Format implements Formatter.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch d := data.(type) {
	case nil:
		return nil
	case Tabular:
		return d.Table().Render(w)
	case *Table:
		return d.Render(w)
	}

	v := reflect.Indirect(reflect.ValueOf(data))
	switch {
	case v.Kind() == reflect.Slice:
		if t, ok := sliceTable(v); ok {
			return t.Render(w)
		}
	case v.Kind() == reflect.Struct:
		return structTable(v).Render(w)
	}
	return (&JSONFormatter{}).Format(w, data)
}

type column struct {
	index int
	name  string
}

func columns(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("table") == "-" {
			continue
		}
		name := f.Name
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && tag != "-" {
			name = tag
		}
		cols = append(cols, column{index: i, name: name})
	}
	return cols
}

func sliceTable(v reflect.Value) (*Table, bool) {
	elem := v.Type().Elem()
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return nil, false
	}
	cols := columns(elem)
	t := &Table{}
	for _, c := range cols {
		t.Headers = append(t.Headers, strings.ToUpper(c.name))
	}
	for i := 0; i < v.Len(); i++ {
		row := reflect.Indirect(v.Index(i))
		cells := make([]string, len(cols))
		for j, c := range cols {
			if row.IsValid() {
				cells[j] = cell(row.Field(c.index))
			}
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, true
}

func structTable(v reflect.Value) *Table {
	t := NewTable("FIELD", "VALUE")
	for _, c := range columns(v.Type()) {
		t.Rows = append(t.Rows, []string{c.name, cell(v.Field(c.index))})
	}
	return t
}

var timeType = reflect.TypeOf(time.Time{})

func cell(v reflect.Value) string {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return "-"
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return "-"
	}
	if v.Type() == timeType {
		ts := v.Interface().(time.Time)
		if ts.IsZero() {
			return "-"
		}
		return ts.Format(time.RFC3339)
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	switch v.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return "-"
		}
		return v.String()
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return fmt.Sprintf("%d bytes", v.Len())
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%.2f", v.Float())
	}
	return fmt.Sprint(v.Interface())
}
