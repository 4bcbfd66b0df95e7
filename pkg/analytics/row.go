package analytics

import (
	"bytes"
	"encoding/json"
)

// Row is one result row, keeping the column order of the SELECT list
type Row struct {
	columns []string
	values  map[string]interface{}
}

// NewRow builds a row from parallel column and value slices
func NewRow(columns []string, values []interface{}) Row {
	row := Row{
		columns: make([]string, 0, len(columns)),
		values:  make(map[string]interface{}, len(columns)),
	}
	for i, col := range columns {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		if _, exists := row.values[col]; !exists {
			row.columns = append(row.columns, col)
		}
		row.values[col] = v
	}
	return row
}

// Columns returns the column names in order
func (r Row) Columns() []string {
	return r.columns
}

// Get returns the value of a column
func (r Row) Get(column string) (interface{}, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Map returns the row as an unordered map
func (r Row) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

// MarshalJSON encodes the row as an object with keys in column order
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[col])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
