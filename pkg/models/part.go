package models

import "encoding/json"

// PartKind discriminates the variants of a ResultPart.
type PartKind string

const (
	PartTable PartKind = "table"
	PartChart PartKind = "chart"
	PartText  PartKind = "text"
)

// ResultPart is one unit of assistant output: a table of rows, a chart
// configuration, or free text. Content holds the variant payload as JSON.
type ResultPart struct {
	Kind        PartKind        `json:"kind"`
	Content     json.RawMessage `json:"content"`
	Explanation string          `json:"explanation,omitempty"`
	SQLQuery    string          `json:"sql_query,omitempty"`
}

// Text returns the content of a text part. For other kinds it returns
// the raw JSON content as a string.
func (p ResultPart) Text() string {
	if p.Kind == PartText {
		var s string
		if err := json.Unmarshal(p.Content, &s); err == nil {
			return s
		}
	}
	return string(p.Content)
}

// TextPart builds a text ResultPart from a plain string.
func TextPart(text string) ResultPart {
	content, _ := json.Marshal(text)
	return ResultPart{Kind: PartText, Content: content}
}

// Table holds query results as ordered columns and rows.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// ChartConfig describes a renderable chart. SQL is the query that
// produced (or would produce) the chart's data.
type ChartConfig struct {
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	SQL   string `json:"sql,omitempty"`
	XAxis string `json:"x_axis,omitempty"`
	YAxis string `json:"y_axis,omitempty"`
	Data  *Table `json:"data,omitempty"`
}
