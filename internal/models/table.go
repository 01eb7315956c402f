package models

// ColumnKind is the storage type of a table column.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindFloat
	KindBool
)

func (k ColumnKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "text"
	}
}

// Column is a named, typed column of a Table.
type Column struct {
	Name string
	Kind ColumnKind
}

// Table is a column-ordered row set ready to be written to the sink.
// Every row holds exactly len(Columns) values; nil and invalid sql.Null* values map to NULL.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
