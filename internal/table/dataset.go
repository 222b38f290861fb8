// Package table holds the in-memory tabular data model and the pure
// dataset-to-dataset operators: column transforms, row filtering, and the
// hash left join. Every operator returns a new Dataset; inputs are treated
// as immutable snapshots.
package table

// ColumnType classifies a column's cell values.
type ColumnType string

const (
	ColumnString ColumnType = "string"
	ColumnNumber ColumnType = "number"
	ColumnDate   ColumnType = "date"
)

// Column describes one schema entry. ID is the stable key into row records;
// Name is display-only and may diverge from ID after a rename.
type Column struct {
	ID   string     `json:"id" koanf:"id"`
	Name string     `json:"name" koanf:"name"`
	Type ColumnType `json:"type" koanf:"type"`
	Unit string     `json:"unit,omitempty" koanf:"unit"`
}

// Row is one record, keyed by column id. A missing key means a null cell.
type Row map[string]any

// Dataset is an ordered sequence of rows with an ordered schema. Rows are
// positional; there is no implicit primary key. Every row's keys are a
// subset of the schema's column ids.
type Dataset struct {
	Rows   []Row    `json:"rows" koanf:"rows"`
	Schema []Column `json:"schema" koanf:"schema"`
}

// Column finds a schema entry by id.
func (d Dataset) Column(id string) (Column, bool) {
	for _, c := range d.Schema {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnByName finds a schema entry by display name, falling back to id.
// User-facing references like [CO2] name columns by what they see.
func (d Dataset) ColumnByName(name string) (Column, bool) {
	for _, c := range d.Schema {
		if c.Name == name {
			return c, true
		}
	}
	return d.Column(name)
}

// Clone deep-copies the dataset so a new column can be appended without
// touching the caller's snapshot.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Rows:   make([]Row, len(d.Rows)),
		Schema: make([]Column, len(d.Schema)),
	}
	copy(out.Schema, d.Schema)
	for i, row := range d.Rows {
		nr := make(Row, len(row)+1)
		for k, v := range row {
			nr[k] = v
		}
		out.Rows[i] = nr
	}
	return out
}
