package models

// CountryAggregate is one row of a per-country table.
type CountryAggregate struct {
	Code    string
	Name    string
	Value   int
	Tooltip string
}

// CountryTable is a set of per-country rows, keyed by ISO-2 code in insertion order.
type CountryTable struct {
	OrderedMap[CountryAggregate]
}

// Rows returns the rows in insertion order.
func (t CountryTable) Rows() []CountryAggregate {
	out := make([]CountryAggregate, 0, t.Len())
	t.Each(func(_ string, row CountryAggregate) {
		out = append(out, row)
	})
	return out
}

// Value returns the value recorded for code, zero when absent.
func (t CountryTable) Value(code string) int {
	row, _ := t.Get(code)
	return row.Value
}
