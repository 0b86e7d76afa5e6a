package models

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"
)

// Kind is the runtime type of a cell.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindText
)

// Value is one cell of the canonical table: null, a float or a string.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Null is the missing value.
func Null() Value { return Value{} }

// Number wraps f. NaN and infinities are stored as null.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Text wraps s.
func Text(s string) Value { return Value{kind: KindText, text: s} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric value; ok is false for null and text.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// String renders the value for logs and text output. Null renders empty.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return []byte(strconv.FormatFloat(v.num, 'g', -1, 64)), nil
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case float64:
		*v = Number(t)
	case string:
		*v = Text(t)
	default:
		*v = Text(string(b))
	}
	return nil
}

// Key identifies a row. Timestamps are compared at nanosecond precision.
type Key struct {
	Unix   int64
	Ticker string
}

// Row is one (timestamp, ticker) observation with its field values.
type Row struct {
	Timestamp time.Time        `json:"timestamp"`
	Ticker    string           `json:"ticker"`
	Values    map[string]Value `json:"values"`
}

// Key returns the row's merge key.
func (r Row) Key() Key {
	return Key{Unix: r.Timestamp.UnixNano(), Ticker: r.Ticker}
}

// Empty reports whether every value of the row is null.
func (r Row) Empty() bool {
	for _, v := range r.Values {
		if !v.IsNull() {
			return false
		}
	}
	return true
}

// Table is the canonical long-format table keyed by (timestamp, ticker).
// At most one row exists per key. Table is not safe for concurrent writes.
type Table struct {
	rows  []Row
	index map[Key]int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{index: make(map[Key]int)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns the rows in current order. The slice is a copy but the value
// maps are shared; treat them as read-only.
func (t *Table) Rows() []Row {
	return append([]Row(nil), t.rows...)
}

// Get looks up the row for (ts, ticker).
func (t *Table) Get(ts time.Time, ticker string) (Row, bool) {
	i, ok := t.index[Key{Unix: ts.UnixNano(), Ticker: ticker}]
	if !ok {
		return Row{}, false
	}
	return t.rows[i], true
}

// Insert adds r unless its key already exists, in which case the first
// occurrence is kept and Insert returns false.
func (t *Table) Insert(r Row) bool {
	r.Timestamp = r.Timestamp.UTC()
	k := r.Key()
	if _, ok := t.index[k]; ok {
		return false
	}
	if r.Values == nil {
		r.Values = make(map[string]Value)
	}
	t.index[k] = len(t.rows)
	t.rows = append(t.rows, r)
	return true
}

// Upsert merges r into the table: a new key is appended, an existing key
// gains every field it did not have or held as null. Existing non-null
// values are never overwritten.
func (t *Table) Upsert(r Row) {
	r.Timestamp = r.Timestamp.UTC()
	i, ok := t.index[r.Key()]
	if !ok {
		cp := Row{Timestamp: r.Timestamp, Ticker: r.Ticker, Values: make(map[string]Value, len(r.Values))}
		for f, v := range r.Values {
			cp.Values[f] = v
		}
		t.Insert(cp)
		return
	}
	dst := t.rows[i].Values
	for f, v := range r.Values {
		if cur, ok := dst[f]; !ok || (cur.IsNull() && !v.IsNull()) {
			dst[f] = v
		}
	}
}

// Merge performs a full outer join of other into t on (timestamp, ticker).
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for _, r := range other.rows {
		t.Upsert(r)
	}
}

// Sort orders rows by timestamp, then ticker.
func (t *Table) Sort() {
	sort.SliceStable(t.rows, func(i, j int) bool {
		a, b := t.rows[i], t.rows[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Ticker < b.Ticker
	})
	t.reindex()
}

// Filter keeps only rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) {
	kept := t.rows[:0]
	for _, r := range t.rows {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	t.rows = kept
	t.reindex()
}

// Restrict removes every field not in fields and then drops rows left
// without a non-null value.
func (t *Table) Restrict(fields []string) {
	keep := NewStringSet(fields...)
	for _, r := range t.rows {
		for f := range r.Values {
			if !keep.Has(f) {
				delete(r.Values, f)
			}
		}
	}
	t.Filter(func(r Row) bool { return !r.Empty() })
}

// Columns returns every field present in any row, sorted.
func (t *Table) Columns() []string {
	seen := make(map[string]struct{})
	for _, r := range t.rows {
		for f := range r.Values {
			seen[f] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for f := range seen {
		cols = append(cols, f)
	}
	sort.Strings(cols)
	return cols
}

func (t *Table) reindex() {
	t.index = make(map[Key]int, len(t.rows))
	for i, r := range t.rows {
		t.index[r.Key()] = i
	}
}

// MarshalJSON renders the table as its row list.
func (t *Table) MarshalJSON() ([]byte, error) {
	if t == nil || t.rows == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.rows)
}
