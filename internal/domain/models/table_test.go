package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func row(ts time.Time, ticker string, vals map[string]Value) Row {
	return Row{Timestamp: ts, Ticker: ticker, Values: vals}
}

func TestTableInsertKeepsFirst(t *testing.T) {
	tbl := NewTable()
	assert.True(t, tbl.Insert(row(day1, "BTC", map[string]Value{"close": Number(1)})))
	assert.False(t, tbl.Insert(row(day1, "BTC", map[string]Value{"close": Number(2)})))

	r, ok := tbl.Get(day1, "BTC")
	require.True(t, ok)
	f, _ := r.Values["close"].Float()
	assert.Equal(t, 1.0, f)
	assert.Equal(t, 1, tbl.Len())
}

func TestTableKeyIgnoresLocation(t *testing.T) {
	tbl := NewTable()
	tbl.Insert(row(day1, "BTC", nil))
	assert.False(t, tbl.Insert(row(day1.In(time.FixedZone("X", 3600)), "BTC", nil)))
}

func TestTableMergeFullOuter(t *testing.T) {
	prices := NewTable()
	prices.Insert(row(day1, "BTC", map[string]Value{"close": Number(100)}))
	prices.Insert(row(day1, "ETH", map[string]Value{"close": Number(10)}))

	funding := NewTable()
	funding.Insert(row(day1, "BTC", map[string]Value{"funding_rate": Number(0.01), "close": Number(999)}))
	funding.Insert(row(day1.AddDate(0, 0, 1), "BTC", map[string]Value{"funding_rate": Number(0.02)}))

	out := NewTable()
	out.Merge(prices)
	out.Merge(funding)
	out.Sort()

	require.Equal(t, 3, out.Len())
	btc, _ := out.Get(day1, "BTC")
	c, _ := btc.Values["close"].Float()
	fr, _ := btc.Values["funding_rate"].Float()
	assert.Equal(t, 100.0, c, "first non-null wins")
	assert.Equal(t, 0.01, fr)

	rows := out.Rows()
	assert.Equal(t, "BTC", rows[0].Ticker)
	assert.Equal(t, "ETH", rows[1].Ticker)
	assert.Equal(t, day1.AddDate(0, 0, 1), rows[2].Timestamp)
}

func TestTableUpsertFillsNulls(t *testing.T) {
	tbl := NewTable()
	tbl.Upsert(row(day1, "BTC", map[string]Value{"close": Null()}))
	tbl.Upsert(row(day1, "BTC", map[string]Value{"close": Number(5)}))

	r, _ := tbl.Get(day1, "BTC")
	f, ok := r.Values["close"].Float()
	assert.True(t, ok)
	assert.Equal(t, 5.0, f)
}

func TestTableUpsertDoesNotAliasInput(t *testing.T) {
	vals := map[string]Value{"close": Number(1)}
	tbl := NewTable()
	tbl.Upsert(row(day1, "BTC", vals))
	vals["close"] = Number(2)

	r, _ := tbl.Get(day1, "BTC")
	f, _ := r.Values["close"].Float()
	assert.Equal(t, 1.0, f)
}

func TestTableFilterAndColumns(t *testing.T) {
	tbl := NewTable()
	tbl.Insert(row(day1, "BTC", map[string]Value{"close": Number(1)}))
	tbl.Insert(row(day1, "ETH", map[string]Value{"close": Null(), "volume": Null()}))
	tbl.Filter(func(r Row) bool { return !r.Empty() })

	assert.Equal(t, 1, tbl.Len())
	_, ok := tbl.Get(day1, "ETH")
	assert.False(t, ok)
	assert.Equal(t, []string{"close"}, tbl.Columns())
}

func TestValueJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Value{"a": Number(1.5), "b": Null(), "c": Text("buy"), "d": Number(math.NaN())})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":null,"c":"buy","d":null}`, string(b))

	var v Value
	require.NoError(t, json.Unmarshal([]byte(`2.25`), &v))
	f, ok := v.Float()
	assert.True(t, ok)
	assert.Equal(t, 2.25, f)
}

func TestTableJSON(t *testing.T) {
	tbl := NewTable()
	b, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	tbl.Insert(row(day1, "BTC", map[string]Value{"close": Number(1)}))
	b, err = json.Marshal(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"timestamp":"2024-01-01T00:00:00Z","ticker":"BTC","values":{"close":1}}]`, string(b))
}

func TestCatalogJSONRoundTrip(t *testing.T) {
	c := NewCatalog(VendorCCXT)
	c.Tickers.Add("ETH", "BTC")
	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"tickers":["BTC","ETH"]`)

	var back Catalog
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.HasTicker("BTC"))
	assert.False(t, back.HasMarket("x"))
}

func TestResultComplete(t *testing.T) {
	r := &Result{Table: NewTable()}
	assert.True(t, r.Complete())
	r.Dropped = append(r.Dropped, &UnsupportedCapabilityError{Kind: CapabilityField, Value: "x"})
	assert.False(t, r.Complete())
}

func TestErrorKinds(t *testing.T) {
	fatal := &FetchError{Fatal: true, Err: &TransportError{Kind: TransportClient, Status: 400}}
	assert.ErrorIs(t, fatal, ErrFatalFetch)
	assert.NotErrorIs(t, fatal, ErrTransientFetch)
	assert.Equal(t, "fetch_fatal", ErrorKind(fatal))

	var te *TransportError
	require.ErrorAs(t, fatal, &te)
	assert.False(t, te.Retryable())

	assert.True(t, (&TransportError{Kind: ClassifyStatus(429)}).Retryable())
	assert.True(t, (&TransportError{Kind: ClassifyStatus(503)}).Retryable())
	assert.False(t, (&TransportError{Kind: ClassifyStatus(404)}).Retryable())
	assert.Equal(t, "empty", ErrorKind(&EmptyResultError{}))
}

func TestTableRestrictDropsUnrequestedFields(t *testing.T) {
	tbl := NewTable()
	tbl.Insert(row(day1, "BTC", map[string]Value{"close": Number(1), "vwap": Number(2)}))
	tbl.Insert(row(day1, "ETH", map[string]Value{"vwap": Number(3), "close": Null()}))

	tbl.Restrict([]string{"close", "volume"})
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, []string{"close"}, tbl.Columns())
	_, ok := tbl.Get(day1, "ETH")
	assert.False(t, ok)
}
