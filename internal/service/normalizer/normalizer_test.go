package normalizer

import (
	"encoding/json"
	"testing"
	"time"

	"DataPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC) }

func testQuery(t *testing.T, freq string, tickers ...string) *models.Query {
	t.Helper()
	q, err := models.NewQuery(models.QueryParams{
		Tickers:   tickers,
		Fields:    []string{"close", "volume"},
		Frequency: freq,
	})
	require.NoError(t, err)
	return q
}

func candleSub(freq models.Frequency, tickers ...string) *models.SubRequest {
	return &models.SubRequest{
		ID:         "coinmetrics:ohlcv:spot",
		Vendor:     models.VendorCoinMetrics,
		Endpoint:   models.EndpointOHLCV,
		Tickers:    tickers,
		TickerByID: map[string]string{"binance-btc-usdt-spot": "BTC", "binance-eth-usdt-spot": "ETH"},
		Fields:     []string{"close", "volume"},
		FieldMap:   map[string]string{"price_close": "close", "volume": "volume"},
		Frequency:  freq,
	}
}

var candleSchema = models.Schema{TimestampKey: "time", TickerKey: "market"}

func candle(ts, market string, closePx, vol any) models.Record {
	return models.Record{"time": ts, "market": market, "price_close": closePx, "volume": vol, "price_open": "1"}
}

func TestNormalizeMapsResolvesAndSorts(t *testing.T) {
	q := testQuery(t, "d", "BTC", "ETH")
	batch := &models.RawBatch{
		Request: candleSub(models.FreqDay, "BTC", "ETH"),
		Records: []models.Record{
			candle("2020-01-02T00:00:00.000000000Z", "binance-eth-usdt-spot", "130.5", "10"),
			candle("2020-01-01T00:00:00.000000000Z", "binance-btc-usdt-spot", "7200", "5"),
			candle("2020-01-01T00:00:00.000000000Z", "binance-eth-usdt-spot", "128", "11"),
			candle("2020-01-02T00:00:00.000000000Z", "binance-btc-usdt-spot", "7350", "6"),
		},
	}

	out, err := New().Normalize(q, batch, candleSchema)
	require.NoError(t, err)

	rows := out.Table.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"close", "volume"}, out.Table.Columns())
	assert.Equal(t, day(1), rows[0].Timestamp)
	assert.Equal(t, "BTC", rows[0].Ticker)
	assert.Equal(t, "ETH", rows[1].Ticker)
	assert.Equal(t, day(2), rows[2].Timestamp)
	f, ok := rows[3].Values["close"].Float()
	require.True(t, ok)
	assert.Equal(t, 130.5, f)
	_, hasOpen := rows[0].Values["open"]
	assert.False(t, hasOpen, "unrequested vendor fields must be dropped")
}

func TestNormalizeIsIdempotent(t *testing.T) {
	q := testQuery(t, "d", "BTC", "ETH")
	batch := &models.RawBatch{
		Request: candleSub(models.FreqDay, "BTC", "ETH"),
		Records: []models.Record{
			candle("2020-01-01T10:00:00Z", "binance-btc-usdt-spot", "7200", "5"),
			candle("2020-01-01T20:00:00Z", "binance-btc-usdt-spot", "7210", nil),
			candle("2020-01-01T20:00:00Z", "binance-eth-usdt-spot", "oops", "3"),
		},
	}
	before, err := json.Marshal(batch.Records)
	require.NoError(t, err)

	n := New()
	a, err := n.Normalize(q, batch, candleSchema)
	require.NoError(t, err)
	b, err := n.Normalize(q, batch, candleSchema)
	require.NoError(t, err)

	ja, err := json.Marshal(a.Table)
	require.NoError(t, err)
	jb, err := json.Marshal(b.Table)
	require.NoError(t, err)
	assert.Equal(t, string(ja), string(jb))
	assert.Equal(t, a.CoercionFailures, b.CoercionFailures)

	after, err := json.Marshal(batch.Records)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after), "batch must not be mutated")
}

func TestNormalizeNoDuplicateKeysOrEmptyRows(t *testing.T) {
	q := testQuery(t, "tick", "BTC")
	sub := candleSub(models.FreqTick, "BTC")
	batch := &models.RawBatch{
		Request: sub,
		Records: []models.Record{
			candle("2020-01-01T00:00:00Z", "binance-btc-usdt-spot", "1", "1"),
			candle("2020-01-01T00:00:00Z", "binance-btc-usdt-spot", "2", "2"),
			candle("2020-01-01T00:01:00Z", "binance-btc-usdt-spot", nil, ""),
			candle("2020-01-01T00:02:00Z", "binance-btc-usdt-spot", "NaN", nil),
			candle("2020-01-01T00:03:00Z", "binance-btc-usdt-spot", "3", nil),
		},
	}

	out, err := New().Normalize(q, batch, candleSchema)
	require.NoError(t, err)

	seen := map[models.Key]bool{}
	for _, r := range out.Table.Rows() {
		assert.False(t, seen[r.Key()], "duplicate key %v", r.Key())
		seen[r.Key()] = true
		assert.False(t, r.Empty(), "all-null row at %s", r.Timestamp)
	}
	require.Equal(t, 2, out.Table.Len())
	first, _ := out.Table.Get(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), "BTC")
	v, _ := first.Values["close"].Float()
	assert.Equal(t, 1.0, v, "first duplicate wins")
}

func TestNormalizeResamplesToLastPerBucket(t *testing.T) {
	q := testQuery(t, "d", "BTC")
	batch := &models.RawBatch{
		Request: candleSub(models.FreqDay, "BTC"),
		Records: []models.Record{
			candle("2020-01-01T01:00:00Z", "x", "10", "1"),
			candle("2020-01-01T23:00:00Z", "x", "12", nil),
			candle("2020-01-01T12:00:00Z", "x", "11", "2"),
			candle("2020-01-02T00:00:00Z", "x", "20", "3"),
		},
	}

	out, err := New().Normalize(q, batch, candleSchema)
	require.NoError(t, err)
	require.Equal(t, 2, out.Table.Len())

	r, ok := out.Table.Get(day(1), "BTC")
	require.True(t, ok)
	c, _ := r.Values["close"].Float()
	v, _ := r.Values["volume"].Float()
	assert.Equal(t, 12.0, c)
	assert.Equal(t, 2.0, v, "last non-null volume in the bucket")
}

func TestResampleDoesNotUpsample(t *testing.T) {
	obs := []models.Observation{
		{Timestamp: day(1), Ticker: "BTC", Values: map[string]any{"close": 1.0}},
		{Timestamp: day(8), Ticker: "BTC", Values: map[string]any{"close": 2.0}},
	}
	out := resample(obs, models.FreqDay, nil)
	assert.Len(t, out, 2, "gaps stay gaps")

	weekly := resample(obs, models.FreqWeek, nil)
	require.Len(t, weekly, 2)
	assert.Equal(t, time.Date(2019, 12, 30, 0, 0, 0, 0, time.UTC), weekly[0].Timestamp)
}

func TestNormalizeDropsZeroSentinelRows(t *testing.T) {
	q := testQuery(t, "d", "BTC")
	batch := &models.RawBatch{
		Request: candleSub(models.FreqDay, "BTC"),
		Records: []models.Record{
			candle("2020-01-01", "x", 0.0, 0.0),
			candle("2020-01-02", "x", 7000.0, 0.0),
		},
	}

	out, err := New().Normalize(q, batch, models.Schema{TimestampKey: "time", ZeroIsMissing: true})
	require.NoError(t, err)
	require.Equal(t, 1, out.Table.Len())
	r := out.Table.Rows()[0]
	assert.Equal(t, day(2), r.Timestamp)
	v, ok := r.Values["volume"].Float()
	assert.True(t, ok, "single zeros are kept")
	assert.Equal(t, 0.0, v)
}

func TestNormalizeCountsCoercionFailures(t *testing.T) {
	q := testQuery(t, "d", "BTC")
	batch := &models.RawBatch{
		Request: candleSub(models.FreqDay, "BTC"),
		Records: []models.Record{
			candle("2020-01-01", "x", "abc", "5"),
			candle("2020-01-02", "x", true, "bad"),
		},
	}

	out, err := New().Normalize(q, batch, candleSchema)
	require.NoError(t, err)
	assert.Equal(t, 3, out.CoercionFailures)
	require.Equal(t, 1, out.Table.Len(), "row with only failed values is dropped")
	assert.True(t, out.Table.Rows()[0].Values["close"].IsNull())
}

func TestNormalizeTextFields(t *testing.T) {
	q, err := models.NewQuery(models.QueryParams{Tickers: []string{"BTC"}, Fields: []string{"price", "side"}, Frequency: "tick"})
	require.NoError(t, err)
	sub := &models.SubRequest{
		ID:        "trades",
		Tickers:   []string{"BTC"},
		Fields:    []string{"price", "side"},
		FieldMap:  map[string]string{"price": "price", "side": "side"},
		Frequency: models.FreqTick,
	}
	batch := &models.RawBatch{Request: sub, Records: []models.Record{
		{"time": "2020-01-01T00:00:00.5Z", "price": "7000.5", "side": "buy"},
	}}

	out, err := New().Normalize(q, batch, models.Schema{TimestampKey: "time", Types: map[string]models.Kind{"side": models.KindText}})
	require.NoError(t, err)
	r := out.Table.Rows()[0]
	assert.Equal(t, "buy", r.Values["side"].String())
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 5e8, time.UTC), r.Timestamp)
}

func TestNormalizeClipsToRequestWindow(t *testing.T) {
	q := testQuery(t, "d", "BTC")
	sub := candleSub(models.FreqDay, "BTC")
	sub.Start = day(2)
	sub.End = day(3)
	batch := &models.RawBatch{Request: sub, Records: []models.Record{
		candle("2020-01-01", "x", "1", "1"),
		candle("2020-01-02", "x", "2", "1"),
		candle("2020-01-03T12:00:00Z", "x", "3", "1"),
		candle("2020-01-04", "x", "4", "1"),
	}}

	out, err := New().Normalize(q, batch, candleSchema)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Table.Len())
}

func TestNormalizeErrors(t *testing.T) {
	q := testQuery(t, "d", "BTC")

	tests := []struct {
		name    string
		records []models.Record
		reason  string
	}{
		{name: "empty batch", records: nil, reason: ReasonEmptyBatch},
		{name: "no timestamp key", records: []models.Record{{"date": "2020-01-01", "price_close": 1}}, reason: ReasonSchemaMismatch},
		{name: "garbage timestamp", records: []models.Record{candle("yesterday", "x", 1, 1)}, reason: ReasonBadTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := &models.RawBatch{Request: candleSub(models.FreqDay, "BTC"), Records: tt.records}
			_, err := New().Normalize(q, batch, candleSchema)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrNormalize)
			var ne *models.NormalizeError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, tt.reason, ne.Reason)
		})
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  any
	}{
		{"rfc3339", "2020-01-02T00:00:00Z"},
		{"date", "2020-01-02"},
		{"seconds", float64(want.Unix())},
		{"millis float", float64(want.UnixMilli())},
		{"millis int64", want.UnixMilli()},
		{"millis string", "1577923200000"},
		{"json number", json.Number("1577923200")},
		{"time", want.In(time.FixedZone("x", 3600))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.raw)
			require.NoError(t, err)
			assert.True(t, want.Equal(got))
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	_, err := ParseTime(nil)
	assert.Error(t, err)
	_, err = ParseTime(true)
	assert.Error(t, err)
}
