package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"DataPull/internal/domain/models"
	"DataPull/pkg/util"
)

// mapped is a record after field mapping: structural keys split out and
// vendor field names replaced by canonical ones.
type mapped struct {
	rawTime any
	rawID   any
	values  map[string]any
}

// mapFields renames vendor keys to canonical fields and drops everything
// the sub-request did not ask for.
func mapFields(records []models.Record, sub *models.SubRequest, schema models.Schema) ([]mapped, error) {
	out := make([]mapped, 0, len(records))
	seenTime := false
	for _, rec := range records {
		m := mapped{values: make(map[string]any, len(sub.FieldMap))}
		for k, v := range rec {
			switch {
			case k == schema.TimestampKey:
				m.rawTime = v
				seenTime = true
			case schema.TickerKey != "" && k == schema.TickerKey:
				m.rawID = v
			default:
				if canon, ok := sub.FieldMap[k]; ok {
					m.values[canon] = v
				}
			}
		}
		out = append(out, m)
	}
	if !seenTime {
		return nil, fmt.Errorf("no record carries %q", schema.TimestampKey)
	}
	return out, nil
}

// parseTimestamps converts raw vendor times to UTC. One unparseable
// timestamp fails the batch.
func parseTimestamps(in []mapped, schema models.Schema) ([]models.Observation, error) {
	parse := schema.ParseTime
	if parse == nil {
		parse = ParseTime
	}
	out := make([]models.Observation, 0, len(in))
	for i, m := range in {
		ts, err := parse(m.rawTime)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		id := ""
		if m.rawID != nil {
			id = fmt.Sprint(m.rawID)
		}
		out = append(out, models.Observation{Timestamp: ts.UTC(), Ticker: id, Values: m.values})
	}
	return out, nil
}

// ParseTime is the default TimeParser: time values, RFC3339 or date
// strings, and unix seconds or milliseconds as numbers or strings.
func ParseTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		if v.IsZero() {
			break
		}
		return v.UTC(), nil
	case string:
		if t, ok := util.ParseTime(strings.TrimSpace(v)); ok {
			return t, nil
		}
	case float64:
		if !math.IsNaN(v) && v > 0 {
			return util.FromEpoch(int64(v)), nil
		}
	case int64:
		if v > 0 {
			return util.FromEpoch(v), nil
		}
	case int:
		if v > 0 {
			return util.FromEpoch(int64(v)), nil
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			return util.FromEpoch(n), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %v (%T)", raw, raw)
}

// resolveTickers maps vendor identifiers back to the canonical tickers the
// sub-request was issued for. Single-ticker requests never look at the
// payload. Observations that resolve to a ticker the request did not ask
// for are dropped.
func resolveTickers(obs []models.Observation, sub *models.SubRequest, schema models.Schema) []models.Observation {
	wanted := models.NewStringSet(sub.Tickers...)
	single := sub.Ticker()
	out := obs[:0]
	for _, o := range obs {
		t := single
		if t == "" {
			t = resolveID(o.Ticker, sub, schema)
		}
		t = strings.ToUpper(t)
		if t == "" || (len(wanted) > 0 && !wanted.Has(t)) {
			continue
		}
		o.Ticker = t
		out = append(out, o)
	}
	return out
}

func resolveID(id string, sub *models.SubRequest, schema models.Schema) string {
	if t, ok := sub.TickerByID[id]; ok {
		return t
	}
	if schema.ResolveTicker != nil {
		if t := schema.ResolveTicker(id); t != "" {
			return t
		}
	}
	return id
}

// clip drops observations outside [start, end]. Zero bounds are open.
func clip(obs []models.Observation, start, end time.Time) []models.Observation {
	out := obs[:0]
	for _, o := range obs {
		if !start.IsZero() && o.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && o.Timestamp.After(end) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// resample downsamples to freq by keeping, per field, the last non-null
// value in each bucket. Rows are labelled with the bucket start. Data that
// is already coarser than freq passes through: nothing is interpolated.
func resample(obs []models.Observation, freq models.Frequency, agg models.Aggregator) []models.Observation {
	if !freq.Bucketed() || len(obs) == 0 {
		return obs
	}
	byTicker := make(map[string][]models.Observation)
	for _, o := range obs {
		byTicker[o.Ticker] = append(byTicker[o.Ticker], o)
	}

	var out []models.Observation
	for _, ticker := range models.SortedKeys(byTicker) {
		series := byTicker[ticker]
		sort.SliceStable(series, func(i, j int) bool { return series[i].Timestamp.Before(series[j].Timestamp) })
		if agg != nil {
			out = append(out, agg(series, freq)...)
			continue
		}
		out = append(out, LastPerBucket(series, freq)...)
	}
	return out
}

// LastPerBucket is the default resampler: for one ticker's observations in
// time order it keeps, per field, the last non-null value of each bucket.
func LastPerBucket(series []models.Observation, freq models.Frequency) []models.Observation {
	var out []models.Observation
	for _, o := range series {
		label, _ := freq.Bucket(o.Timestamp)
		n := len(out)
		if n == 0 || !out[n-1].Timestamp.Equal(label) {
			out = append(out, models.Observation{Timestamp: label, Ticker: o.Ticker, Values: make(map[string]any, len(o.Values))})
			n++
		}
		cur := out[n-1].Values
		for f, v := range o.Values {
			if !IsNull(v) {
				cur[f] = v
			} else if _, ok := cur[f]; !ok {
				cur[f] = nil
			}
		}
	}
	return out
}

// removeBadData drops sentinel rows (every requested field zero or null
// when the vendor uses zero for missing), duplicate keys after the first
// and rows where every field is null.
func removeBadData(obs []models.Observation, fields []string, zeroIsMissing bool) []models.Observation {
	seen := make(map[models.Key]struct{}, len(obs))
	out := obs[:0]
	for _, o := range obs {
		if zeroIsMissing && allZero(o.Values, fields) {
			continue
		}
		if allNull(o.Values, fields) {
			continue
		}
		k := models.Key{Unix: o.Timestamp.UnixNano(), Ticker: o.Ticker}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out
}

func allNull(values map[string]any, fields []string) bool {
	for _, f := range fields {
		if !IsNull(values[f]) {
			return false
		}
	}
	return true
}

func allZero(values map[string]any, fields []string) bool {
	for _, f := range fields {
		v := values[f]
		if !IsNull(v) && !isZero(v) {
			return false
		}
	}
	return true
}

// coerce converts raw values to their declared kinds and builds the
// table. Values that do not convert become null and are counted.
func coerce(obs []models.Observation, fields []string, schema models.Schema) (*models.Table, int) {
	table := models.NewTable()
	failures := 0
	for _, o := range obs {
		row := models.Row{Timestamp: o.Timestamp, Ticker: o.Ticker, Values: make(map[string]models.Value, len(fields))}
		for _, f := range fields {
			raw, ok := o.Values[f]
			if !ok {
				continue
			}
			v, err := toValue(raw, schema.KindOf(f))
			if err != nil {
				failures++
			}
			row.Values[f] = v
		}
		if row.Empty() {
			continue
		}
		table.Insert(row)
	}
	return table, failures
}

var errCoerce = errors.New("cannot coerce")

func toValue(raw any, kind models.Kind) (models.Value, error) {
	if IsNull(raw) {
		return models.Null(), nil
	}
	if kind == models.KindText {
		switch v := raw.(type) {
		case string:
			return models.Text(v), nil
		case float64:
			return models.Text(strconv.FormatFloat(v, 'f', -1, 64)), nil
		case bool:
			return models.Text(strconv.FormatBool(v)), nil
		default:
			return models.Text(fmt.Sprint(v)), nil
		}
	}
	if f, ok := ToFloat(raw); ok {
		return models.Number(f), nil
	}
	return models.Null(), fmt.Errorf("%w %v (%T) to number", errCoerce, raw, raw)
}

// ToFloat reads a raw vendor number, including numeric strings.
func ToFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// IsNull reports whether a raw vendor value means missing.
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "nan")
	case float64:
		return math.IsNaN(t)
	}
	return false
}

func isZero(v any) bool {
	f, ok := ToFloat(v)
	return ok && f == 0
}
