package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"DataPull/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
		return Frequency(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("market_type", func(fl validator.FieldLevel) bool {
		return MarketType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("vendor", func(fl validator.FieldLevel) bool {
		_, err := ParseVendor(fl.Field().String())
		return err == nil
	})
	return v
}

// QueryParams is the mutable input a Query is built from. Zero values are
// replaced by the defaults in the struct tags before validation.
type QueryParams struct {
	Source     string         `json:"source" default:"coinmetrics" validate:"vendor"`
	Tickers    []string       `json:"tickers" validate:"required,min=1,dive,required"`
	Fields     []string       `json:"fields" default:"[\"close\"]" validate:"min=1,dive,required"`
	Frequency  string         `json:"freq" default:"d" validate:"frequency"`
	Start      *time.Time     `json:"start,omitempty"`
	End        *time.Time     `json:"end,omitempty"`
	Category   string         `json:"category" default:"crypto" validate:"category"`
	MarketType string         `json:"market_type" default:"spot" validate:"market_type"`
	Exchange   string         `json:"exchange,omitempty"`
	QuoteCcy   string         `json:"quote_ccy,omitempty"`
	RetryCount *int           `json:"retry_count,omitempty" default:"3" validate:"gte=0"`
	RetryPause *time.Duration `json:"retry_pause,omitempty" default:"100ms" validate:"gte=0"`

	// Vendor-native overrides, passed through verbatim.
	SourceTickers []string `json:"source_tickers,omitempty"`
	SourceFields  []string `json:"source_fields,omitempty"`
	SourceFreq    string   `json:"source_freq,omitempty"`
	SourceStart   string   `json:"source_start,omitempty"`
	SourceEnd     string   `json:"source_end,omitempty"`
}

// Overrides are vendor-native values that bypass canonical mapping.
type Overrides struct {
	Tickers []string
	Fields  []string
	Freq    string
	Start   string
	End     string
}

// Query is an immutable, validated data request. Build it with NewQuery;
// accessors return copies so a Query can be shared between goroutines.
type Query struct {
	source     Vendor
	tickers    []string
	fields     []string
	freq       Frequency
	start      time.Time
	end        time.Time
	category   Category
	marketType MarketType
	exchange   string
	quoteCcy   string
	retryCount int
	retryPause time.Duration
	overrides  Overrides
}

// NewQuery applies defaults, normalises list inputs and validates p.
// Any failure is a *ValidationError.
func NewQuery(p QueryParams) (*Query, error) {
	p.Tickers = splitList(p.Tickers)
	p.Fields = splitList(p.Fields)
	p.SourceTickers = splitList(p.SourceTickers)
	p.SourceFields = splitList(p.SourceFields)
	p.Source = strings.ToLower(strings.TrimSpace(p.Source))
	p.Frequency = strings.TrimSpace(p.Frequency)
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	p.MarketType = strings.ToLower(strings.TrimSpace(p.MarketType))

	// source overrides stand in for their canonical counterpart
	if len(p.Tickers) == 0 && len(p.SourceTickers) > 0 {
		p.Tickers = p.SourceTickers
	}
	if len(p.Fields) == 0 && len(p.SourceFields) > 0 {
		p.Fields = p.SourceFields
	}

	if err := defaults.Set(&p); err != nil {
		return nil, &ValidationError{Field: "query", Value: nil, Reason: err.Error()}
	}
	if err := validate.Struct(&p); err != nil {
		return nil, toValidationError(err)
	}

	q := &Query{
		source:     Vendor(p.Source),
		tickers:    upperAll(p.Tickers),
		fields:     p.Fields,
		freq:       Frequency(p.Frequency),
		category:   Category(p.Category),
		marketType: MarketType(p.MarketType),
		exchange:   strings.ToLower(strings.TrimSpace(p.Exchange)),
		quoteCcy:   strings.ToUpper(strings.TrimSpace(p.QuoteCcy)),
		retryCount: *p.RetryCount,
		retryPause: *p.RetryPause,
		overrides: Overrides{
			Tickers: p.SourceTickers,
			Fields:  p.SourceFields,
			Freq:    strings.TrimSpace(p.SourceFreq),
			Start:   strings.TrimSpace(p.SourceStart),
			End:     strings.TrimSpace(p.SourceEnd),
		},
	}
	if p.Start != nil {
		q.start = p.Start.UTC()
	}
	if p.End != nil {
		q.end = p.End.UTC()
	}
	if !q.start.IsZero() && !q.end.IsZero() && q.start.After(q.end) {
		return nil, &ValidationError{Field: "start", Value: q.start.Format(time.RFC3339), Reason: "start is after end"}
	}
	return q, nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: fieldName(fe), Value: fe.Value(), Reason: reason(fe)}
	}
	return &ValidationError{Field: "query", Value: nil, Reason: err.Error()}
}

func fieldName(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Frequency":
		return "freq"
	case "MarketType":
		return "market_type"
	case "RetryCount":
		return "retry_count"
	case "RetryPause":
		return "retry_pause"
	default:
		return strings.ToLower(fe.StructField())
	}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s item(s)", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "frequency", "category", "market_type", "vendor":
		return "not a known " + strings.ReplaceAll(fe.Tag(), "_", " ")
	default:
		return "failed " + fe.Tag()
	}
}

// splitList accepts a scalar, a list or comma separated items. An empty
// result is nil so that struct defaults still apply.
func splitList(in []string) []string {
	out := util.SplitList(in...)
	if len(out) == 0 {
		return nil
	}
	return out
}

func upperAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}

func (q *Query) Source() Vendor            { return q.source }
func (q *Query) Frequency() Frequency      { return q.freq }
func (q *Query) Category() Category        { return q.category }
func (q *Query) MarketType() MarketType    { return q.marketType }
func (q *Query) Exchange() string          { return q.exchange }
func (q *Query) QuoteCcy() string          { return q.quoteCcy }
func (q *Query) RetryCount() int           { return q.retryCount }
func (q *Query) RetryPause() time.Duration { return q.retryPause }

// Tickers returns the canonical (upper case) tickers in request order.
func (q *Query) Tickers() []string { return append([]string(nil), q.tickers...) }

// Fields returns the requested canonical fields in request order.
func (q *Query) Fields() []string { return append([]string(nil), q.fields...) }

// Start returns the inclusive start, or the zero time when omitted.
func (q *Query) Start() time.Time { return q.start }

// End returns the inclusive end, or the zero time when omitted.
func (q *Query) End() time.Time { return q.end }

// Overrides returns a copy of the vendor-native overrides.
func (q *Query) Overrides() Overrides {
	o := q.overrides
	o.Tickers = append([]string(nil), o.Tickers...)
	o.Fields = append([]string(nil), o.Fields...)
	return o
}

// StartOr returns the start, or def when the query left it open.
func (q *Query) StartOr(def time.Time) time.Time {
	if q.start.IsZero() {
		return def
	}
	return q.start
}
