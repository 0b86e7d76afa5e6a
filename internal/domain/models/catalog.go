package models

import (
	"encoding/json"
	"sort"
	"time"
)

// StringSet is a set of strings that encodes as a sorted JSON array.
type StringSet map[string]struct{}

// NewStringSet builds a set from items.
func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	s.Add(items...)
	return s
}

// Add inserts items.
func (s StringSet) Add(items ...string) {
	for _, it := range items {
		s[it] = struct{}{}
	}
}

// Has reports membership.
func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Sorted returns the members in order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StringSet) UnmarshalJSON(b []byte) error {
	var items []string
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*s = NewStringSet(items...)
	return nil
}

// Catalog is what a vendor can serve. It is built once per vendor and is
// read-only after it has been published by the catalog service.
type Catalog struct {
	Vendor Vendor `json:"vendor"`
	// Tickers are canonical (upper case) tickers.
	Tickers StringSet `json:"tickers"`
	// Indexes is the subset of Tickers served as indexes rather than assets.
	Indexes StringSet `json:"indexes,omitempty"`
	// Fields are canonical or vendor-native field names the vendor serves.
	Fields StringSet `json:"fields"`
	// Frequencies are the canonical frequencies the vendor can honour.
	Frequencies StringSet `json:"frequencies"`
	// Markets are vendor-native market identifiers.
	Markets   StringSet `json:"markets"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewCatalog returns an empty catalog for vendor.
func NewCatalog(vendor Vendor) *Catalog {
	return &Catalog{
		Vendor:      vendor,
		Tickers:     NewStringSet(),
		Indexes:     NewStringSet(),
		Fields:      NewStringSet(),
		Frequencies: NewStringSet(),
		Markets:     NewStringSet(),
	}
}

func (c *Catalog) HasTicker(t string) bool       { return c.Tickers.Has(t) }
func (c *Catalog) HasIndex(t string) bool        { return c.Indexes.Has(t) }
func (c *Catalog) HasField(f string) bool        { return c.Fields.Has(f) }
func (c *Catalog) HasMarket(m string) bool       { return c.Markets.Has(m) }
func (c *Catalog) HasFrequency(f Frequency) bool { return c.Frequencies.Has(string(f)) }

// CatalogSummary is the size of each capability set, used by the catalog endpoint.
type CatalogSummary struct {
	Vendor      Vendor    `json:"vendor"`
	Tickers     int       `json:"tickers"`
	Indexes     int       `json:"indexes"`
	Fields      int       `json:"fields"`
	Frequencies []string  `json:"frequencies"`
	Markets     int       `json:"markets"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Summary returns the capability counts.
func (c *Catalog) Summary() CatalogSummary {
	return CatalogSummary{
		Vendor:      c.Vendor,
		Tickers:     len(c.Tickers),
		Indexes:     len(c.Indexes),
		Fields:      len(c.Fields),
		Frequencies: c.Frequencies.Sorted(),
		Markets:     len(c.Markets),
		FetchedAt:   c.FetchedAt,
	}
}
