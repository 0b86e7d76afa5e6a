package models

// Category is the asset class of a query.
type Category string

const (
	CategoryCrypto    Category = "crypto"
	CategoryFX        Category = "fx"
	CategoryEquity    Category = "eqty"
	CategoryCommodity Category = "cmdty"
	CategoryRates     Category = "rates"
	CategoryBonds     Category = "bonds"
	CategoryCredit    Category = "credit"
	CategoryMacro     Category = "macro"
	CategoryAlt       Category = "alt"
)

var categories = map[Category]struct{}{
	CategoryCrypto: {}, CategoryFX: {}, CategoryEquity: {}, CategoryCommodity: {},
	CategoryRates: {}, CategoryBonds: {}, CategoryCredit: {}, CategoryMacro: {}, CategoryAlt: {},
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// MarketType is the instrument type within a category.
type MarketType string

const (
	MarketSpot      MarketType = "spot"
	MarketETF       MarketType = "etf"
	MarketPerpetual MarketType = "perpetual_future"
	MarketFuture    MarketType = "future"
	MarketSwap      MarketType = "swap"
	MarketOption    MarketType = "option"
)

var marketTypes = map[MarketType]struct{}{
	MarketSpot: {}, MarketETF: {}, MarketPerpetual: {}, MarketFuture: {}, MarketSwap: {}, MarketOption: {},
}

// Valid reports whether m is a known market type.
func (m MarketType) Valid() bool {
	_, ok := marketTypes[m]
	return ok
}

// IsDerivative reports whether the market carries funding and open interest.
func (m MarketType) IsDerivative() bool {
	return m == MarketPerpetual || m == MarketFuture || m == MarketSwap
}

// Endpoint is a vendor-independent data family. Each vendor maps the
// endpoints it serves onto its own resources.
type Endpoint string

const (
	EndpointOHLCV        Endpoint = "ohlcv"
	EndpointIndex        Endpoint = "index"
	EndpointOnChain      Endpoint = "onchain"
	EndpointOpenInterest Endpoint = "open_interest"
	EndpointFundingRates Endpoint = "funding_rates"
	EndpointTrades       Endpoint = "trades"
	EndpointQuotes       Endpoint = "quotes"
	EndpointTicks        Endpoint = "ticks"
	EndpointCatalog      Endpoint = "catalog"
)

// CapabilityKind names the dimension of a query a vendor could not serve.
type CapabilityKind string

const (
	CapabilityTicker    CapabilityKind = "ticker"
	CapabilityField     CapabilityKind = "field"
	CapabilityFrequency CapabilityKind = "frequency"
	CapabilityMarket    CapabilityKind = "market"
	CapabilityExchange  CapabilityKind = "exchange"
)
