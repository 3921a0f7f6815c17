// Package universe classifies ticker symbols for constraint evaluation:
// index membership, hedge instruments, leveraged/meme names, and
// crypto-linked equities. The sets are fixed at compile time; they are part
// of the game's rules, not runtime data.
package universe

import "sort"

// indexMembers is the allowed universe for index-only profiles: a large-cap
// index subset plus the major broad-market ETFs.
var indexMembers = makeSet(
	"AAPL", "MSFT", "AMZN", "NVDA", "GOOGL", "GOOG", "META", "TSLA", "BRK.B",
	"UNH", "XOM", "JNJ", "JPM", "V", "PG", "MA", "HD", "CVX", "MRK", "ABBV",
	"LLY", "PEP", "KO", "COST", "AVGO", "WMT", "MCD", "CSCO", "TMO", "ACN",
	"ABT", "DHR", "NEE", "DIS", "VZ", "ADBE", "WFC", "PM", "CMCSA", "CRM",
	"NKE", "TXN", "RTX", "BMY", "UPS", "QCOM", "HON", "ORCL", "T", "COP",
	"AMGN", "INTC", "IBM", "CAT", "SPGI", "PLD", "LOW", "BA", "GS", "INTU",
	"SBUX", "MDLZ", "AMD", "BLK", "DE", "AXP", "ELV", "GILD", "LMT", "ISRG",
	"ADI", "CVS", "BKNG", "TJX", "VRTX", "REGN", "SYK", "TMUS", "MMC", "PGR",
	"ADP", "ZTS", "CI", "LRCX", "SCHW", "NOW", "MO", "EOG", "BDX", "C",
	"PYPL", "SO", "ETN", "DUK", "SLB", "CB", "ITW", "NOC", "BSX", "EQIX",
	"CME", "APD", "MU", "SNPS", "ATVI", "ICE", "AON", "HUM", "FCX", "CSX",
	"CL", "WM", "GD", "MCK", "USB", "EMR", "PXD", "KLAC", "NSC", "ORLY",
	"SHW", "MAR", "MCO", "PNC", "CDNS", "NXPI", "F", "GM", "ROP", "HCA",
	"AZO", "FDX", "PSA", "TRV", "D", "AEP", "TFC", "KMB", "MRNA", "OXY",
	// Major ETFs.
	"SPY", "QQQ", "IWM", "DIA", "VOO", "VTI", "BND", "AGG", "TLT",
)

// hedgeSymbols are downside-protection instruments: inverse/volatility ETFs,
// precious metals, and bond funds. They are exempt from long-equity caps.
var hedgeSymbols = makeSet(
	"SQQQ", "UVXY", "SH", "SPXS", "VXX", "SDOW", "SPXU", "QID", "SDS", "TZA",
	"GLD", "SLV", "TLT", "BND", "IEF",
)

// leveragedSymbols are leveraged ETFs and meme names excluded by
// conservative profiles.
var leveragedSymbols = makeSet(
	"TQQQ", "SOXL", "UPRO", "SPXL", "TECL", "FAS", "LABU", "FNGU", "WEBL",
	"SQQQ", "SOXS", "SPXS", "SPXU", "UVXY", "SVXY",
	"GME", "AMC", "BBBY", "DWAC",
)

// cryptoSymbols are equities whose value tracks crypto markets.
var cryptoSymbols = makeSet(
	"COIN", "MARA", "RIOT", "BITO", "MSTR", "GBTC", "HOOD",
)

func makeSet(symbols ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}

// InIndex reports whether the symbol belongs to the allowed index universe.
func InIndex(symbol string) bool {
	_, ok := indexMembers[symbol]
	return ok
}

// IsHedge reports whether the symbol is a hedge instrument.
func IsHedge(symbol string) bool {
	_, ok := hedgeSymbols[symbol]
	return ok
}

// IsLeveraged reports whether the symbol is a leveraged ETF or meme name.
func IsLeveraged(symbol string) bool {
	_, ok := leveragedSymbols[symbol]
	return ok
}

// IsCryptoLinked reports whether the symbol is a crypto-linked equity.
func IsCryptoLinked(symbol string) bool {
	_, ok := cryptoSymbols[symbol]
	return ok
}

// IndexSymbols returns the allowed index universe as a sorted slice, for
// callers that need the full list (the price refresher's watch list).
func IndexSymbols() []string {
	symbols := make([]string, 0, len(indexMembers))
	for s := range indexMembers {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
