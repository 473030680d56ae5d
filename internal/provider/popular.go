package provider

import (
	"strings"

	"chartpi/internal/domain"
)

// MaxSearchResults bounds every search response.
const MaxSearchResults = 15

func crypto(symbol, name string) domain.SymbolInfo {
	return domain.SymbolInfo{Symbol: symbol, Name: name, AssetClass: domain.AssetCrypto}
}

func stock(symbol, name, exchange string) domain.SymbolInfo {
	return domain.SymbolInfo{Symbol: symbol, Name: name, Exchange: exchange, AssetClass: domain.AssetStock}
}

// PopularCrypto are preloaded so search answers instantly.
var PopularCrypto = []domain.SymbolInfo{
	crypto("BTCUSDT", "Bitcoin"),
	crypto("ETHUSDT", "Ethereum"),
	crypto("BNBUSDT", "BNB"),
	crypto("SOLUSDT", "Solana"),
	crypto("XRPUSDT", "XRP"),
	crypto("ADAUSDT", "Cardano"),
	crypto("DOGEUSDT", "Dogecoin"),
	crypto("AVAXUSDT", "Avalanche"),
	crypto("DOTUSDT", "Polkadot"),
	crypto("MATICUSDT", "Polygon"),
	crypto("LINKUSDT", "Chainlink"),
	crypto("LTCUSDT", "Litecoin"),
	crypto("ATOMUSDT", "Cosmos"),
	crypto("UNIUSDT", "Uniswap"),
	crypto("XLMUSDT", "Stellar"),
	crypto("ETCUSDT", "Ethereum Classic"),
	crypto("NEARUSDT", "NEAR Protocol"),
	crypto("APTUSDT", "Aptos"),
	crypto("ARBUSDT", "Arbitrum"),
	crypto("OPUSDT", "Optimism"),
	crypto("SHIBUSDT", "Shiba Inu"),
	crypto("TRXUSDT", "TRON"),
	crypto("ICPUSDT", "Internet Computer"),
	crypto("FILUSDT", "Filecoin"),
	crypto("AAVEUSDT", "Aave"),
}

// PopularStocks are preloaded so search answers instantly.
var PopularStocks = []domain.SymbolInfo{
	stock("AAPL", "Apple Inc.", "NASDAQ"),
	stock("MSFT", "Microsoft Corporation", "NASDAQ"),
	stock("GOOGL", "Alphabet Inc.", "NASDAQ"),
	stock("AMZN", "Amazon.com Inc.", "NASDAQ"),
	stock("NVDA", "NVIDIA Corporation", "NASDAQ"),
	stock("META", "Meta Platforms Inc.", "NASDAQ"),
	stock("TSLA", "Tesla Inc.", "NASDAQ"),
	stock("BRK-B", "Berkshire Hathaway", "NYSE"),
	stock("JPM", "JPMorgan Chase & Co.", "NYSE"),
	stock("V", "Visa Inc.", "NYSE"),
	stock("JNJ", "Johnson & Johnson", "NYSE"),
	stock("WMT", "Walmart Inc.", "NYSE"),
	stock("MA", "Mastercard Inc.", "NYSE"),
	stock("PG", "Procter & Gamble", "NYSE"),
	stock("HD", "The Home Depot", "NYSE"),
	stock("DIS", "Walt Disney Co.", "NYSE"),
	stock("NFLX", "Netflix Inc.", "NASDAQ"),
	stock("AMD", "Advanced Micro Devices", "NASDAQ"),
	stock("INTC", "Intel Corporation", "NASDAQ"),
	stock("CRM", "Salesforce Inc.", "NYSE"),
	stock("BA", "Boeing Co.", "NYSE"),
	stock("NKE", "Nike Inc.", "NYSE"),
	stock("COST", "Costco Wholesale", "NASDAQ"),
	stock("PYPL", "PayPal Holdings", "NASDAQ"),
	stock("UBER", "Uber Technologies", "NYSE"),
}

// Popular returns the first ten popular entries for an empty query.
func Popular(ac domain.AssetClass) []domain.SymbolInfo {
	src := PopularStocks
	if ac == domain.AssetCrypto {
		src = PopularCrypto
	}
	out := make([]domain.SymbolInfo, 10)
	copy(out, src)
	return out
}

// matchSymbols returns entries whose symbol or name contains q
// (case-insensitive), at most limit of them.
func matchSymbols(list []domain.SymbolInfo, q string, limit int) []domain.SymbolInfo {
	q = strings.ToUpper(strings.TrimSpace(q))
	var out []domain.SymbolInfo
	for _, s := range list {
		if len(out) == limit {
			break
		}
		if strings.Contains(s.Symbol, q) || strings.Contains(strings.ToUpper(s.Name), q) {
			out = append(out, s)
		}
	}
	return out
}

// findPopular looks a symbol up in the popular list of its class.
func findPopular(ac domain.AssetClass, symbol string) (domain.SymbolInfo, bool) {
	src := PopularStocks
	if ac == domain.AssetCrypto {
		src = PopularCrypto
	}
	for _, s := range src {
		if s.Symbol == symbol {
			return s, true
		}
	}
	return domain.SymbolInfo{}, false
}
