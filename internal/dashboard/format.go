package dashboard

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"chartpi/internal/domain"
)

// quoteSuffixes are stripped from crypto pairs for display, longest first
// so that BUSD wins over USD.
var quoteSuffixes = []string{"USDT", "BUSD", "USD"}

func isQuotedPair(symbol string) bool {
	for _, s := range quoteSuffixes {
		if strings.HasSuffix(symbol, s) {
			return true
		}
	}
	return false
}

// FormatPrice formats a price for the symbol it belongs to. Stocks always
// get 2 decimals; USD-quoted pairs get 4 below 1 and 6 below 0.01.
func FormatPrice(price float64, symbol string) string {
	if !isQuotedPair(strings.ToUpper(symbol)) {
		return fmt.Sprintf("%.2f", price)
	}
	abs := math.Abs(price)
	switch {
	case abs >= 1:
		return fmt.Sprintf("%.2f", price)
	case abs >= 0.01:
		return fmt.Sprintf("%.4f", price)
	default:
		return fmt.Sprintf("%.6f", price)
	}
}

// FormatPercentChange formats a percent as "+X.XX%" or "-X.XX%".
func FormatPercentChange(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatChange formats an absolute change with an explicit sign, using the
// same precision as FormatPrice.
func FormatChange(change float64, symbol string) string {
	s := FormatPrice(change, symbol)
	if change >= 0 {
		return "+" + s
	}
	return s
}

// DisplaySymbol strips the quote currency from crypto pairs
// ("BTCUSDT" -> "BTC"). Stock symbols are returned unchanged.
func DisplaySymbol(symbol string, ac domain.AssetClass) string {
	if ac != domain.AssetCrypto {
		return symbol
	}
	for _, s := range quoteSuffixes {
		if base, ok := strings.CutSuffix(symbol, s); ok && base != "" {
			return base
		}
	}
	return symbol
}

// FormatVolume formats a traded volume with an SI suffix ("1.2M"), or
// "-" when the provider reports none.
func FormatVolume(v float64) string {
	if v <= 0 {
		return "-"
	}
	if v < 1000 {
		return humanize.FormatFloat("#.##", v)
	}
	val, prefix := humanize.ComputeSI(v)
	return humanize.FormatFloat("#.#", val) + prefix
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	return humanize.Comma(int64(n))
}

// FormatGain formats a gain fraction as "+X.X%", or "" if zero.
// Drops decimal for values >= 100% to keep width compact.
func FormatGain(g float64) string {
	if g <= 0 {
		return ""
	}
	pct := g * 100
	if pct >= 100 {
		return fmt.Sprintf("+%.0f%%", pct)
	}
	return fmt.Sprintf("+%.1f%%", pct)
}

// FormatLoss formats a loss fraction as "-X.X%", or "" if zero.
func FormatLoss(l float64) string {
	if l <= 0 {
		return ""
	}
	pct := l * 100
	if pct >= 100 {
		return fmt.Sprintf("-%.0f%%", pct)
	}
	return fmt.Sprintf("-%.1f%%", pct)
}
