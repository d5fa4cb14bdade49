package positions

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUSD renders v as "$1,234.56" ("-$1,234.56" when negative).
func FormatUSD(v decimal.Decimal) string {
	s := FormatNumber(v, 2)
	if strings.HasPrefix(s, "-") {
		return "-$" + s[1:]
	}
	return "$" + s
}

// FormatNumber rounds v to places and groups the integer part by thousands.
func FormatNumber(v decimal.Decimal, places int32) string {
	s := v.StringFixed(places)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if sign == "-" && strings.Trim(intPart+frac, "0.,") == "" {
		sign = ""
	}
	return sign + b.String() + frac
}

// DisplaySymbol strips the perpetual suffixes from a market symbol
// ("ETHRUSDPERP" -> "ETH").
func DisplaySymbol(symbol string) string {
	s := strings.TrimSuffix(symbol, "RUSDPERP")
	return strings.TrimSuffix(s, "PERP")
}

// ShortAddress renders a wallet address as "0x1234...abcd".
func ShortAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
