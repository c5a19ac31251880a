package format

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Spec describes how a money amount is rendered.
type Spec struct {
	Locale language.Tag
	Symbol string
	Places int
}

// IDR renders rupiah the way the dashboard shows prices, e.g. "Rp 9.525,00".
var IDR = Spec{Locale: language.Indonesian, Symbol: "Rp ", Places: 2}

// USD renders US dollars, e.g. "$1,234.50".
var USD = Spec{Locale: language.AmericanEnglish, Symbol: "$", Places: 2}

// Currency formats v with grouping and fixed fraction digits for spec's locale.
// Non-finite values render as "-".
func Currency(v float64, spec Spec) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	p := message.NewPrinter(spec.Locale)
	return sign + spec.Symbol + p.Sprint(number.Decimal(v, number.Scale(spec.Places)))
}

// Percent formats a percentage value such as a MAPE or a change, e.g. "1,25%".
func Percent(v float64, spec Spec) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	p := message.NewPrinter(spec.Locale)
	return p.Sprint(number.Decimal(v, number.Scale(spec.Places))) + "%"
}
