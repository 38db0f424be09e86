// Package report aggregates classified transactions into the structured
// revenue summary and renders its human-readable form.
package report

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var moneyPrinter = message.NewPrinter(language.Russian)

// FormatMoney renders a decimal in the report's single locale-stable form:
// grouped integer thousands, comma decimal separator, two fraction digits,
// trailing currency tag. Pure.
func FormatMoney(v float64, currency string) string {
	s := moneyPrinter.Sprint(number.Decimal(v, number.Scale(2)))
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// Money pairs a raw decimal with its rendered form.
type Money struct {
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
}

func money(v float64, currency string) Money {
	return Money{Value: v, Formatted: FormatMoney(v, currency)}
}
