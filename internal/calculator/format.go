package calculator

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/3tharva/split-the-tab-ai/internal/models"
)

var usd = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders amount as US dollars with two decimals and
// thousands separators, e.g. "$1,234.50" or "-$2.50". Half cents round away
// from zero on the shortest decimal form of amount, so 1.005 shows as "$1.01".
func FormatCurrency(amount float64) string {
	cents := decimal.NewFromFloat(amount).Round(2)
	sign := ""
	if cents.IsNegative() {
		sign = "-"
	}
	rounded, _ := cents.Abs().Float64()
	return sign + "$" + usd.Sprintf("%.2f", rounded)
}

// Summary renders the plain-text breakdown users copy to share results.
// Amounts are rounded only here; shares themselves stay unrounded.
func Summary(bill models.Bill, shares []models.Share) string {
	var sb strings.Builder
	sb.WriteString("Split The Tab - Bill Breakdown\n")
	sb.WriteString("Total: " + FormatCurrency(bill.Total) + "\n\n")

	for _, share := range shares {
		sb.WriteString(share.PersonName + ": " + FormatCurrency(share.Total) + "\n")
		sb.WriteString("Items: " + FormatCurrency(share.ItemsTotal) + "\n")
		sb.WriteString("Tax: " + FormatCurrency(share.TaxShare) + "\n")
		sb.WriteString("Tip: " + FormatCurrency(share.TipShare) + "\n\n")
	}
	return sb.String()
}
