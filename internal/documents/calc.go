package documents

import "github.com/jetpos/jetpos-backoffice/internal/shared"

// Totals aggregates the document-level amounts derived from its lines.
type Totals struct {
	Subtotal    float64
	TotalVAT    float64
	RoundAmount float64
	GrandTotal  float64
}

// Recompute derives every line's totals and the document aggregates from the
// raw inputs (quantity, unit price, discount, VAT rate). Rounding happens at
// each stage: line total, then VAT amount; the sum of two two-decimal values
// needs no further rounding for the with-VAT figure. The function is
// idempotent: feeding its own output back yields identical values, because
// rounding an already-rounded amount is stable.
//
// Negative quantities are legitimate — return documents represent credits
// with them — and the sign propagates through every derived field. Zero
// quantity or price simply yields a zero line.
func Recompute(lines []Line, roundAmount float64) ([]Line, Totals) {
	out := make([]Line, len(lines))
	var subtotal, totalVAT float64
	for i, line := range lines {
		raw := line.Quantity * line.UnitPrice
		discounted := raw * (1 - line.DiscountRate/100)
		line.LineTotal = shared.Round2(discounted)
		line.VATAmount = shared.Round2(line.LineTotal * line.VATRate / 100)
		line.LineTotalWithVAT = line.LineTotal + line.VATAmount
		subtotal += line.LineTotal
		totalVAT += line.VATAmount
		out[i] = line
	}
	totals := Totals{
		Subtotal:    shared.Round2(subtotal),
		TotalVAT:    shared.Round2(totalVAT),
		RoundAmount: roundAmount,
	}
	totals.GrandTotal = shared.Round2(totals.Subtotal + totals.TotalVAT + roundAmount)
	return out, totals
}
