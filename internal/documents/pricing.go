package documents

import "github.com/jetpos/jetpos-backoffice/internal/shared"

// SuggestedSalePrice derives a resale price from a net purchase price and a
// target margin percentage. Used by the AI-assisted purchase flow; it is a
// sibling calculation rounded independently and never feeds line totals.
func SuggestedSalePrice(netPrice, marginPercent float64) float64 {
	return shared.Round2(netPrice * (1 + marginPercent/100))
}

// Profit reports the absolute and percentage profit between a purchase and
// sale price. Percentage is zero when the purchase price is not positive.
func Profit(purchasePrice, salePrice float64) (amount, percent float64) {
	amount = salePrice - purchasePrice
	if purchasePrice > 0 {
		percent = amount / purchasePrice * 100
	}
	return shared.Round2(amount), shared.Round2(percent)
}

// VATBreakdown splits a price into its VAT-included, VAT-excluded and VAT
// amount parts. When included is true the input already contains VAT.
type VATBreakdown struct {
	Included  float64
	Excluded  float64
	VATAmount float64
}

// SplitVAT computes the VAT breakdown of a price at the given rate.
func SplitVAT(price, vatRate float64, included bool) VATBreakdown {
	if included {
		excluded := price / (1 + vatRate/100)
		return VATBreakdown{
			Included:  price,
			Excluded:  shared.Round2(excluded),
			VATAmount: shared.Round2(price - excluded),
		}
	}
	vat := price * vatRate / 100
	return VATBreakdown{
		Included:  shared.Round2(price + vat),
		Excluded:  price,
		VATAmount: shared.Round2(vat),
	}
}
