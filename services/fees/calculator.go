package fees

import "strings"

// RateTable holds the fixed fee constants. Loaded from config in
// production; tests pass explicit tables.
type RateTable struct {
	SameCityFee           int64
	InterCityFee          int64
	FreeShippingThreshold int64
	ProtectionFee         int64
}

// Quote is the fee breakdown for one checkout.
type Quote struct {
	Subtotal      int64 `json:"subtotal"`
	ShippingFee   int64 `json:"shipping_fee"`
	ProtectionFee int64 `json:"protection_fee"`
	Total         int64 `json:"total"`
}

// Calculator computes shipping and protection fees. Pure and
// deterministic: it is invoked at quote time and again at order creation
// and the two results must match.
type Calculator struct {
	Rates RateTable
}

// Compute returns the fee breakdown. An official store shipping an order
// at or above the free-shipping threshold ships free; otherwise the fee
// depends on whether buyer and seller share a city. The protection fee is
// flat and unconditional.
func (c Calculator) Compute(subtotal int64, buyerAddress, sellerAddress string, officialStore bool) Quote {
	var shipping int64
	switch {
	case officialStore && subtotal >= c.Rates.FreeShippingThreshold:
		shipping = 0
	case SameCity(buyerAddress, sellerAddress):
		shipping = c.Rates.SameCityFee
	default:
		shipping = c.Rates.InterCityFee
	}

	return Quote{
		Subtotal:      subtotal,
		ShippingFee:   shipping,
		ProtectionFee: c.Rates.ProtectionFee,
		Total:         subtotal + shipping + c.Rates.ProtectionFee,
	}
}

// SameCity reports whether two addresses name the same city. The city is
// the first comma-delimited segment, compared case-insensitively.
func SameCity(a, b string) bool {
	ca, cb := CityOf(a), CityOf(b)
	return ca != "" && ca == cb
}

// CityOf extracts the city segment of an address.
func CityOf(address string) string {
	city := address
	if i := strings.Index(address, ","); i >= 0 {
		city = address[:i]
	}
	return strings.ToLower(strings.TrimSpace(city))
}
