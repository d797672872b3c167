package fees

import "vendra/config"

// FromConfig builds a calculator from the loaded application config.
func FromConfig() Calculator {
	return Calculator{Rates: RateTable{
		SameCityFee:           config.AppConfig.SameCityFee,
		InterCityFee:          config.AppConfig.InterCityFee,
		FreeShippingThreshold: config.AppConfig.FreeShippingThreshold,
		ProtectionFee:         config.AppConfig.ProtectionFee,
	}}
}
