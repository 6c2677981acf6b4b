package ripestat

// invalidRegions are RIR region codes that look like ISO country codes in
// holder names but must not be treated as countries.
var invalidRegions = map[string]bool{
	"AP": true, "EU": true, "AS": true, "AF": true,
	"LA": true, "NA": true, "OC": true, "AN": true,
}

// WellKnownCountries maps major transit and content ASNs to their
// registration country. Holder-name parsing is unreliable for these, so
// they override empty or region-coded results.
var WellKnownCountries = map[string]string{
	"174":    "US", // Cogent
	"6939":   "US", // Hurricane Electric
	"6461":   "US", // Zayo
	"3356":   "US", // Lumen (Level3)
	"1299":   "SE", // Arelion/Telia
	"2914":   "US", // NTT America
	"3257":   "DE", // GTT
	"3491":   "US", // PCCW Global
	"5511":   "FR", // Orange
	"6762":   "IT", // Telecom Italia Sparkle
	"9002":   "EU", // RETN
	"9498":   "IN", // Bharti Airtel
	"4637":   "HK", // Telstra Global
	"2516":   "JP", // KDDI
	"4826":   "AU", // Vocus
	"7922":   "US", // Comcast
	"20473":  "US", // Vultr
	"13335":  "US", // Cloudflare
	"16509":  "US", // Amazon
	"15169":  "US", // Google
	"8075":   "US", // Microsoft
	"32934":  "US", // Meta
	"36351":  "US", // SoftLayer
	"46489":  "US", // Twitch
	"397143": "US", // NetActuate
}
