// Package ripestat fetches country resources, BGP state, AS overviews,
// and geolocation data from the RIPEstat Data API.
package ripestat

import "encoding/json"

// flexString decodes a JSON value that may arrive as either a string or a
// number into a string token, preserving the exact digits.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

type countryResourceResponse struct {
	Data struct {
		Resources struct {
			ASN  []flexString `json:"asn"`
			IPv4 []string     `json:"ipv4"`
			IPv6 []string     `json:"ipv6"`
		} `json:"resources"`
	} `json:"data"`
}

type bgpStateResponse struct {
	Data struct {
		BGPState []bgpStateRoute `json:"bgp_state"`
	} `json:"data"`
}

type bgpStateRoute struct {
	TargetPrefix string            `json:"target_prefix"`
	SourceID     string            `json:"source_id"`
	Path         []json.RawMessage `json:"path"`
}

type asOverviewResponse struct {
	Status string `json:"status"`
	Data   struct {
		Holder    string `json:"holder"`
		Announced bool   `json:"announced"`
	} `json:"data"`
}

type geoResponse struct {
	Status string `json:"status"`
	Data   struct {
		LocatedResources []struct {
			Locations []struct {
				Country           string  `json:"country"`
				City              string  `json:"city"`
				CoveredPercentage float64 `json:"covered_percentage"`
			} `json:"locations"`
		} `json:"located_resources"`
	} `json:"data"`
}

// flattenPath converts raw path elements into string tokens. Elements may
// be numbers, strings, or nested arrays (AS_SET); nested sets are
// flattened in place.
func flattenPath(raw []json.RawMessage) []string {
	tokens := make([]string, 0, len(raw))
	for _, elem := range raw {
		var tok flexString
		if err := json.Unmarshal(elem, &tok); err == nil {
			tokens = append(tokens, string(tok))
			continue
		}
		var set []flexString
		if err := json.Unmarshal(elem, &set); err == nil {
			for _, t := range set {
				tokens = append(tokens, string(t))
			}
		}
	}
	return tokens
}
