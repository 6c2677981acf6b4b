// Package models defines data structures for BGP route observations,
// classified nodes, and the output graph document.
package models

// RouteObservation is one BGP state record after strict parsing: a target
// prefix, the collector peer that observed it, and the raw AS path tokens.
type RouteObservation struct {
	TargetPrefix string
	SourceID     string
	Path         []string
}

// ObservationKey deduplicates observations within one analysis run.
// Each (prefix, source) pair contributes to aggregate counts at most once.
type ObservationKey struct {
	TargetPrefix string
	SourceID     string
}

// EdgeKey identifies a directed edge between two ASNs.
type EdgeKey struct {
	Source string
	Target string
}

// Edge is a directed interconnection with accumulated route count.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Count  int    `json:"count"`
	Kind   string `json:"type"`
}

// Edge kinds
const (
	EdgeInternational = "international"
	EdgeDomestic      = "domestic"
)

// Node types (six-category classification model)
const (
	TypeOutside            = "outside"             // international transit provider
	TypeIIG                = "iig"                 // licensed border gateway
	TypeDetectedIIG        = "detected-iig"        // acts as gateway, not in license list
	TypeOffshoreEnterprise = "offshore-enterprise" // registered domestically, abroad, no downstream
	TypeOffshoreGateway    = "offshore-gateway"    // registered domestically, abroad, serves domestic customers
	TypeLocalCompany       = "local-company"       // domestic origin network
)

// Peering location sources
const (
	PeeringSourceDirect   = "peeringdb"
	PeeringSourceUpstream = "peeringdb-upstream"
	PeeringSourceGeo      = "fallback-geo"
)

// GeoLocation is one entry of a geolocation breakdown for an ASN's
// announced space.
type GeoLocation struct {
	Country    string  `json:"country"`
	City       string  `json:"city"`
	Percentage float64 `json:"percentage"`
}

// GeoResult summarizes where an ASN's announced prefixes are located.
type GeoResult struct {
	DominantCountry    string        `json:"dominant_country"`
	Breakdown          []GeoLocation `json:"breakdown"`
	DomesticPercentage float64       `json:"domestic_percentage"`
}

// PeeringLocation is the inferred physical peering country for an
// offshore ASN, with up to 5 facility/exchange names as evidence.
type PeeringLocation struct {
	Country string   `json:"country"`
	Details []string `json:"details"`
	Source  string   `json:"source"`
}

// ASNInfo carries per-ASN metadata fetched from external registries.
// The ASN itself is an opaque string token, never parsed as a number.
type ASNInfo struct {
	ASN       string     `json:"asn"`
	Name      string     `json:"name"`
	Holder    string     `json:"holder"`
	Announced bool       `json:"announced"`
	Country   string     `json:"country"`
	Geo       *GeoResult `json:"geo,omitempty"`
}

// Node is one classified ASN in the output graph.
type Node struct {
	ASN            string        `json:"asn"`
	Type           string        `json:"type"`
	Licensed       bool          `json:"licensed"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Country        string        `json:"country"`
	GeoCountry     string        `json:"geo_country"`
	GeoBreakdown   []GeoLocation `json:"geo_breakdown,omitempty"`
	PeeringCountry string        `json:"peering_country,omitempty"`
	PeeringDetails []string      `json:"peering_details,omitempty"`
	PeeringSource  string        `json:"peering_source,omitempty"`
	Announced      bool          `json:"announced"`
	Traffic        int           `json:"traffic"`
	Rank           int           `json:"rank"`
	Percentage     float64       `json:"percentage"`
}

// Stats summarizes one analysis run.
type Stats struct {
	TotalOutside            int `json:"total_outside"`
	TotalIIG                int `json:"total_iig"`
	TotalDetectedIIG        int `json:"total_detected_iig"`
	TotalOffshoreEnterprise int `json:"total_offshore_enterprise"`
	TotalOffshoreGateway    int `json:"total_offshore_gateway"`
	TotalLocalCompany       int `json:"total_local_company"`
	TotalEdges              int `json:"total_edges"`
	TotalIntlEdges          int `json:"total_intl_edges"`
	TotalDomesticEdges      int `json:"total_domestic_edges"`
	TotalTraffic            int `json:"total_traffic"`
	ValidObservations       int `json:"valid_observations"`
	FailedBatches           int `json:"failed_batches"`
}

// GraphDocument is the classified interconnection graph handed to the
// rendering layer.
type GraphDocument struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	Stats Stats  `json:"stats"`
}

// Metadata describes a completed run alongside the graph document.
type Metadata struct {
	Country       string `json:"country"`
	RunID         string `json:"run_id"`
	LastUpdated   string `json:"last_updated"`
	SchemaVersion int    `json:"schema_version"`
	Model         string `json:"model"`
	Stats         Stats  `json:"stats"`
	Source        string `json:"source"`
	SourceURL     string `json:"source_url"`
}
