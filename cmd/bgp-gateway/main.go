// bgp-gateway - License-aware BGP border-gateway analyzer.
//
// Fetches a country's routing-table state from RIPEstat, finds where each
// route crosses into the country, and classifies every border ASN into a
// six-category model (licensed gateway, detected gateway, offshore
// enterprise/gateway, local company, outside). Offshore ASNs get their
// physical peering country inferred from PeeringDB.
//
// Usage:
//
//	bgp-gateway -country=BD -licenses=data/iig_licenses.json
//
// Environment variables (alternative to flags):
//
//	BGP_GATEWAY_COUNTRY  - Target country code
//	BGP_GATEWAY_LICENSES - Path to license list JSON file
//	BGP_GATEWAY_DATABASE - PostgreSQL URL for the license table
//	BGP_GATEWAY_REDIS    - Redis URL for the ASN metadata cache
//	BGP_GATEWAY_DATA     - Output data directory
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/hervehildenbrand/bgp-gateway/pkg/analysis"
	"github.com/hervehildenbrand/bgp-gateway/pkg/cache"
	"github.com/hervehildenbrand/bgp-gateway/pkg/fetch"
	"github.com/hervehildenbrand/bgp-gateway/pkg/license"
	"github.com/hervehildenbrand/bgp-gateway/pkg/models"
	"github.com/hervehildenbrand/bgp-gateway/pkg/peeringdb"
	"github.com/hervehildenbrand/bgp-gateway/pkg/ripestat"
)

const schemaVersion = 3

var (
	countryFlag   = flag.String("country", "", "Target country code (default: BD)")
	licensesFlag  = flag.String("licenses", "", "Path to license list JSON file (optional)")
	databaseFlag  = flag.String("database", "", "PostgreSQL URL for the license table (optional)")
	licenseTable  = flag.String("license-table", "iig_licenses", "License table name")
	redisURLFlag  = flag.String("redis", "", "Redis URL for the ASN metadata cache (optional)")
	dataDirFlag   = flag.String("data", "", "Output data directory (default: data)")
	rps           = flag.Float64("rps", 4, "Upstream requests per second")
	topEdges      = flag.Int("top-edges", analysis.DefaultTopEdges, "Edges of each kind retained in the graph")
	cadence       = flag.Int("cadence", 10000, "Aggregation progress cadence (observations)")
	batchSize     = flag.Int("batch", 10000, "Observations per worker batch")
	reprocess     = flag.Bool("reprocess", false, "Skip fetching, reprocess cached raw routes")
	cacheTTL      = flag.Duration("cache-ttl", 7*24*time.Hour, "Redis cache TTL for ASN metadata")
)

// getEnvOrFlag returns the flag value if set, otherwise the environment variable, otherwise the default.
func getEnvOrFlag(flagVal *string, envName, defaultVal string) string {
	if *flagVal != "" {
		return *flagVal
	}
	if env := os.Getenv(envName); env != "" {
		return env
	}
	return defaultVal
}

func main() {
	_ = godotenv.Load()
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("bgp-gateway starting...")

	country := strings.ToUpper(getEnvOrFlag(countryFlag, "BGP_GATEWAY_COUNTRY", "BD"))
	licensePath := getEnvOrFlag(licensesFlag, "BGP_GATEWAY_LICENSES", "")
	databaseURL := getEnvOrFlag(databaseFlag, "BGP_GATEWAY_DATABASE", "")
	redisURL := getEnvOrFlag(redisURLFlag, "BGP_GATEWAY_REDIS", "")
	dataDir := getEnvOrFlag(dataDirFlag, "BGP_GATEWAY_DATA", "data")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One limiter shared by every upstream client bounds the combined
	// request rate regardless of concurrency width.
	limiter := fetch.NewRateLimiter(*rps)
	ripe := ripestat.NewClient(limiter)
	pdb := peeringdb.NewClient(limiter)

	// License registry: file > database > null.
	var registry license.Registry = license.NewNullRegistry()
	if licensePath != "" {
		fileReg, err := license.NewFileRegistry(licensePath)
		if err != nil {
			log.Printf("Warning: failed to load license list from %s: %v", licensePath, err)
		} else {
			registry = fileReg
		}
	} else if databaseURL != "" {
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			log.Printf("Warning: license database connection failed: %v", err)
		} else {
			dbReg := license.NewDatabaseRegistry(db, *licenseTable)
			dbReg.Start()
			registry = dbReg
		}
	} else {
		log.Printf("No license list configured - all gateways will classify as 'detected-iig'")
	}
	defer registry.Stop()
	if registry.Count() > 0 {
		log.Printf("License registry: %d licensed ASNs", registry.Count())
	}

	// Redis-backed ASN metadata cache (optional).
	var redisClient *redis.Client
	if redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Printf("Warning: invalid Redis URL: %v", err)
		} else {
			redisClient = redis.NewClient(opt)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				log.Printf("Warning: Redis connection failed: %v", err)
				redisClient = nil
			} else {
				log.Printf("Connected to Redis: %s", redisURL)
			}
		}
	}
	asnCache, err := cache.New(0, redisClient, *cacheTTL)
	if err != nil {
		log.Fatalf("Failed to create ASN cache: %v", err)
	}

	countryDir := filepath.Join(dataDir, country)
	if err := os.MkdirAll(countryDir, 0o755); err != nil {
		log.Fatalf("Failed to create %s: %v", countryDir, err)
	}
	rawPath := filepath.Join(countryDir, "bgp_routes_raw.json")

	// Step 1: country resources. Nothing can proceed without these.
	countrySet, prefixes, err := ripe.CountryResources(ctx, country)
	if err != nil {
		log.Fatalf("Failed to fetch country resources: %v", err)
	}

	// Step 2: routing-table state, fetched or reloaded.
	var routes []models.RouteObservation
	failedBatches := 0
	if *reprocess {
		routes, err = loadRawRoutes(rawPath)
		if err != nil {
			log.Fatalf("Failed to load cached routes from %s: %v", rawPath, err)
		}
		log.Printf("Loaded %d cached routes from %s", len(routes), rawPath)
	} else {
		routes, failedBatches, err = fetchRoutes(ctx, ripe, prefixes)
		if len(routes) > 0 {
			if werr := writeJSON(rawPath, routes, false); werr != nil {
				log.Printf("Warning: failed to save raw routes: %v", werr)
			} else {
				log.Printf("Saved %d raw routes to %s", len(routes), rawPath)
			}
		}
		if err != nil {
			if err == context.Canceled || ctx.Err() != nil {
				log.Printf("Cancelled. Partial raw routes are saved; rerun with -reprocess to analyze them.")
				os.Exit(1)
			}
			log.Fatalf("BGP state fetch failed: %v", err)
		}
		if len(routes) == 0 {
			log.Fatalf("No routes fetched (%d batches failed); cannot proceed", failedBatches)
		}
	}

	// Step 3: aggregate on the analysis worker.
	worker := analysis.NewWorker()
	worker.Start()
	defer worker.Stop()
	worker.Init(countrySet, *cadence, len(routes))

	go func() {
		for p := range worker.Progress() {
			log.Printf("Aggregating: %d/%d observations (%d valid)...", p.Processed, p.Total, p.Valid)
		}
	}()

	valid := 0
	for i := 0; i < len(routes); i += *batchSize {
		end := i + *batchSize
		if end > len(routes) {
			end = len(routes)
		}
		_, v := worker.Batch(routes[i:end])
		valid += v
	}
	log.Printf("Aggregation complete: %d valid observations from %d routes", valid, len(routes))

	summary := worker.Summary(*topEdges, registry)

	// Step 4: ASN metadata for every counted ASN.
	asnInfo := ripe.FetchASNInfo(ctx, summary.ASNs, countrySet, country, asnCache)

	// Step 4b: geolocation for unlicensed country-registered border ASNs.
	geo := map[string]models.GeoResult{}
	if len(summary.TentativeBorders) > 0 {
		geo = ripe.FetchGeo(ctx, summary.TentativeBorders, country)
	}
	offshore := make(map[string]string)
	for asn, g := range geo {
		if g.DominantCountry != country {
			offshore[asn] = g.DominantCountry
		}
	}

	// Step 4c: physical peering locations for offshore ASNs.
	var peering map[string]models.PeeringLocation
	if len(offshore) > 0 {
		log.Printf("Resolving peering locations for %d offshore ASNs...", len(offshore))
		peering = peeringdb.NewResolver(pdb, country).Resolve(ctx, offshore, summary.UpstreamPeers)
	}

	// Step 5: classify and build the graph.
	doc := worker.Finalize(analysis.ClassifyInput{
		CountryCode:      country,
		CountrySet:       countrySet,
		Licensed:         registry,
		Info:             asnInfo,
		Geo:              geo,
		Peering:          peering,
		TopInternational: *topEdges,
		TopDomestic:      *topEdges,
		FailedBatches:    failedBatches,
	})

	vizPath := filepath.Join(countryDir, "viz_data.json")
	if err := writeJSON(vizPath, doc, true); err != nil {
		log.Fatalf("Failed to write %s: %v", vizPath, err)
	}

	meta := models.Metadata{
		Country:       country,
		RunID:         uuid.NewString(),
		LastUpdated:   time.Now().UTC().Format(time.RFC3339),
		SchemaVersion: schemaVersion,
		Model:         "license-aware",
		Stats:         doc.Stats,
		Source:        "RIPEstat BGP State API",
		SourceURL:     "https://stat.ripe.net/data/bgp-state/data.json",
	}
	metaPath := filepath.Join(countryDir, "metadata.json")
	if err := writeJSON(metaPath, meta, true); err != nil {
		log.Fatalf("Failed to write %s: %v", metaPath, err)
	}

	log.Printf("Wrote %s and %s", vizPath, metaPath)
	printSummary(doc)
}

func fetchRoutes(ctx context.Context, ripe *ripestat.Client, prefixes []string) ([]models.RouteObservation, int, error) {
	batches := fetch.ChunkResources(prefixes, fetch.DefaultURLBudget)
	log.Printf("Fetching BGP state in %d batches...", len(batches))

	tracker := fetch.NewProgressTracker(len(batches))
	go func() {
		for p := range tracker.Events() {
			finished := p.Completed + p.Failed
			if finished%5 == 0 || finished == p.Total {
				log.Printf("Progress: %d/%d batches (%d failed, ETA %.1f min)",
					finished, p.Total, p.Failed, p.ETASeconds/60)
			}
		}
	}()

	routes, failed, err := ripe.FetchBGPState(ctx, prefixes, tracker)
	tracker.Close()
	if failed > 0 {
		log.Printf("Warning: %d batches failed even after retries", failed)
	}
	return routes, failed, err
}

func loadRawRoutes(path string) ([]models.RouteObservation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var routes []models.RouteObservation
	if err := json.Unmarshal(raw, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

func writeJSON(path string, v interface{}, indent bool) error {
	var data []byte
	var err error
	if indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printSummary(doc *models.GraphDocument) {
	s := doc.Stats
	log.Printf("CLASSIFICATION SUMMARY")
	log.Printf("  Outside ASNs:          %d", s.TotalOutside)
	log.Printf("  Licensed IIGs:         %d", s.TotalIIG)
	log.Printf("  Detected gateways:     %d", s.TotalDetectedIIG)
	log.Printf("  Offshore enterprises:  %d", s.TotalOffshoreEnterprise)
	log.Printf("  Offshore gateways:     %d", s.TotalOffshoreGateway)
	log.Printf("  Local companies:       %d", s.TotalLocalCompany)
	log.Printf("  Edges:                 %d (%d intl, %d domestic)", s.TotalEdges, s.TotalIntlEdges, s.TotalDomesticEdges)
	log.Printf("  Valid observations:    %d", s.ValidObservations)

	top := func(ntype string, limit int) []models.Node {
		var typed []models.Node
		for _, n := range doc.Nodes {
			if n.Type == ntype {
				typed = append(typed, n)
			}
		}
		sort.SliceStable(typed, func(i, j int) bool { return typed[i].Traffic > typed[j].Traffic })
		if len(typed) > limit {
			typed = typed[:limit]
		}
		return typed
	}

	for _, n := range top(models.TypeIIG, 5) {
		log.Printf("  IIG AS%s %s - %d routes (%.1f%%)", n.ASN, n.Name, n.Traffic, n.Percentage)
	}
	for _, n := range top(models.TypeDetectedIIG, 10) {
		log.Printf("  Detected gateway AS%s %s - %d routes", n.ASN, n.Name, n.Traffic)
	}
	for _, n := range top(models.TypeOffshoreGateway, 10) {
		extra := ""
		if n.PeeringCountry != "" {
			extra = fmt.Sprintf(", peering: %s [%s]", n.PeeringCountry, n.PeeringSource)
		}
		log.Printf("  Offshore gateway AS%s %s (geo: %s%s)", n.ASN, n.Name, n.GeoCountry, extra)
	}
	for _, n := range top(models.TypeOffshoreEnterprise, 10) {
		extra := ""
		if n.PeeringCountry != "" {
			extra = fmt.Sprintf(", peering: %s [%s]", n.PeeringCountry, n.PeeringSource)
		}
		log.Printf("  Offshore enterprise AS%s %s (geo: %s%s)", n.ASN, n.Name, n.GeoCountry, extra)
	}
}
