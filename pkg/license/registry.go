// Package license provides gateway license-registry lookups with multiple
// backend options.
package license

import (
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

const refreshInterval = 15 * time.Minute

// Registry answers whether an ASN holds an international gateway license.
type Registry interface {
	// Contains reports whether the ASN is on the license list.
	Contains(asn string) bool
	// Count returns the number of licensed ASNs.
	Count() int
	// Start begins any background refresh operations.
	Start()
	// Stop stops any background operations.
	Stop()
}

// NullRegistry treats every ASN as unlicensed. Use this when no license
// list is available; all gateways then classify as detected.
type NullRegistry struct{}

// NewNullRegistry creates a new null registry.
func NewNullRegistry() *NullRegistry { return &NullRegistry{} }

func (r *NullRegistry) Contains(string) bool { return false }
func (r *NullRegistry) Count() int           { return 0 }
func (r *NullRegistry) Start()               {}
func (r *NullRegistry) Stop()                {}

// FileRegistry loads licensed ASNs from a JSON file whose top-level keys
// are ASN tokens. Keys starting with "_" are metadata, not ASNs.
type FileRegistry struct {
	asns map[string]bool
}

// NewFileRegistry creates a registry from a JSON license file.
func NewFileRegistry(filePath string) (*FileRegistry, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	asns := make(map[string]bool, len(entries))
	for key := range entries {
		if strings.HasPrefix(key, "_") {
			continue
		}
		asns[key] = true
	}
	log.Printf("FileRegistry: loaded %d licensed ASNs from %s", len(asns), filePath)
	return &FileRegistry{asns: asns}, nil
}

func (r *FileRegistry) Contains(asn string) bool { return r.asns[asn] }
func (r *FileRegistry) Count() int               { return len(r.asns) }
func (r *FileRegistry) Start()                   {}
func (r *FileRegistry) Stop()                    {}

// DatabaseRegistry loads licensed ASNs from a database table with
// periodic refresh. Uses a simple schema: SELECT asn FROM iig_licenses
type DatabaseRegistry struct {
	db        *sql.DB
	tableName string
	asns      map[string]bool
	mu        sync.RWMutex
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewDatabaseRegistry creates a registry backed by a database table.
// tableName defaults to "iig_licenses" if empty.
func NewDatabaseRegistry(db *sql.DB, tableName string) *DatabaseRegistry {
	if tableName == "" {
		tableName = "iig_licenses"
	}
	return &DatabaseRegistry{
		db:        db,
		tableName: tableName,
		asns:      make(map[string]bool),
		done:      make(chan struct{}),
	}
}

// Start loads the license list and begins periodic refresh.
func (r *DatabaseRegistry) Start() {
	r.refresh()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.refresh()
			case <-r.done:
				return
			}
		}
	}()
}

// Stop stops the refresh loop.
func (r *DatabaseRegistry) Stop() {
	close(r.done)
	r.wg.Wait()
}

func (r *DatabaseRegistry) Contains(asn string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.asns[asn]
}

func (r *DatabaseRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.asns)
}

func (r *DatabaseRegistry) refresh() {
	start := time.Now()

	query := "SELECT asn FROM " + r.tableName
	rows, err := r.db.Query(query)
	if err != nil {
		log.Printf("DatabaseRegistry: failed to query %s: %v", r.tableName, err)
		return
	}
	defer rows.Close()

	newASNs := make(map[string]bool)
	for rows.Next() {
		var asn string
		if err := rows.Scan(&asn); err != nil {
			continue
		}
		asn = strings.TrimSpace(asn)
		if asn != "" {
			newASNs[asn] = true
		}
	}
	if err := rows.Err(); err != nil {
		log.Printf("DatabaseRegistry: row iteration error: %v", err)
		return
	}

	r.mu.Lock()
	r.asns = newASNs
	r.mu.Unlock()

	log.Printf("DatabaseRegistry: loaded %d licensed ASNs in %v", len(newASNs), time.Since(start))
}
