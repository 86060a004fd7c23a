// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package geoip resolves an address to an ISO country code through a
// MaxMind GeoLite2/GeoIP2 country database, feeding sigparse's geoip
// keyword (spec.md's distillation has no address-classification concept
// of its own; this is a supplemental feature carried over from the
// teacher, which links the same two database libraries for its own
// per-device classification).
package geoip

import (
	"net"
	"net/netip"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// Reader resolves addresses against one open MaxMind country database.
// Safe for concurrent use: geoip2.Reader's own Country lookup is
// concurrency-safe, and Close is guarded so a racing Close/Country pair
// never crashes an in-flight detection worker.
type Reader struct {
	mu sync.RWMutex
	db *geoip2.Reader
}

// Open loads a MaxMind country database file (mmdb format, the same
// database format the teacher ships for geoip2-golang/maxminddb-golang).
func Open(path string) (*Reader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

// Close releases the underlying database file.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Country reports addr's upper-case ISO 3166-1 alpha-2 country code, or
// ok=false when addr isn't found in the database (private/reserved
// ranges, an exhausted or unloaded database).
func (r *Reader) Country(addr netip.Addr) (code string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return "", false
	}
	rec, err := r.db.Country(net.IP(addr.AsSlice()))
	if err != nil || rec == nil {
		return "", false
	}
	code = strings.ToUpper(rec.Country.IsoCode)
	if code == "" {
		return "", false
	}
	return code, true
}
