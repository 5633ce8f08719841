package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for structural identity.
// Version suffix enables future algorithm migration.
const (
	DomainRoute  = "gridroute/route/v1"
	DomainLayout = "gridroute/layout/v1"
)

// Canonical is implemented by layout descriptions that take part in
// structural route keys.
type Canonical interface {
	CanonicalMap() map[string]any
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LayoutHash returns the structural hash of one layout description.
func LayoutHash(c Canonical) (string, error) {
	data, err := MarshalCanonical(c.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("LayoutHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainLayout, data), nil
}

// RouteKey computes the structural cache key of a route: the operation, the
// element kind, operation parameters, and every participating layout. Two
// PETs given the same inputs compute the same key without communicating.
func RouteKey(op string, kind Kind, params map[string]any, layouts ...Canonical) (string, error) {
	parts := make([]any, len(layouts))
	for i, l := range layouts {
		parts[i] = l.CanonicalMap()
	}
	obj := map[string]any{
		"op":         op,
		"kind":       int(kind),
		"ir_version": IRVersion,
		"layouts":    parts,
	}
	if params != nil {
		obj["params"] = params
	}
	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RouteKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRoute, data), nil
}

// MustRouteKey is like RouteKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRouteKey(op string, kind Kind, params map[string]any, layouts ...Canonical) string {
	key, err := RouteKey(op, kind, params, layouts...)
	if err != nil {
		panic(err)
	}
	return key
}

// CanonicalMap implements Canonical.
func (d *Decomposition) CanonicalMap() map[string]any {
	shards := make([]any, len(d.Shards))
	for pet, axes := range d.Shards {
		if axes == nil {
			shards[pet] = []any{}
			continue
		}
		list := make([]any, len(axes))
		for i, a := range axes {
			list[i] = []int{a.ExclusiveLo, a.ExclusiveHi, a.TotalLo, a.TotalHi, a.GlobalOffset}
		}
		shards[pet] = list
	}
	periodic := make([]bool, d.Rank)
	copy(periodic, d.Periodic)
	ids := make([]int, d.Rank)
	copy(ids, d.DecompIDs)
	return map[string]any{
		"type":         "block",
		"name":         d.Name,
		"rank":         d.Rank,
		"global_count": d.GlobalCount,
		"periodic":     periodic,
		"decomp_ids":   ids,
		"shards":       shards,
	}
}

// CanonicalMap implements Canonical.
func (l *DomainList) CanonicalMap() map[string]any {
	des := make([]any, len(l.Blocks))
	for de, blocks := range l.Blocks {
		list := make([]any, len(blocks))
		for i, b := range blocks {
			flat := make([]int, 0, 2*len(b.Region)+1)
			for _, rg := range b.Region {
				flat = append(flat, rg.Lo, rg.Hi)
			}
			flat = append(flat, b.Offset)
			list[i] = flat
		}
		des[de] = list
	}
	return map[string]any{
		"type":         "domains",
		"name":         l.Name,
		"rank":         l.Rank,
		"global_count": l.GlobalCount,
		"blocks":       des,
	}
}

// CanonicalMap implements Canonical.
func (l DELayout) CanonicalMap() map[string]any {
	return map[string]any{
		"type": "delayout",
		"pets": []int(l),
	}
}
