package normalize

// Package normalize expands search terms through a static synonym map so a
// query phrased in operator vocabulary ("registration") can still find log
// lines written in firmware vocabulary ("reg failed").

import (
	"fmt"
	"strings"

	"github.com/loglens/loglens-ai/internal/logstore"
)

// synonyms maps a canonical term to its surface variants as they appear in
// log payloads. Lookup is case-insensitive on the canonical term; variants
// are searched literally.
var synonyms = map[string][]string{
	"error":         {"err", "fail", "failure", "exception", "critical"},
	"registration":  {"reg", "register", "registered", "reg failed", "reg complete"},
	"connection":    {"connect", "connected", "disconnect", "disconnected", "conn"},
	"offline":       {"down", "unreachable", "lost", "timeout"},
	"online":        {"up", "reachable", "active", "operational"},
	"ranging":       {"range", "ranged", "rng-req", "rng-rsp"},
	"reset":         {"reboot", "restart", "power cycle"},
	"authorization": {"auth", "authorized", "unauthorized", "bpi"},
}

// Normalizer expands terms and runs variant-union searches against a Store.
type Normalizer struct {
	store *logstore.Store
}

// New creates a Normalizer over the given store.
func New(store *logstore.Store) *Normalizer {
	return &Normalizer{store: store}
}

// Normalize returns the search variants for term: the term itself first,
// then any configured synonyms. The result always contains at least the
// original term; an empty term is an error.
func (n *Normalizer) Normalize(term string) ([]string, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("term must not be empty")
	}

	variants := []string{term}
	for _, v := range synonyms[strings.ToLower(strings.TrimSpace(term))] {
		if v != term {
			variants = append(variants, v)
		}
	}
	return variants, nil
}

// FuzzySearch returns the union, by row identity, of substring searches for
// every variant of term, preserving the input set's original order. It is
// always a superset of the plain substring search for term.
func (n *Normalizer) FuzzySearch(rs *logstore.RowSet, term string) (*logstore.RowSet, []string, error) {
	variants, err := n.Normalize(term)
	if err != nil {
		return logstore.EmptyRowSet(), nil, err
	}
	if rs == nil {
		return logstore.EmptyRowSet(), variants, nil
	}

	matched := make(map[int]bool)
	for _, variant := range variants {
		sub, err := n.store.SearchSubstring(rs, variant, nil)
		if err != nil {
			return logstore.EmptyRowSet(), variants, err
		}
		for _, row := range sub.Rows() {
			matched[row.Index] = true
		}
	}

	var kept []*logstore.Row
	for _, row := range rs.Rows() {
		if matched[row.Index] {
			kept = append(kept, row)
		}
	}
	return logstore.NewRowSet(kept), variants, nil
}
