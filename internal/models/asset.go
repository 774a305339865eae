// internal/models/asset.go
package models

import "sort"

// Asset is one photo stored under a placeholder.
type Asset struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// AssetMap maps placeholder ids to their assets in listing order.
type AssetMap map[string][]Asset

// ResolvedAssets is an AssetMap together with its placeholder ids in the
// order storage listed them. A map alone cannot carry that order.
type ResolvedAssets struct {
	Order  []string
	Assets AssetMap
}

// Placeholders returns the ids that hold at least one asset, in listing
// order. Ids absent from Order follow, sorted.
func (r ResolvedAssets) Placeholders() []string {
	out := make([]string, 0, len(r.Assets))
	seen := make(map[string]bool, len(r.Assets))
	for _, k := range r.Order {
		if seen[k] || len(r.Assets[k]) == 0 {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	var rest []string
	for k, v := range r.Assets {
		if !seen[k] && len(v) > 0 {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Len is the number of placeholders holding assets.
func (r ResolvedAssets) Len() int {
	n := 0
	for _, v := range r.Assets {
		if len(v) > 0 {
			n++
		}
	}
	return n
}

// Photo is an asset whose bytes were fetched for embedding.
type Photo struct {
	Asset
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// PhotoSet maps placeholder ids to fetched photos in listing order.
type PhotoSet map[string][]Photo

// ObjectEntry is one item returned by an object-store listing. Prefix entries
// are "directories" under the listed prefix.
type ObjectEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsPrefix bool   `json:"isPrefix"`
}
