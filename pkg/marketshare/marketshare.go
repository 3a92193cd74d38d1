// Package marketshare fetches live builder market share from a
// relayscan-style statistics endpoint.
package marketshare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/bundloor/pkg/registry"
)

// Upper bound on the stats response body.
const maxStatsBody = 4 << 20

// Entry is one builder row from the stats endpoint.
type Entry struct {
	ExtraData string   `json:"extra_data"`
	NumBlocks uint64   `json:"num_blocks"`
	Percent   string   `json:"percent,omitempty"`
	Aliases   []string `json:"aliases,omitempty"`
}

type statsResponse struct {
	TopBuilders []Entry `json:"top_builders"`
}

// Fetcher retrieves builder statistics.
type Fetcher struct {
	url        string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewFetcher creates a fetcher for the given stats URL.
func NewFetcher(url string, timeout time.Duration, log logrus.FieldLogger) *Fetcher {
	return &Fetcher{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.WithField("component", "marketshare"),
	}
}

// Fetch downloads the top builder list.
func (f *Fetcher) Fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("stats endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var stats statsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxStatsBody)).Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}

	f.log.WithField("entries", len(stats.TopBuilders)).Debug("Fetched builder stats")

	return stats.TopBuilders, nil
}

// Shares maps entries onto catalog builders. Extra data and entry aliases are
// split into lowercase words; an entry matches a builder when the builder's
// name or one of its aliases appears as whole words. Each entry counts toward
// the first matching builder only. A builder's share is its matched block
// count over all blocks in the stats. Builders with no match are omitted.
func Shares(entries []Entry, builders []registry.Builder) map[string]float64 {
	var total uint64
	for _, e := range entries {
		total += e.NumBlocks
	}

	shares := make(map[string]float64, len(builders))
	if total == 0 {
		return shares
	}

	needles := make([][][]string, len(builders))
	for i, b := range builders {
		needles[i] = append(needles[i], words(b.Name))

		for _, a := range b.Aliases {
			if w := words(a); len(w) > 0 {
				needles[i] = append(needles[i], w)
			}
		}
	}

	blocks := make(map[string]uint64, len(builders))

	for _, e := range entries {
		for i, b := range builders {
			if entryMatches(e, needles[i]) {
				blocks[b.Name] += e.NumBlocks
				break
			}
		}
	}

	for name, n := range blocks {
		shares[name] = float64(n) / float64(total)
	}

	return shares
}

// words splits s into lowercase runs of letters, digits and dashes.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

func entryMatches(e Entry, needles [][]string) bool {
	haystacks := make([][]string, 0, len(e.Aliases)+1)
	haystacks = append(haystacks, words(e.ExtraData))

	for _, a := range e.Aliases {
		haystacks = append(haystacks, words(a))
	}

	for _, h := range haystacks {
		for _, n := range needles {
			if containsRun(h, n) {
				return true
			}
		}
	}

	return false
}

// containsRun reports whether needle appears in haystack as consecutive words.
func containsRun(haystack, needle []string) bool {
	if len(needle) == 0 {
		return false
	}

	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true

		for j, w := range needle {
			if haystack[i+j] != w {
				match = false
				break
			}
		}

		if match {
			return true
		}
	}

	return false
}

// Refresh fetches live shares and returns a new registry carrying them. On
// any failure the original registry is returned with the error.
func (f *Fetcher) Refresh(ctx context.Context, reg *registry.Registry) (*registry.Registry, error) {
	entries, err := f.Fetch(ctx)
	if err != nil {
		return reg, err
	}

	shares := Shares(entries, reg.All())

	refreshed, err := reg.WithShares(shares)
	if err != nil {
		return reg, fmt.Errorf("failed to apply shares: %w", err)
	}

	var static []string

	for _, b := range reg.All() {
		if _, ok := shares[b.Name]; !ok {
			static = append(static, b.Name)
		}
	}

	f.log.WithFields(logrus.Fields{
		"builders": len(shares),
		"static":   static,
	}).Info("Applied live market shares")

	return refreshed, nil
}
