// Package report turns manager outcomes into a validation report with
// coverage, concentration and a recommendation.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ethpandaops/bundloor/pkg/manager"
	"github.com/ethpandaops/bundloor/pkg/registry"
)

// Recommendation grades the achieved coverage.
type Recommendation string

const (
	RecommendationExcellent   Recommendation = "excellent"
	RecommendationGood        Recommendation = "good"
	RecommendationInvestigate Recommendation = "investigate"
)

const (
	excellentCoverage = 0.90
	goodCoverage      = 0.70

	// HHI above this marks a highly concentrated builder set.
	highConcentration = 0.25
)

// Recommend grades coverage: >= 0.90 excellent, >= 0.70 good, otherwise
// investigate. Coverage is rounded to 9 decimals first so that summed shares
// such as 0.7+0.2 land on the threshold.
func Recommend(coverage float64) Recommendation {
	c := math.Round(coverage*1e9) / 1e9

	switch {
	case c >= excellentCoverage:
		return RecommendationExcellent
	case c >= goodCoverage:
		return RecommendationGood
	default:
		return RecommendationInvestigate
	}
}

// Concentration is the Herfindahl-Hirschman index of the shares.
func Concentration(shares []float64) float64 {
	hhi := 0.0
	for _, s := range shares {
		hhi += s * s
	}

	return hhi
}

// BuilderLine is the per-builder row of a report.
type BuilderLine struct {
	Name       string        `json:"name"`
	Share      float64       `json:"market_share"`
	Healthy    bool          `json:"healthy"`
	Selected   bool          `json:"selected"`
	Submitted  bool          `json:"submitted"`
	Accepted   bool          `json:"accepted"`
	Latency    time.Duration `json:"latency"`
	BundleHash string        `json:"bundle_hash,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// ValidationReport summarizes one dry run or live submission.
type ValidationReport struct {
	Timestamp      time.Time      `json:"timestamp"`
	DryRun         bool           `json:"dry_run"`
	BundleHash     string         `json:"bundle_hash"`
	TopN           int            `json:"top_n"`
	Builders       []BuilderLine  `json:"builders"`
	ActiveCount    int            `json:"active"`
	HealthyCount   int            `json:"healthy"`
	SelectedCount  int            `json:"selected"`
	Coverage       float64        `json:"coverage"`
	Concentration  float64        `json:"concentration"`
	Recommendation Recommendation `json:"recommendation"`
	Messages       []string       `json:"messages,omitempty"`
}

// Build creates a report from a manager run over the given active builders.
// Coverage is the selected share for dry runs and the accepted share for live
// submissions.
func Build(r *manager.Report, active []registry.Builder, topN int) *ValidationReport {
	vr := &ValidationReport{
		Timestamp:   time.Now(),
		DryRun:      r.DryRun,
		BundleHash:  r.BundleHash,
		TopN:        topN,
		Builders:    make([]BuilderLine, 0, len(active)),
		ActiveCount: len(active),
	}

	lines := make(map[string]*BuilderLine, len(active))

	for _, b := range active {
		vr.Builders = append(vr.Builders, BuilderLine{Name: b.Name, Share: b.MarketShare})
	}

	for i := range vr.Builders {
		lines[vr.Builders[i].Name] = &vr.Builders[i]
	}

	for _, h := range r.Health {
		if line, ok := lines[h.Builder]; ok {
			line.Healthy = h.Healthy
			line.Latency = h.Latency
			line.Error = h.Error
		}
	}

	for _, b := range r.Selected {
		if line, ok := lines[b.Name]; ok {
			line.Selected = true
		}
	}

	for _, res := range r.Results {
		if line, ok := lines[res.Builder]; ok {
			line.Submitted = true
			line.Accepted = res.Success
			line.Latency = res.Latency
			line.BundleHash = res.BundleHash
			line.Error = res.Error
		}
	}

	healthyShares := make([]float64, 0, len(active))

	var unhealthy, excluded []string

	for _, line := range vr.Builders {
		switch {
		case !line.Healthy:
			unhealthy = append(unhealthy, line.Name)
		case !line.Selected:
			excluded = append(excluded, line.Name)
		}

		if line.Healthy {
			healthyShares = append(healthyShares, line.Share)
		}
	}

	vr.HealthyCount = len(healthyShares)
	vr.SelectedCount = len(r.Selected)
	vr.Concentration = Concentration(healthyShares)

	if r.DryRun {
		vr.Coverage = r.Coverage
	} else {
		vr.Coverage = r.AcceptedCoverage
	}

	vr.Recommendation = Recommend(vr.Coverage)

	if vr.HealthyCount == 0 {
		vr.Messages = append(vr.Messages, "no healthy builders, bundle would not be submitted")
	}

	if len(unhealthy) > 0 {
		vr.Messages = append(vr.Messages, fmt.Sprintf("unhealthy builders: %s", strings.Join(unhealthy, ", ")))
	}

	if len(excluded) > 0 {
		vr.Messages = append(vr.Messages, fmt.Sprintf("healthy but outside top %d: %s", topN, strings.Join(excluded, ", ")))
	}

	if !r.DryRun {
		for _, line := range vr.Builders {
			if line.Submitted && !line.Accepted {
				vr.Messages = append(vr.Messages, fmt.Sprintf("%s rejected bundle: %s", line.Name, line.Error))
			}
		}
	}

	if vr.Concentration > highConcentration {
		vr.Messages = append(vr.Messages, fmt.Sprintf("builder set is highly concentrated (HHI %.4f)", vr.Concentration))
	}

	return vr
}
