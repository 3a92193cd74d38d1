// Package manager fans bundles out to the healthy, highest-share builders and
// aggregates their outcomes.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/bundloor/pkg/builders"
	"github.com/ethpandaops/bundloor/pkg/bundle"
	"github.com/ethpandaops/bundloor/pkg/metrics"
	"github.com/ethpandaops/bundloor/pkg/registry"
	"github.com/ethpandaops/bundloor/pkg/utils"
)

// DefaultTopN is the number of builders a bundle is sent to by default.
const DefaultTopN = 4

// ErrNoHealthyBuilders is returned alongside an empty report when no active
// builder passed its health check.
var ErrNoHealthyBuilders = errors.New("no healthy builders")

// Config controls selection and timeouts.
type Config struct {
	TopN          int
	EnableLogging bool
	HealthTimeout time.Duration
	SubmitTimeout time.Duration
	SubmitRetries int // extra attempts for failed builders
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		TopN:          DefaultTopN,
		EnableLogging: true,
		HealthTimeout: 5 * time.Second,
		SubmitTimeout: 10 * time.Second,
	}
}

// Plan is the outcome of the health and selection phases. Coverage is the
// summed market share of the selected builders.
type Plan struct {
	Health   []builders.HealthStatus `json:"health"`
	Selected []registry.Builder      `json:"selected"`
	Coverage float64                 `json:"coverage"`
}

// Report is the outcome of a submission or dry run. AcceptedCoverage sums the
// share of selected builders that accepted the bundle.
type Report struct {
	Plan
	BundleHash       string                      `json:"bundle_hash"`
	DryRun           bool                        `json:"dry_run"`
	Results          []builders.SubmissionResult `json:"results,omitempty"`
	AcceptedCoverage float64                     `json:"accepted_coverage"`
	Duration         time.Duration               `json:"duration"`
}

// SubmissionEvent is published for every per-builder submission outcome.
type SubmissionEvent struct {
	Builder     string
	BlockNumber uint64
	BundleHash  string
	Result      builders.SubmissionResult
	Timestamp   time.Time
}

// Manager coordinates health checks and submissions across builders.
type Manager struct {
	cfg      Config
	registry *registry.Registry
	clients  map[string]builders.Client
	metrics  *metrics.Metrics
	log      logrus.FieldLogger

	submissionDispatch *utils.Dispatcher[*SubmissionEvent]
}

// NewManager creates a manager. Every active builder needs a client.
func NewManager(
	cfg Config,
	reg *registry.Registry,
	clients map[string]builders.Client,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) (*Manager, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}

	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}

	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultConfig().HealthTimeout
	}

	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultConfig().SubmitTimeout
	}

	if cfg.SubmitRetries < 0 {
		cfg.SubmitRetries = 0
	}

	for _, b := range reg.Active() {
		if _, ok := clients[b.Name]; !ok {
			return nil, fmt.Errorf("no client for active builder %s", b.Name)
		}
	}

	if log == nil || !cfg.EnableLogging {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	return &Manager{
		cfg:                cfg,
		registry:           reg,
		clients:            clients,
		metrics:            m,
		log:                log.WithField("component", "multi-builder"),
		submissionDispatch: &utils.Dispatcher[*SubmissionEvent]{},
	}, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Registry returns the builder catalog.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// SubscribeSubmissions returns a subscription for submission events.
func (m *Manager) SubscribeSubmissions(capacity int) *utils.Subscription[*SubmissionEvent] {
	return m.submissionDispatch.Subscribe(capacity, false)
}

// CheckHealth checks every active builder concurrently. Results are in
// registry order. A failing or panicking check only marks its own builder
// unhealthy.
func (m *Manager) CheckHealth(ctx context.Context) []builders.HealthStatus {
	active := m.registry.Active()
	results := make([]builders.HealthStatus, len(active))

	var wg sync.WaitGroup

	for i, b := range active {
		wg.Add(1)

		go func(idx int, b registry.Builder) {
			defer wg.Done()

			results[idx] = m.checkOne(ctx, b.Name)
		}(i, b)
	}

	wg.Wait()

	healthy := 0

	for _, status := range results {
		m.metrics.ObserveHealth(status.Builder, status.Healthy)

		if status.Healthy {
			healthy++
			continue
		}

		m.log.WithFields(logrus.Fields{
			"builder": status.Builder,
			"error":   status.Error,
		}).Warn("Builder unhealthy")
	}

	m.metrics.SetHealthy(healthy)

	m.log.WithFields(logrus.Fields{
		"healthy": healthy,
		"active":  len(active),
	}).Debug("Health checks complete")

	return results
}

func (m *Manager) checkOne(ctx context.Context, name string) (status builders.HealthStatus) {
	status.Builder = name

	defer func() {
		if r := recover(); r != nil {
			status = builders.HealthStatus{
				Builder: name,
				Error:   fmt.Sprintf("health check panicked: %v", r),
			}
		}
	}()

	hctx, cancel := context.WithTimeout(ctx, m.cfg.HealthTimeout)
	defer cancel()

	status = m.clients[name].HealthCheck(hctx)
	status.Builder = name

	return status
}

// Select filters active builders to the healthy ones, orders them by market
// share descending (ties keep input order) and keeps at most topN.
func Select(active []registry.Builder, healthy map[string]bool, topN int) []registry.Builder {
	candidates := make([]registry.Builder, 0, len(active))

	for _, b := range active {
		if healthy[b.Name] {
			candidates = append(candidates, b)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MarketShare > candidates[j].MarketShare
	})

	if topN >= 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}

	return candidates
}

// Coverage sums the market share of the given builders.
func Coverage(selected []registry.Builder) float64 {
	total := 0.0
	for _, b := range selected {
		total += b.MarketShare
	}

	return total
}

// Plan runs health checks and selects the builders a bundle would go to.
func (m *Manager) Plan(ctx context.Context) Plan {
	health := m.CheckHealth(ctx)

	healthy := make(map[string]bool, len(health))
	for _, h := range health {
		healthy[h.Builder] = h.Healthy
	}

	selected := Select(m.registry.Active(), healthy, m.cfg.TopN)

	return Plan{
		Health:   health,
		Selected: selected,
		Coverage: Coverage(selected),
	}
}

// DryRun plans a submission without contacting the builders' bundle
// endpoints. The selection is identical to what Submit would use.
func (m *Manager) DryRun(ctx context.Context, b *bundle.StandardBundle) (*Report, error) {
	start := time.Now()
	plan := m.Plan(ctx)

	report := &Report{
		Plan:       plan,
		BundleHash: b.Hash().Hex(),
		DryRun:     true,
		Duration:   time.Since(start),
	}

	if len(plan.Selected) == 0 {
		m.log.Warn("No healthy builders available")
		return report, ErrNoHealthyBuilders
	}

	m.log.WithFields(logrus.Fields{
		"selected": len(plan.Selected),
		"coverage": plan.Coverage,
	}).Info("Dry run complete")

	return report, nil
}

// Submit plans and sends the bundle to every selected builder concurrently.
// Individual failures are recorded in the report and never abort the batch.
func (m *Manager) Submit(ctx context.Context, b *bundle.StandardBundle) (*Report, error) {
	start := time.Now()
	plan := m.Plan(ctx)

	report := &Report{
		Plan:       plan,
		BundleHash: b.Hash().Hex(),
	}

	if len(plan.Selected) == 0 {
		m.log.Warn("No healthy builders available, bundle not submitted")
		m.metrics.SetCoverage(0)

		report.Duration = time.Since(start)

		return report, ErrNoHealthyBuilders
	}

	report.Results = m.submitAll(ctx, plan.Selected, b)

	for i, res := range report.Results {
		if res.Success {
			report.AcceptedCoverage += plan.Selected[i].MarketShare
		}
	}

	report.Duration = time.Since(start)
	m.metrics.SetCoverage(report.AcceptedCoverage)

	m.log.WithFields(logrus.Fields{
		"block":       b.BlockNumber(),
		"bundle_hash": report.BundleHash,
		"selected":    len(plan.Selected),
		"coverage":    report.AcceptedCoverage,
		"duration":    report.Duration,
	}).Info("Bundle submitted")

	return report, nil
}

// submitAll submits to each selected builder in its own goroutine. Results
// are written to per-builder slots in selection order.
func (m *Manager) submitAll(ctx context.Context, selected []registry.Builder, b *bundle.StandardBundle) []builders.SubmissionResult {
	var wg sync.WaitGroup

	results := make([]builders.SubmissionResult, len(selected))

	for i, builder := range selected {
		wg.Add(1)

		go func(idx int, name string) {
			defer wg.Done()

			results[idx] = m.submitOne(ctx, name, b)
		}(i, builder.Name)
	}

	wg.Wait()

	return results
}

func (m *Manager) submitOne(ctx context.Context, name string, b *bundle.StandardBundle) builders.SubmissionResult {
	var (
		result   builders.SubmissionResult
		attempts int
	)

	for attempt := 0; attempt <= m.cfg.SubmitRetries; attempt++ {
		if ctx.Err() != nil {
			break
		}

		result = m.submitAttempt(ctx, name, b)
		attempts++

		m.metrics.ObserveSubmission(name, result.Success, result.Latency)

		if result.Success {
			break
		}

		m.log.WithFields(logrus.Fields{
			"builder": name,
			"attempt": attempts,
			"error":   result.Error,
		}).Warn("Bundle submission failed")
	}

	if attempts == 0 {
		result = builders.SubmissionResult{Builder: name, Error: ctx.Err().Error()}
	}

	result.Builder = name
	result.Attempts = attempts

	m.submissionDispatch.Fire(&SubmissionEvent{
		Builder:     name,
		BlockNumber: b.BlockNumber(),
		BundleHash:  b.Hash().Hex(),
		Result:      result,
		Timestamp:   time.Now(),
	})

	return result
}

func (m *Manager) submitAttempt(ctx context.Context, name string, b *bundle.StandardBundle) (result builders.SubmissionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = builders.SubmissionResult{
				Builder: name,
				Error:   fmt.Sprintf("submission panicked: %v", r),
			}
		}
	}()

	sctx, cancel := context.WithTimeout(ctx, m.cfg.SubmitTimeout)
	defer cancel()

	return m.clients[name].Submit(sctx, b)
}
