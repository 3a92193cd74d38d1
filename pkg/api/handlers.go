package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/bundloor/pkg/bundle"
	"github.com/ethpandaops/bundloor/pkg/manager"
	"github.com/ethpandaops/bundloor/pkg/registry"
	"github.com/ethpandaops/bundloor/pkg/report"
)

const maxBundleBodySize = 1 << 20

// APIHandler handles the bundle API endpoints.
type APIHandler struct {
	manager        *manager.Manager
	authHandler    *AuthHandler
	eventStreamMgr *EventStreamManager
	requireAuth    bool
	log            logrus.FieldLogger
}

// NewAPIHandler creates a new API handler. When requireAuth is set, live
// submissions need a valid bearer token.
func NewAPIHandler(
	mgr *manager.Manager,
	authHandler *AuthHandler,
	eventStreamMgr *EventStreamManager,
	requireAuth bool,
	log logrus.FieldLogger,
) *APIHandler {
	return &APIHandler{
		manager:        mgr,
		authHandler:    authHandler,
		eventStreamMgr: eventStreamMgr,
		requireAuth:    requireAuth,
		log:            log.WithField("component", "api"),
	}
}

// BuildersResponse is the response for GET /api/builders.
type BuildersResponse struct {
	TopN     int                `json:"top_n"`
	Builders []registry.Builder `json:"builders"`
}

// GetBuilders returns the builder catalog.
func (h *APIHandler) GetBuilders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, BuildersResponse{
		TopN:     h.manager.Config().TopN,
		Builders: h.manager.Registry().All(),
	})
}

// GetHealth runs a health sweep and returns the resulting selection.
func (h *APIHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	plan := h.manager.Plan(r.Context())

	if h.eventStreamMgr != nil {
		h.eventStreamMgr.BroadcastHealth(plan)
	}

	writeJSON(w, http.StatusOK, plan)
}

// DryRunBundle plans a submission for the posted bundle.
func (h *APIHandler) DryRunBundle(w http.ResponseWriter, r *http.Request) {
	b, ok := h.decodeBundle(w, r)
	if !ok {
		return
	}

	res, err := h.manager.DryRun(r.Context(), b)
	h.writeReport(w, res, err)
}

// SubmitBundle submits the posted bundle to the selected builders.
func (h *APIHandler) SubmitBundle(w http.ResponseWriter, r *http.Request) {
	if h.requireAuth && h.authHandler.CheckAuthToken(r.Header.Get("Authorization")) == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	b, ok := h.decodeBundle(w, r)
	if !ok {
		return
	}

	res, err := h.manager.Submit(r.Context(), b)
	h.writeReport(w, res, err)
}

func (h *APIHandler) decodeBundle(w http.ResponseWriter, r *http.Request) (*bundle.StandardBundle, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBundleBodySize)

	var b bundle.StandardBundle
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid bundle: "+err.Error())
		return nil, false
	}

	return &b, true
}

func (h *APIHandler) writeReport(w http.ResponseWriter, res *manager.Report, err error) {
	if res == nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	vr := report.Build(res, h.manager.Registry().Active(), h.manager.Config().TopN)

	status := http.StatusOK
	if errors.Is(err, manager.ErrNoHealthyBuilders) {
		status = http.StatusServiceUnavailable
	}

	h.log.WithFields(logrus.Fields{
		"bundle_hash": vr.BundleHash,
		"dry_run":     vr.DryRun,
		"coverage":    vr.Coverage,
	}).Debug("Bundle request handled")

	writeJSON(w, status, vr)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
