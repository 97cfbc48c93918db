// Package dashhttp exposes the receivables aging view over HTTP.
package dashhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerbridge/recvdash/internal/aging"
	"github.com/ledgerbridge/recvdash/internal/charts"
	"github.com/ledgerbridge/recvdash/internal/dashboard"
	"github.com/ledgerbridge/recvdash/internal/dashboard/export"
	"github.com/ledgerbridge/recvdash/internal/ledger"
	"github.com/ledgerbridge/recvdash/internal/platform/httpx"
)

const requestTimeout = 10 * time.Second
const topCustomerCount = 10

// userHeader identifies the viewer; authentication itself belongs to the
// hosting application.
const userHeader = "X-User-ID"

// Service is the dashboard data contract used by the handler.
type Service interface {
	GetSnapshot(ctx context.Context) (dashboard.Snapshot, error)
	GetView(ctx context.Context, state aging.FilterState) (dashboard.View, error)
	Refresh(ctx context.Context) (dashboard.Snapshot, error)
	TopCustomers(ctx context.Context, n int) ([]aging.CustomerRow, error)
	BucketInvoices(ctx context.Context, bucket aging.BucketKey) ([]dashboard.BucketInvoice, error)
}

// RefreshObserver counts explicit snapshot refreshes.
type RefreshObserver interface {
	SnapshotReload()
}

// Handler coordinates HTTP requests for the aging view.
type Handler struct {
	logger   *slog.Logger
	service  Service
	sessions *dashboard.SessionRegistry
	prefs    dashboard.PrefStore
	validate *validator.Validate
	metrics  RefreshObserver
	now      func() time.Time
}

// NewHandler constructs the dashboard HTTP handler.
func NewHandler(logger *slog.Logger, service Service, sessions *dashboard.SessionRegistry, prefs dashboard.PrefStore) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		sessions: sessions,
		prefs:    prefs,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// WithMetrics attaches the refresh counter.
func (h *Handler) WithMetrics(obs RefreshObserver) {
	h.metrics = obs
}

type mountResponse struct {
	SessionID  string              `json:"session_id"`
	Rows       []aging.CustomerRow `json:"rows"`
	Totals     aging.BucketTotals  `json:"totals"`
	ZeroPolicy aging.ZeroPolicy    `json:"zero_policy"`
	AsOf       time.Time           `json:"as_of"`
}

// handleMount creates a view session: one aggregate fetch, the stored
// zero-visibility preference applied before first render.
func (h *Handler) handleMount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID := h.userID(r)
	policy, err := h.prefs.ZeroPolicy(ctx, userID)
	if err != nil {
		// Preference read failure falls back to the default; it must not
		// block the mount.
		h.logError("read zero policy", err)
		policy = aging.ShowZero
	}

	snapshot, err := h.service.GetSnapshot(ctx)
	if err != nil {
		h.respondServiceError(w, "mount snapshot", err)
		return
	}

	sess := h.sessions.Mount(userID, aging.FilterState{ZeroPolicy: policy})
	httpx.JSON(w, http.StatusOK, mountResponse{
		SessionID:  sess.ID.String(),
		Rows:       snapshot.Rows,
		Totals:     snapshot.Totals,
		ZeroPolicy: policy,
		AsOf:       snapshot.AsOf,
	})
}

type viewResponse struct {
	Rows           []aging.CustomerRow `json:"rows"`
	Totals         aging.BucketTotals  `json:"totals"`
	BaselineTotals aging.BucketTotals  `json:"baseline_totals"`
}

// handleAging serves the filtered aging view. Filters come from query
// parameters so the endpoint stays stateless and cacheable by clients.
func (h *Handler) handleAging(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.GetView(ctx, filterFromQuery(r))
	if err != nil {
		h.respondServiceError(w, "load aging view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewResponse{
		Rows:           view.Rows,
		Totals:         view.VisibleTotals,
		BaselineTotals: view.BaselineTotals,
	})
}

type filterRequest struct {
	Query      string `json:"query"`
	Bucket     string `json:"bucket"`
	ZeroPolicy string `json:"zero_policy"`
}

// handleFilter updates a session's filter state and returns the re-filtered
// view. A bucket selector change becomes the drill-down cache's new active
// context.
func (h *Handler) handleFilter(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req filterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	state := sess.ApplyFilter(aging.FilterState{
		Query:      req.Query,
		Bucket:     req.Bucket,
		ZeroPolicy: aging.ZeroPolicy(req.ZeroPolicy),
	})

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.GetView(ctx, state)
	if err != nil {
		h.respondServiceError(w, "filter view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewResponse{
		Rows:           view.Rows,
		Totals:         view.VisibleTotals,
		BaselineTotals: view.BaselineTotals,
	})
}

type expandRequest struct {
	CustomerCode string `json:"customer_code" validate:"required_without=CustomerName"`
	CustomerName string `json:"customer_name" validate:"required_without=CustomerCode"`
}

// handleExpand drives the drill-down state machine for one row.
func (h *Handler) handleExpand(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req expandRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: customer identity required", httpx.ErrValidation))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := sess.Drill().Expand(ctx, req.CustomerCode, req.CustomerName)
	if err != nil {
		// The row carries the error state; the response stays renderable so
		// the client can show a retry placeholder.
		h.logError("drill-down expand", err)
		httpx.JSON(w, http.StatusBadGateway, result)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type prefRequest struct {
	ZeroPolicy string `json:"zero_policy" validate:"oneof=hide_zero show_zero"`
}

// handleZeroPolicy persists the zero-visibility toggle and applies it to the
// session.
func (h *Handler) handleZeroPolicy(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req prefRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: zero_policy must be hide_zero or show_zero", httpx.ErrValidation))
		return
	}
	policy := aging.ZeroPolicy(req.ZeroPolicy)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.prefs.SetZeroPolicy(ctx, sess.UserID, policy); err != nil {
		h.logError("persist zero policy", err)
		httpx.RespondError(w, err)
		return
	}
	state := sess.Filter()
	state.ZeroPolicy = policy
	sess.ApplyFilter(state)
	httpx.JSON(w, http.StatusOK, map[string]string{"zero_policy": string(policy)})
}

// handleRefresh discards the cached snapshot and reloads from the ledger.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snapshot, err := h.service.Refresh(ctx)
	if err != nil {
		h.respondServiceError(w, "refresh snapshot", err)
		return
	}
	if h.metrics != nil {
		h.metrics.SnapshotReload()
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}

type chartsResponse struct {
	Buckets charts.Series `json:"buckets"`
	Top     charts.Series `json:"top"`
}

// handleCharts builds the chart payloads. The two loads run concurrently; a
// failed or empty top ranking degrades to an empty series rather than failing
// the buckets chart.
func (h *Handler) handleCharts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var snapshot dashboard.Snapshot
	var top []aging.CustomerRow

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot, err = h.service.GetSnapshot(gctx)
		return err
	})
	g.Go(func() error {
		rows, err := h.service.TopCustomers(gctx, topCustomerCount)
		if err != nil {
			h.logError("top customers", err)
			return nil
		}
		top = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		h.respondServiceError(w, "load charts", err)
		return
	}

	httpx.JSON(w, http.StatusOK, chartsResponse{
		Buckets: charts.BucketSeries(snapshot.Totals),
		Top:     charts.TopCustomerSeries(top),
	})
}

type bucketResponse struct {
	Bucket aging.BucketKey           `json:"bucket"`
	Rows   []dashboard.BucketInvoice `json:"rows"`
	Total  float64                   `json:"total"`
}

// handleBucket lists every invoice contributing to one bucket, with an
// optional free-text search over the listing. The reported total always sums
// exactly the rows returned.
func (h *Handler) handleBucket(w http.ResponseWriter, r *http.Request) {
	bucket, ok := aging.ParseBucketKey(chi.URLParam(r, "bucket"))
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: unknown bucket", httpx.ErrValidation))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rows, err := h.service.BucketInvoices(ctx, bucket)
	if err != nil {
		h.respondServiceError(w, "bucket listing", err)
		return
	}
	rows = searchBucketRows(rows, r.URL.Query().Get("q"))

	var total float64
	for _, row := range rows {
		total += row.Amount
	}
	httpx.JSON(w, http.StatusOK, bucketResponse{Bucket: bucket, Rows: rows, Total: total})
}

// handleExportCSV streams the aging summary, honouring the same query-string
// filters as the aging view.
func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := h.service.GetView(ctx, filterFromQuery(r))
	if err != nil {
		h.respondServiceError(w, "export aging csv", err)
		return
	}

	filename := fmt.Sprintf("receivables-aging-%s.csv", h.now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteAgingCSV(w, view); err != nil {
		h.logError("stream aging csv", err)
	}
}

// handleBucketExportCSV streams one bucket's invoice listing.
func (h *Handler) handleBucketExportCSV(w http.ResponseWriter, r *http.Request) {
	bucket, ok := aging.ParseBucketKey(chi.URLParam(r, "bucket"))
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: unknown bucket", httpx.ErrValidation))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rows, err := h.service.BucketInvoices(ctx, bucket)
	if err != nil {
		h.respondServiceError(w, "export bucket csv", err)
		return
	}

	filename := fmt.Sprintf("receivables-%s-%s.csv", bucket, h.now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteBucketCSV(w, bucket, rows); err != nil {
		h.logError("stream bucket csv", err)
	}
}

// handleUnmount drops a session.
func (h *Handler) handleUnmount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: bad session id", httpx.ErrValidation))
		return
	}
	h.sessions.Unmount(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*dashboard.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: bad session id", httpx.ErrValidation))
		return nil, false
	}
	sess, ok := h.sessions.Lookup(id)
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: session expired", httpx.ErrNotFound))
		return nil, false
	}
	return sess, true
}

func (h *Handler) userID(r *http.Request) string {
	if user := strings.TrimSpace(r.Header.Get(userHeader)); user != "" {
		return user
	}
	return "anonymous"
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	h.logError(op, err)
	var terr *ledger.TransportError
	if errors.As(err, &terr) {
		httpx.Problem(w, http.StatusBadGateway, "Ledger Unavailable", terr.Error())
		return
	}
	httpx.RespondError(w, err)
}

func (h *Handler) logError(op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
}

func filterFromQuery(r *http.Request) aging.FilterState {
	q := r.URL.Query()
	return aging.FilterState{
		Query:      q.Get("q"),
		Bucket:     q.Get("bucket"),
		ZeroPolicy: aging.ZeroPolicy(q.Get("zero")),
	}
}

func searchBucketRows(rows []dashboard.BucketInvoice, query string) []dashboard.BucketInvoice {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return rows
	}
	out := make([]dashboard.BucketInvoice, 0, len(rows))
	for _, row := range rows {
		hay := strings.ToLower(strings.Join([]string{
			row.CustomerCode, row.CustomerName, row.InvoiceID, row.Description, row.OrderNumber, row.CustomerPO,
		}, " "))
		if strings.Contains(hay, query) {
			out = append(out, row)
		}
	}
	return out
}
