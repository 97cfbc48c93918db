package dashhttp

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes attaches the dashboard endpoints under /recv. Drill-down
// expansion is rate limited per client: each expand may fan out to the ledger,
// and a user double-clicking rows should not translate into a request storm.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/recv", func(r chi.Router) {
		r.Post("/session", h.handleMount)
		r.Route("/session/{id}", func(r chi.Router) {
			r.Delete("/", h.handleUnmount)
			r.Post("/filter", h.handleFilter)
			r.Post("/prefs", h.handleZeroPolicy)
			r.With(httprate.LimitByIP(30, time.Minute)).Post("/expand", h.handleExpand)
		})
		r.Get("/aging", h.handleAging)
		r.Post("/refresh", h.handleRefresh)
		r.Get("/charts", h.handleCharts)
		r.Get("/bucket/{bucket}", h.handleBucket)
		r.Get("/bucket/{bucket}/export.csv", h.handleBucketExportCSV)
		r.Get("/export.csv", h.handleExportCSV)
	})
}
