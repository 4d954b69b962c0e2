// Package handler contains HTTP handlers for the Convertly application.
//
// This file implements the informational pages and the health check.
//
// Routes handled:
//   - GET /about   -> About
//   - GET /privacy -> Privacy
//   - GET /terms   -> Terms
//   - GET /health  -> Health
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// healthTimeout bounds the database ping behind GET /health.
const healthTimeout = 2 * time.Second

// =============================================================================
// Shared Page Data
// =============================================================================

// SiteInfo holds the product facts shown across pages.
type SiteInfo struct {
	FreeDailyLimit     int
	Price              string
	PremiumDays        int
	FileRetention      string
	UsageRetentionDays int
	MaxUploadSize      int64
}

// SiteConfig is the raw configuration SiteInfo is built from.
type SiteConfig struct {
	FreeDailyLimit     int
	PremiumAmount      int64
	PremiumCurrency    string
	PremiumDays        int
	FileRetention      time.Duration
	UsageRetentionDays int
	MaxUploadSize      int64
}

// NewSiteInfo formats cfg for display.
func NewSiteInfo(cfg SiteConfig) SiteInfo {
	return SiteInfo{
		FreeDailyLimit:     cfg.FreeDailyLimit,
		Price:              FormatPrice(cfg.PremiumAmount, cfg.PremiumCurrency),
		PremiumDays:        cfg.PremiumDays,
		FileRetention:      formatRetention(cfg.FileRetention),
		UsageRetentionDays: cfg.UsageRetentionDays,
		MaxUploadSize:      cfg.MaxUploadSize,
	}
}

// formatRetention renders a retention period in whole days or hours when it
// divides evenly.
func formatRetention(d time.Duration) string {
	const day = 24 * time.Hour
	switch {
	case d >= day && d%day == 0:
		n := int(d / day)
		if n == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", n)
	case d >= time.Hour && d%time.Hour == 0:
		n := int(d / time.Hour)
		if n == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", n)
	default:
		return d.String()
	}
}

// pageData is embedded in every page's template data.
type pageData struct {
	SiteInfo
	CurrentPath string
	CSRFToken   string
}

// =============================================================================
// Page Handler
// =============================================================================

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PageHandler serves the static informational pages and the health check.
type PageHandler struct {
	renderer *Renderer
	site     SiteInfo
	db       Pinger
	logger   *slog.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(renderer *Renderer, site SiteInfo, db Pinger, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		renderer: renderer,
		site:     site,
		db:       db,
		logger:   logger,
	}
}

// RegisterRoutes registers page routes on the provided mux.
func (h *PageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /about", h.About)
	mux.HandleFunc("GET /privacy", h.Privacy)
	mux.HandleFunc("GET /terms", h.Terms)
	mux.HandleFunc("GET /health", h.Health)
}

// About renders the about page.
func (h *PageHandler) About(w http.ResponseWriter, r *http.Request) {
	h.renderStatic(w, r, "about")
}

// Privacy renders the privacy policy.
func (h *PageHandler) Privacy(w http.ResponseWriter, r *http.Request) {
	h.renderStatic(w, r, "privacy")
}

// Terms renders the terms of use.
func (h *PageHandler) Terms(w http.ResponseWriter, r *http.Request) {
	h.renderStatic(w, r, "terms")
}

func (h *PageHandler) renderStatic(w http.ResponseWriter, r *http.Request, name string) {
	h.renderer.RenderHTTP(w, name, pageData{SiteInfo: h.site, CurrentPath: r.URL.Path})
}

// Health reports whether the database is reachable.
func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
