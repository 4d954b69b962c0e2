// Package handler contains HTTP handlers for the Convertly application.
//
// This file implements the upload form and the conversion endpoint.
//
// Routes handled:
//   - GET  / -> ShowIndex
//   - POST / -> Convert
package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/DukeRupert/convertly/internal/csrf"
	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/DukeRupert/convertly/internal/middleware"
	"github.com/DukeRupert/convertly/internal/service"
	"github.com/DukeRupert/convertly/internal/session"
)

// Form field names posted by the upload form.
const (
	FieldImage = "image"
	FieldKind  = "type"
)

const (
	// multipartOverhead is allowed on top of the upload limit for the other
	// form fields and part headers.
	multipartOverhead = 1 << 20

	// multipartMemory is how much of the form is kept in memory before
	// spilling file parts to disk.
	multipartMemory = 8 << 20
)

// ConvertHandler handles the upload form and conversion requests.
type ConvertHandler struct {
	conversions  service.ConversionService
	quota        service.QuotaService
	entitlements service.EntitlementService
	renderer     *Renderer
	site         SiteInfo
	isSecure     bool
	logger       *slog.Logger
}

// NewConvertHandler creates a new ConvertHandler.
func NewConvertHandler(
	conversions service.ConversionService,
	quota service.QuotaService,
	entitlements service.EntitlementService,
	renderer *Renderer,
	site SiteInfo,
	isSecure bool,
	logger *slog.Logger,
) *ConvertHandler {
	return &ConvertHandler{
		conversions:  conversions,
		quota:        quota,
		entitlements: entitlements,
		renderer:     renderer,
		site:         site,
		isSecure:     isSecure,
		logger:       logger,
	}
}

// RegisterRoutes registers conversion routes on the provided mux.
func (h *ConvertHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.ShowIndex)
	mux.HandleFunc("POST /{$}", h.Convert)
}

// IndexPageData is the template data for the upload form.
type IndexPageData struct {
	pageData
	Kinds       []domain.ConversionKind
	Usage       *domain.QuotaUsage
	Entitlement *domain.Entitlement
}

// ShowIndex renders the upload form with the visitor's remaining free
// conversions, or their premium expiry.
func (h *ConvertHandler) ShowIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, err := csrf.EnsureToken(w, r, h.isSecure)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	data := IndexPageData{
		pageData: pageData{SiteInfo: h.site, CurrentPath: "/", CSRFToken: token},
		Kinds:    domain.AllConversionKinds(),
	}

	ent, err := h.entitlements.Active(ctx, session.PaymentID(ctx))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	data.Entitlement = ent

	if ent == nil {
		usage, err := h.quota.Usage(ctx, middleware.ClientIP(r))
		if err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		data.Usage = usage
	}

	h.renderer.RenderHTTP(w, "index", data)
}

// Convert validates the upload, applies the quota gate and returns the
// converted file as an attachment. A visitor over the free limit is sent to
// the premium page.
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	const op = "handler.convert"
	ctx := r.Context()

	maxUpload := h.site.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			ErrorResponse(w, r, h.logger, domain.TooLarge(op, maxUpload))
			return
		case errors.Is(err, http.ErrNotMultipart):
			// A urlencoded post still carries the CSRF token; it just has no
			// file part, which validation reports below.
		default:
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "The upload could not be read"))
			return
		}
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	if !csrf.ValidateRequest(r) {
		ErrorResponse(w, r, h.logger, domain.Forbidden(op, "Your session expired. Reload the page and try again."))
		return
	}

	upload, closeUpload := uploadFromRequest(r)
	defer closeUpload()

	kind, err := h.conversions.Validate(upload, r.FormValue(FieldKind))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	ip := middleware.ClientIP(r)
	premium, err := h.entitlements.IsPremium(ctx, session.PaymentID(ctx))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	decision, err := h.quota.Admit(ctx, ip, premium)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !decision.Admitted {
		http.Redirect(w, r, "/premium", http.StatusSeeOther)
		return
	}

	result, err := h.conversions.Convert(ctx, ip, upload, kind)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeAttachment(w, result)
}

// uploadFromRequest reads the image part. A part sent with an empty filename
// (a form submitted with nothing selected) is reported as present but unnamed.
func uploadFromRequest(r *http.Request) (domain.Upload, func()) {
	noop := func() {}
	if r.MultipartForm == nil {
		return domain.Upload{}, noop
	}

	if headers := r.MultipartForm.File[FieldImage]; len(headers) > 0 {
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return domain.Upload{}, noop
		}
		return domain.Upload{
			Present:  true,
			Filename: fh.Filename,
			Size:     fh.Size,
			Data:     f,
		}, func() { _ = f.Close() }
	}

	// multipart stores parts without a filename as plain values.
	if values, ok := r.MultipartForm.Value[FieldImage]; ok {
		return domain.Upload{
			Present: true,
			Data:    strings.NewReader(strings.Join(values, "")),
		}, noop
	}

	return domain.Upload{}, noop
}

func writeAttachment(w http.ResponseWriter, result *domain.ConversionResult) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename})
	if disposition == "" {
		disposition = "attachment"
	}

	h := w.Header()
	h.Set("Content-Type", result.ContentType)
	h.Set("Content-Disposition", disposition)
	h.Set("Content-Length", strconv.Itoa(len(result.Data)))
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}
