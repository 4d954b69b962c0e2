package handler

import (
	"bytes"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/convertly/internal/billing"
	"github.com/DukeRupert/convertly/internal/csrf"
	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/DukeRupert/convertly/internal/middleware"
	"github.com/DukeRupert/convertly/internal/repository/testutil"
	"github.com/DukeRupert/convertly/internal/service"
	"github.com/DukeRupert/convertly/internal/session"
	"github.com/DukeRupert/convertly/internal/storage"
	"github.com/stretchr/testify/require"
)

const testSessionSecret = "test-session-secret-that-is-long-enough"

// testApp is the full HTTP surface over an in-memory database, temp-dir
// storage and the mock gateway.
type testApp struct {
	t         *testing.T
	server    *httptest.Server
	client    *http.Client
	db        *sql.DB
	gateway   *billing.MockGateway
	outputDir string
	now       *time.Time
	ip        string
}

type testAppOptions struct {
	maxUpload    int64
	confirmLimit int
	// directClients stops trusting the loopback test client as a proxy,
	// so X-Forwarded-For is ignored.
	directClients bool
}

func newTestApp(t *testing.T, opts testAppOptions) *testApp {
	t.Helper()
	if opts.maxUpload == 0 {
		opts.maxUpload = domain.MaxUploadSize
	}
	if opts.confirmLimit == 0 {
		opts.confirmLimit = middleware.PaymentConfirmAttempts
	}

	queries, db := testutil.NewTestQueries(t)

	uploadDir, outputDir := t.TempDir(), t.TempDir()
	uploads, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: uploadDir}, discardLogger)
	require.NoError(t, err)
	outputs, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: outputDir}, discardLogger)
	require.NoError(t, err)

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	calendar := service.NewCalendar(time.UTC, func() time.Time { return now })
	gateway := billing.NewMockGateway("mock-secret")

	entitlements := service.NewEntitlementService(queries, calendar, discardLogger)
	quota := service.NewQuotaService(queries, domain.DefaultDailyLimit, calendar, discardLogger)
	conversions := service.NewConversionService(queries, uploads, outputs,
		service.NewImageConverter(domain.JPEGQuality),
		service.ConversionConfig{MaxUploadSize: opts.maxUpload, MaxConcurrent: 2}, discardLogger)
	payments := service.NewPaymentService(queries, gateway,
		service.PaymentConfig{Amount: 9900, Currency: "INR", Days: domain.DefaultEntitlementDays},
		calendar, discardLogger)

	sessions, err := session.NewManager(testSessionSecret, session.DefaultLifetime, false)
	require.NoError(t, err)

	renderer, err := NewRendererFromFS(TemplatesFS(), discardLogger)
	require.NoError(t, err)

	site := NewSiteInfo(SiteConfig{
		FreeDailyLimit:     domain.DefaultDailyLimit,
		PremiumAmount:      9900,
		PremiumCurrency:    "INR",
		PremiumDays:        domain.DefaultEntitlementDays,
		FileRetention:      24 * time.Hour,
		UsageRetentionDays: 7,
		MaxUploadSize:      opts.maxUpload,
	})

	limiter := middleware.NewRateLimiter(opts.confirmLimit, time.Minute, discardLogger)
	t.Cleanup(limiter.Close)

	mux := http.NewServeMux()
	NewConvertHandler(conversions, quota, entitlements, renderer, site, false, discardLogger).RegisterRoutes(mux)
	NewPremiumHandler(PremiumHandlerConfig{
		Payments:     payments,
		Entitlements: entitlements,
		Gateway:      gateway,
		Sessions:     sessions,
		Limit:        limiter.Limit,
		Renderer:     renderer,
		Site:         site,
		BaseURL:      "http://localhost",
		Logger:       discardLogger,
	}).RegisterRoutes(mux)
	NewPageHandler(renderer, site, db, discardLogger).RegisterRoutes(mux)

	trusted := []netip.Prefix{netip.MustParsePrefix("127.0.0.0/8"), netip.MustParsePrefix("::1/128")}
	if opts.directClients {
		trusted = nil
	}
	clientIP := middleware.NewClientIPMiddleware(trusted)

	server := httptest.NewServer(clientIP.Handler(sessions.Middleware(mux)))
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	app := &testApp{
		t:      t,
		server: server,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		db:        db,
		gateway:   gateway,
		outputDir: outputDir,
		now:       &now,
		ip:        "1.2.3.4",
	}
	return app
}

func (a *testApp) do(req *http.Request) (*http.Response, string) {
	a.t.Helper()
	req.Header.Set("X-Forwarded-For", a.ip)
	resp, err := a.client.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp, string(body)
}

func (a *testApp) get(path string) (*http.Response, string) {
	a.t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.server.URL+path, nil)
	require.NoError(a.t, err)
	return a.do(req)
}

// csrfToken loads the upload form once so the jar holds a CSRF cookie.
func (a *testApp) csrfToken() string {
	a.t.Helper()
	u, _ := url.Parse(a.server.URL)
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == csrf.CookieName {
			return c.Value
		}
	}
	resp, _ := a.get("/")
	require.Equal(a.t, http.StatusOK, resp.StatusCode)
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == csrf.CookieName {
			return c.Value
		}
	}
	a.t.Fatal("no CSRF cookie issued")
	return ""
}

type uploadForm struct {
	filename  string // empty with withFile sends a part with no filename
	data      []byte
	kind      string
	withFile  bool
	csrfToken string
}

func (a *testApp) convert(f uploadForm) (*http.Response, string) {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(a.t, mw.WriteField(csrf.FormFieldName, f.csrfToken))
	require.NoError(a.t, mw.WriteField(FieldKind, f.kind))
	if f.withFile {
		part, err := mw.CreateFormFile(FieldImage, f.filename)
		require.NoError(a.t, err)
		_, err = part.Write(f.data)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/", &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(req)
}

// convertPNG posts a valid PNG with a valid CSRF token.
func (a *testApp) convertPNG(kind string) (*http.Response, string) {
	a.t.Helper()
	return a.convert(uploadForm{
		filename:  "my photo.png",
		data:      testPNG(a.t, 8, 6),
		kind:      kind,
		withFile:  true,
		csrfToken: a.csrfToken(),
	})
}

func (a *testApp) postForm(path string, values url.Values) (*http.Response, string) {
	a.t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, strings.NewReader(values.Encode()))
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req)
}

func (a *testApp) count(table string) int {
	a.t.Helper()
	var n int
	require.NoError(a.t, a.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

var hiddenField = regexp.MustCompile(`name="(order_id|payment_id|signature)" value="([^"]*)"`)

// checkoutFields scrapes the hidden confirmation fields from the premium page.
func checkoutFields(t *testing.T, body string) map[string]string {
	t.Helper()
	fields := map[string]string{}
	for _, m := range hiddenField.FindAllStringSubmatch(body, -1) {
		fields[m[1]] = m[2]
	}
	require.NotEmpty(t, fields["order_id"], "premium page should carry an order id")
	return fields
}

// testPNG returns a w x h PNG whose left half is opaque red and right half
// fully transparent.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{B: 255})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
