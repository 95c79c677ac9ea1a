package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/portal/portal/internal/config"
	"github.com/portal/portal/internal/domain/clinicalattribute"
	"github.com/portal/portal/internal/platform/auth"
	"github.com/portal/portal/internal/platform/db"
	"github.com/portal/portal/internal/platform/telemetry"
	"github.com/portal/portal/pkg/pagination"
)

// -- Stubs --

type stubService struct {
	attrs []*clinicalattribute.ClinicalAttribute
	total int
}

func (s *stubService) GetAllClinicalAttributes(context.Context, clinicalattribute.Projection, pagination.Params, clinicalattribute.Sort) ([]*clinicalattribute.ClinicalAttribute, error) {
	return s.attrs, nil
}

func (s *stubService) GetMetaClinicalAttributes(context.Context) (*clinicalattribute.BaseMeta, error) {
	return &clinicalattribute.BaseMeta{TotalCount: s.total}, nil
}

func (s *stubService) GetAllClinicalAttributesInStudy(context.Context, string, clinicalattribute.Projection, pagination.Params, clinicalattribute.Sort) ([]*clinicalattribute.ClinicalAttribute, error) {
	return s.attrs, nil
}

func (s *stubService) GetMetaClinicalAttributesInStudy(context.Context, string) (*clinicalattribute.BaseMeta, error) {
	return &clinicalattribute.BaseMeta{TotalCount: s.total}, nil
}

func (s *stubService) GetClinicalAttribute(_ context.Context, studyID, attrID string) (*clinicalattribute.ClinicalAttribute, error) {
	return nil, &clinicalattribute.ClinicalAttributeNotFoundError{StudyID: studyID, ClinicalAttributeID: attrID}
}

func (s *stubService) FetchClinicalAttributes(context.Context, []string, clinicalattribute.Projection) ([]*clinicalattribute.ClinicalAttribute, error) {
	return s.attrs, nil
}

func (s *stubService) FetchMetaClinicalAttributes(context.Context, []string) (*clinicalattribute.BaseMeta, error) {
	return &clinicalattribute.BaseMeta{TotalCount: s.total}, nil
}

func (s *stubService) GetAllClinicalAttributesInStudiesBySampleListID(context.Context, string, clinicalattribute.Projection, clinicalattribute.Sort) ([]*clinicalattribute.ClinicalAttribute, error) {
	return s.attrs, nil
}

func (s *stubService) GetAllClinicalAttributesInStudiesBySampleIDs(context.Context, []string, []string, clinicalattribute.Projection, clinicalattribute.Sort) ([]*clinicalattribute.ClinicalAttribute, error) {
	return s.attrs, nil
}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }
func (stubPinger) Stat() *pgxpool.Stat        { return nil }

type stubResolver map[string]string

func (r stubResolver) SampleListStudyID(_ context.Context, id string) (string, error) {
	if study, ok := r[id]; ok {
		return study, nil
	}
	return "", &clinicalattribute.SampleListNotFoundError{SampleListID: id}
}

// withIdentity installs a fixed caller identity in place of real auth.
func withIdentity(roles, studies []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), "user-1", roles, studies)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func testServer(t *testing.T, cfg *config.Config, authMW echo.MiddlewareFunc) *echo.Echo {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{Env: "development"}
	}
	svc := &stubService{
		attrs: []*clinicalattribute.ClinicalAttribute{
			{AttrID: "CANCER_TYPE", DisplayName: "Cancer Type", StudyID: "acc_tcga"},
		},
		total: 42,
	}
	return newServer(serverDeps{
		cfg:     cfg,
		logger:  zerolog.Nop(),
		svc:     svc,
		guard:   auth.NewStudyGuard([]string{"public_study"}, stubResolver{"acc_tcga_all": "acc_tcga"}),
		pool:    stubPinger{},
		metrics: telemetry.NewMetrics(telemetry.Config{ServiceName: "portal-test"}),
		auth:    authMW,
	})
}

func serve(e *echo.Echo, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// -- CLI --

func TestRootCmd_Commands(t *testing.T) {
	root := rootCmd()
	want := map[string][]string{
		"serve":   nil,
		"migrate": {"status", "up"},
		"openapi": nil,
	}
	for name, subs := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not found: %v", name, err)
		}
		for _, sub := range subs {
			found := false
			for _, c := range cmd.Commands() {
				if c.Name() == sub {
					found = true
					if c.Flags().Lookup("dir") == nil {
						t.Errorf("%s %s: missing --dir flag", name, sub)
					}
				}
			}
			if !found {
				t.Errorf("%s: missing subcommand %q", name, sub)
			}
		}
	}
}

func TestOpenapiCmd_PrintsDocument(t *testing.T) {
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"openapi"})
	if err := root.Execute(); err != nil {
		t.Fatalf("openapi command: %v", err)
	}

	var doc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	for _, p := range []string{
		"/api/clinical-attributes",
		"/api/studies/{studyId}/clinical-attributes",
		"/api/studies/{studyId}/clinical-attributes/{clinicalAttributeId}",
		"/api/clinical-attributes/fetch",
		"/api/clinical-attributes/counts/fetch",
	} {
		if _, ok := doc.Paths[p]; !ok {
			t.Errorf("document is missing path %s", p)
		}
	}
}

func TestMigrationFS_DefaultsToEmbedded(t *testing.T) {
	names, err := fs.Glob(migrationFS(""), "*.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) == 0 || names[0] != "001_portal_schema.sql" {
		t.Errorf("embedded migrations = %v", names)
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	var out bytes.Buffer
	printMigrationStatus(&out, []db.MigrationStatus{
		{Version: 1, Name: "portal_schema", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "sample_lists"},
	})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and 2 rows, got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[2], "applied") || !strings.Contains(lines[2], "2024-03-01 12:30:00") {
		t.Errorf("applied row = %q", lines[2])
	}
	if !strings.Contains(lines[3], "pending") {
		t.Errorf("pending row = %q", lines[3])
	}
}

// -- Server --

func TestServer_InfrastructureRoutes(t *testing.T) {
	e := testServer(t, nil, auth.DevAuthMiddleware())

	for _, path := range []string{"/health", "/health/db", "/openapi.json"} {
		rec := serve(e, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: status %d", path, rec.Code)
		}
	}

	serve(e, http.MethodGet, "/api/clinical-attributes", "", nil)
	rec := serve(e, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `portal_http_requests_total{code="200",method="GET",route="/api/clinical-attributes"}`) {
		t.Errorf("request counter missing from /metrics output")
	}
}

func TestServer_RequestIDEchoed(t *testing.T) {
	e := testServer(t, nil, auth.DevAuthMiddleware())
	rec := serve(e, http.MethodGet, "/health", "", http.Header{"X-Request-Id": {"abc-123"}})
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestServer_ClinicalAttributeRoutes(t *testing.T) {
	e := testServer(t, nil, withIdentity(nil, []string{"acc_tcga"}))

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"list all", http.MethodGet, "/api/clinical-attributes", "", http.StatusOK},
		{"list granted study", http.MethodGet, "/api/studies/acc_tcga/clinical-attributes", "", http.StatusOK},
		{"list public study", http.MethodGet, "/api/studies/public_study/clinical-attributes", "", http.StatusOK},
		{"list denied study", http.MethodGet, "/api/studies/brca_tcga/clinical-attributes", "", http.StatusForbidden},
		{"get missing attribute", http.MethodGet, "/api/studies/acc_tcga/clinical-attributes/NOPE", "", http.StatusNotFound},
		{"fetch", http.MethodPost, "/api/clinical-attributes/fetch", `["acc_tcga"]`, http.StatusOK},
		{"fetch empty", http.MethodPost, "/api/clinical-attributes/fetch", `[]`, http.StatusBadRequest},
		{"fetch denied", http.MethodPost, "/api/clinical-attributes/fetch", `["acc_tcga","brca_tcga"]`, http.StatusForbidden},
		{"counts by list", http.MethodPost, "/api/clinical-attributes/counts/fetch", `{"sampleListId":"acc_tcga_all"}`, http.StatusOK},
		{"counts unknown list", http.MethodPost, "/api/clinical-attributes/counts/fetch", `{"sampleListId":"nope"}`, http.StatusNotFound},
		{"bad page size", http.MethodGet, "/api/clinical-attributes?pageSize=0", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, tt.method, tt.target, tt.body, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestServer_MetaProjection(t *testing.T) {
	e := testServer(t, nil, auth.DevAuthMiddleware())
	rec := serve(e, http.MethodGet, "/api/clinical-attributes?projection=META", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get(pagination.TotalCountHeader); got != "42" {
		t.Errorf("total-count = %q, want 42", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("META body = %q, want empty", rec.Body.String())
	}
}

func TestServer_CORSExposesTotalCount(t *testing.T) {
	e := testServer(t, nil, auth.DevAuthMiddleware())
	rec := serve(e, http.MethodGet, "/api/clinical-attributes?projection=META", "",
		http.Header{"Origin": {"https://portal.example.org"}})
	if got := rec.Header().Get(echo.HeaderAccessControlExposeHeaders); !strings.Contains(got, "total-count") {
		t.Errorf("Access-Control-Expose-Headers = %q", got)
	}
}

func TestAuthMiddleware_SigningKey(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	cfg := &config.Config{Env: "staging", AuthSigningKey: hex.EncodeToString(key)}

	authMW, err := authMiddleware(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("authMiddleware: %v", err)
	}
	e := testServer(t, cfg, authMW)

	if rec := serve(e, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("public /health without token: status %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/api/clinical-attributes", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("API without token: status %d, want 401", rec.Code)
	}

	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Studies: []string{"acc_tcga"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	bearer := http.Header{"Authorization": {"Bearer " + token}}

	if rec := serve(e, http.MethodGet, "/api/studies/acc_tcga/clinical-attributes", "", bearer); rec.Code != http.StatusOK {
		t.Errorf("granted study: status %d, want 200", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/api/studies/brca_tcga/clinical-attributes", "", bearer); rec.Code != http.StatusForbidden {
		t.Errorf("ungranted study: status %d, want 403", rec.Code)
	}
}

func TestAuthMiddleware_InvalidSigningKey(t *testing.T) {
	cfg := &config.Config{Env: "staging", AuthSigningKey: "not-hex"}
	if _, err := authMiddleware(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for non-hex signing key")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, nil)
	logger.Info().Str("addr", ":8080").Msg("starting server")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "starting server" || entry["addr"] != ":8080" || entry["time"] == nil {
		t.Errorf("unexpected log entry %v", entry)
	}

	buf.Reset()
	logger = newLogger(&buf, &config.Config{Env: "development"})
	logger.Info().Msg("starting server")
	if json.Valid(buf.Bytes()) || !strings.Contains(buf.String(), "starting server") {
		t.Errorf("expected console output in development, got %q", buf.String())
	}
}
