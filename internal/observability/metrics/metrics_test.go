package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollectorRender(t *testing.T) {
	t.Parallel()

	c := newCollector()
	c.observeRequest("/api/v1/migrations", http.MethodGet, 200, 30*time.Millisecond)
	c.observeRequest("/api/v1/migrations", http.MethodGet, 500, 2*time.Second)
	c.observeRequest("/api/v1/descriptors/resolve", http.MethodPost, 400, 20*time.Second)
	c.observeMigration("mysql", "succeeded", 3)
	c.observeMigration("mysql", "failed", 0)

	out := c.render()
	for _, want := range []string{
		`snowz_http_requests_total{handler="/api/v1/migrations",method="GET",code="200"} 1`,
		`snowz_http_requests_total{handler="/api/v1/migrations",method="GET",code="500"} 1`,
		`snowz_http_request_errors_total{handler="/api/v1/migrations",method="GET"} 1`,
		`snowz_http_request_duration_seconds_bucket{handler="/api/v1/migrations",method="GET",le="0.05"} 1`,
		`snowz_http_request_duration_seconds_bucket{handler="/api/v1/migrations",method="GET",le="2.5"} 2`,
		`snowz_http_request_duration_seconds_bucket{handler="/api/v1/descriptors/resolve",method="POST",le="10"} 0`,
		`snowz_http_request_duration_seconds_bucket{handler="/api/v1/descriptors/resolve",method="POST",le="+Inf"} 1`,
		`snowz_migrations_total{dialect="mysql",status="failed"} 1`,
		`snowz_migrations_total{dialect="mysql",status="succeeded"} 1`,
		`snowz_migration_statements_total{dialect="mysql"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, `handler="/api/v1/descriptors/resolve"`) > strings.Index(out, `handler="/api/v1/migrations"`) {
		t.Fatalf("series should be sorted by handler:\n%s", out)
	}
}

func TestHandlerServesText(t *testing.T) {
	t.Parallel()

	ObserveMigration("sqlite", "succeeded", 1)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if !strings.Contains(rec.Body.String(), `snowz_migrations_total{dialect="sqlite",status="succeeded"}`) {
		t.Fatalf("migration counter missing:\n%s", rec.Body.String())
	}
}

func TestEscape(t *testing.T) {
	t.Parallel()

	if got := escape("a\"b\\c\nd"); got != `a\"b\\cd` {
		t.Fatalf("unexpected escape: %s", got)
	}
}
