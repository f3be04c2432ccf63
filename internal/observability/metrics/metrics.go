// Package metrics collects HTTP and migration counters and renders them in
// the Prometheus text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type requestKey struct {
	handler string
	method  string
	code    string
}

type routeKey struct {
	handler string
	method  string
}

type migrationKey struct {
	dialect string
	status  string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type collector struct {
	mu         sync.Mutex
	requests   map[requestKey]uint64
	errors     map[routeKey]uint64
	latency    map[routeKey]*histogram
	migrations map[migrationKey]uint64
	statements map[string]uint64
}

func newCollector() *collector {
	return &collector{
		requests:   make(map[requestKey]uint64),
		errors:     make(map[routeKey]uint64),
		latency:    make(map[routeKey]*histogram),
		migrations: make(map[migrationKey]uint64),
		statements: make(map[string]uint64),
	}
}

var defaultCollector = newCollector()

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	defaultCollector.observeRequest(handler, method, status, duration)
}

// ObserveMigration records one migration run and the statements it applied.
func ObserveMigration(dialect, status string, applied int) {
	defaultCollector.observeMigration(dialect, status, applied)
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, defaultCollector.render())
	})
}

func (c *collector) observeRequest(handler, method string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests[requestKey{handler: handler, method: method, code: strconv.Itoa(status)}]++
	key := routeKey{handler: handler, method: method}
	if status >= 500 {
		c.errors[key]++
	}
	hist := c.latency[key]
	if hist == nil {
		hist = newHistogram()
		c.latency[key] = hist
	}
	hist.observe(duration.Seconds())
}

func (c *collector) observeMigration(dialect, status string, applied int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.migrations[migrationKey{dialect: dialect, status: status}]++
	if applied > 0 {
		c.statements[dialect] += uint64(applied)
	}
}

func newHistogram() *histogram {
	buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// observe 只累加不超过上界的桶，+Inf 桶由 count 表示。
func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			return
		}
	}
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.Grow(1024)

	reqKeys := make([]requestKey, 0, len(c.requests))
	for key := range c.requests {
		reqKeys = append(reqKeys, key)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].handler != reqKeys[j].handler {
			return reqKeys[i].handler < reqKeys[j].handler
		}
		if reqKeys[i].method != reqKeys[j].method {
			return reqKeys[i].method < reqKeys[j].method
		}
		return reqKeys[i].code < reqKeys[j].code
	})
	b.WriteString("# HELP snowz_http_requests_total Total number of HTTP requests processed.\n")
	b.WriteString("# TYPE snowz_http_requests_total counter\n")
	for _, key := range reqKeys {
		fmt.Fprintf(&b, "snowz_http_requests_total{handler=\"%s\",method=\"%s\",code=\"%s\"} %d\n",
			escape(key.handler), escape(key.method), escape(key.code), c.requests[key])
	}

	b.WriteString("# HELP snowz_http_request_errors_total Total number of HTTP requests that resulted in a server error.\n")
	b.WriteString("# TYPE snowz_http_request_errors_total counter\n")
	for _, key := range sortedRoutes(c.errors) {
		fmt.Fprintf(&b, "snowz_http_request_errors_total{handler=\"%s\",method=\"%s\"} %d\n",
			escape(key.handler), escape(key.method), c.errors[key])
	}

	b.WriteString("# HELP snowz_http_request_duration_seconds HTTP request duration in seconds.\n")
	b.WriteString("# TYPE snowz_http_request_duration_seconds histogram\n")
	for _, key := range sortedRoutes(c.latency) {
		hist := c.latency[key]
		labels := fmt.Sprintf("handler=\"%s\",method=\"%s\"", escape(key.handler), escape(key.method))
		for idx, bound := range hist.buckets {
			fmt.Fprintf(&b, "snowz_http_request_duration_seconds_bucket{%s,le=\"%s\"} %d\n", labels, formatFloat(bound), hist.counts[idx])
		}
		fmt.Fprintf(&b, "snowz_http_request_duration_seconds_bucket{%s,le=\"+Inf\"} %d\n", labels, hist.count)
		fmt.Fprintf(&b, "snowz_http_request_duration_seconds_sum{%s} %s\n", labels, formatFloat(hist.sum))
		fmt.Fprintf(&b, "snowz_http_request_duration_seconds_count{%s} %d\n", labels, hist.count)
	}

	migKeys := make([]migrationKey, 0, len(c.migrations))
	for key := range c.migrations {
		migKeys = append(migKeys, key)
	}
	sort.Slice(migKeys, func(i, j int) bool {
		if migKeys[i].dialect != migKeys[j].dialect {
			return migKeys[i].dialect < migKeys[j].dialect
		}
		return migKeys[i].status < migKeys[j].status
	})
	b.WriteString("# HELP snowz_migrations_total Total number of migration runs.\n")
	b.WriteString("# TYPE snowz_migrations_total counter\n")
	for _, key := range migKeys {
		fmt.Fprintf(&b, "snowz_migrations_total{dialect=\"%s\",status=\"%s\"} %d\n",
			escape(key.dialect), escape(key.status), c.migrations[key])
	}

	dialects := make([]string, 0, len(c.statements))
	for dialect := range c.statements {
		dialects = append(dialects, dialect)
	}
	sort.Strings(dialects)
	b.WriteString("# HELP snowz_migration_statements_total Total number of DDL statements applied.\n")
	b.WriteString("# TYPE snowz_migration_statements_total counter\n")
	for _, dialect := range dialects {
		fmt.Fprintf(&b, "snowz_migration_statements_total{dialect=\"%s\"} %d\n", escape(dialect), c.statements[dialect])
	}

	return b.String()
}

func sortedRoutes[V any](m map[routeKey]V) []routeKey {
	keys := make([]routeKey, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].handler != keys[j].handler {
			return keys[i].handler < keys[j].handler
		}
		return keys[i].method < keys[j].method
	})
	return keys
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
