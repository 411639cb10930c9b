// Package telemetry records decode and HTTP metrics in memory and serves
// them in Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// defaultDurationBuckets are the histogram bucket boundaries (in seconds)
// for request and batch durations.
var defaultDurationBuckets = []float64{
	0.001, 0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5,
}

// ---------------------------------------------------------------------------
// Histogram
// ---------------------------------------------------------------------------

// histogram stores non-cumulative bucket counts; cumulative counts are
// computed at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

// Observe records a single value.
func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

// Count returns the total number of observations.
func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

// Sum returns the total of all observations.
func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	raw := make([]int64, len(h.bucketCounts))
	copy(raw, h.bucketCounts)
	h.mu.Unlock()

	var running int64
	for i, c := range raw {
		running += c
		raw[i] = running
	}
	return raw
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(next)) {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Counter store, keyed by label values joined with "|"
// ---------------------------------------------------------------------------

type counterStore struct {
	mu    sync.RWMutex
	items map[string]*int64
}

func newCounterStore() *counterStore {
	return &counterStore{items: make(map[string]*int64)}
}

func (s *counterStore) add(key string, n int64) {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		atomic.AddInt64(p, n)
		return
	}

	s.mu.Lock()
	p, ok = s.items[key]
	if !ok {
		p = new(int64)
		s.items[key] = p
	}
	s.mu.Unlock()
	atomic.AddInt64(p, n)
}

func (s *counterStore) get(key string) int64 {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

// sortedSnapshot returns the keys in order so exposition output is stable.
func (s *counterStore) sortedSnapshot() ([]string, map[string]int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	cp := make(map[string]int64, len(s.items))
	for k, p := range s.items {
		keys = append(keys, k)
		cp[k] = atomic.LoadInt64(p)
	}
	sort.Strings(keys)
	return keys, cp
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// Metrics holds every metric the service exports.
type Metrics struct {
	messages *counterStore // status|reason
	requests *counterStore // method|route|status_code
	active   int64

	batches        int64
	batchDuration  *histogram
	requestSeconds *histogram
}

// NewMetrics creates an empty metrics registry.
func NewMetrics() *Metrics {
	return &Metrics{
		messages:       newCounterStore(),
		requests:       newCounterStore(),
		batchDuration:  newHistogram(defaultDurationBuckets),
		requestSeconds: newHistogram(defaultDurationBuckets),
	}
}

// ObserveMessage counts one decoded message. reason is empty for accepted
// messages.
func (m *Metrics) ObserveMessage(status, reason string) {
	m.messages.add(status+"|"+reason, 1)
}

// ObserveBatch records the wall time of one decoded batch.
func (m *Metrics) ObserveBatch(d time.Duration) {
	atomic.AddInt64(&m.batches, 1)
	m.batchDuration.Observe(d.Seconds())
}

// MessageCount returns the number of messages observed with status and
// reason.
func (m *Metrics) MessageCount(status, reason string) int64 {
	return m.messages.get(status + "|" + reason)
}

// BatchCount returns the number of batches observed.
func (m *Metrics) BatchCount() int64 {
	return atomic.LoadInt64(&m.batches)
}

// ActiveRequests returns the number of HTTP requests in flight.
func (m *Metrics) ActiveRequests() int64 {
	return atomic.LoadInt64(&m.active)
}

// RequestCount returns the number of HTTP requests served for the labels.
func (m *Metrics) RequestCount(method, route string, status int) int64 {
	return m.requests.get(method + "|" + route + "|" + strconv.Itoa(status))
}

// Middleware returns an Echo middleware that records HTTP server metrics.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&m.active, 1)
			start := time.Now()

			err := next(c)

			atomic.AddInt64(&m.active, -1)
			m.requestSeconds.Observe(time.Since(start).Seconds())

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := c.Response().Status
			m.requests.add(c.Request().Method+"|"+route+"|"+strconv.Itoa(status), 1)

			return err
		}
	}
}

// Handler serves every metric in Prometheus text exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		writeCounter(&b, "appointment_messages_total",
			"Decoded HL7 messages by outcome.", m.messages, []string{"status", "reason"})

		b.WriteString("# HELP appointment_batches_total Decoded batches.\n")
		b.WriteString("# TYPE appointment_batches_total counter\n")
		fmt.Fprintf(&b, "appointment_batches_total %d\n\n", m.BatchCount())

		writeHistogram(&b, "appointment_batch_duration_seconds",
			"Wall time to decode one batch in seconds.", m.batchDuration)

		writeCounter(&b, "http_server_requests_total",
			"HTTP requests by method, route and status.", m.requests,
			[]string{"method", "route", "status_code"})

		b.WriteString("# HELP http_server_active_requests Number of active HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", m.ActiveRequests())

		writeHistogram(&b, "http_server_request_duration_seconds",
			"Duration of HTTP requests in seconds.", m.requestSeconds)

		return c.String(http.StatusOK, b.String())
	}
}

// ---------------------------------------------------------------------------
// Prometheus format helpers
// ---------------------------------------------------------------------------

func writeCounter(b *strings.Builder, name, help string, s *counterStore, labels []string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)

	keys, snap := s.sortedSnapshot()
	for _, key := range keys {
		parts := strings.SplitN(key, "|", len(labels))
		if len(parts) != len(labels) {
			continue
		}
		pairs := make([]string, len(labels))
		for i, l := range labels {
			pairs[i] = fmt.Sprintf("%s=%q", l, parts[i])
		}
		fmt.Fprintf(b, "%s{%s} %d\n", name, strings.Join(pairs, ","), snap[key])
	}
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, h *histogram) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s histogram\n", name)

	cum := h.cumulativeBuckets()
	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{le=\"%g\"} %d\n", name, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"} %d\n", name, h.Count())
	fmt.Fprintf(b, "%s_sum %g\n", name, h.Sum())
	fmt.Fprintf(b, "%s_count %d\n", name, h.Count())
	b.WriteByte('\n')
}
