package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

type counter struct {
	name  string
	help  string
	value atomic.Uint64
}

func newCounter(name, help string) *counter {
	c := &counter{name: name, help: help}
	registry = append(registry, c)
	return c
}

// registry keeps render order stable.
var registry []*counter

var (
	analysisStarted   = newCounter("analysis_started_total", "Total analyses started")
	analysisCompleted = newCounter("analysis_completed_total", "Total analyses completed")
	analysisFailed    = newCounter("analysis_failed_total", "Total analyses failed")
	analysisStale     = newCounter("analysis_stale_total", "Analysis responses dropped as stale")
	translations      = newCounter("translation_requests_total", "Translation requests")
	translationFails  = newCounter("translation_failed_total", "Translation requests failed")
	questions         = newCounter("question_requests_total", "Follow-up questions asked")
	questionFails     = newCounter("question_failed_total", "Follow-up questions failed")
	storageFailures   = newCounter("storage_failures_total", "Checklist storage failures")

	activeSessions atomic.Int64

	analysisDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 90000})
	requestDuration  = newHistogram([]float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000})

	requestsMu sync.Mutex
	requests   = map[requestKey]uint64{}
)

type requestKey struct {
	route  string
	status int
}

func IncAnalysisStarted()   { analysisStarted.value.Add(1) }
func IncAnalysisCompleted() { analysisCompleted.value.Add(1) }
func IncAnalysisFailed()    { analysisFailed.value.Add(1) }

// IncAnalysisStale counts responses dropped because a newer request superseded them.
func IncAnalysisStale() { analysisStale.value.Add(1) }

func IncTranslation()       { translations.value.Add(1) }
func IncTranslationFailed() { translationFails.value.Add(1) }
func IncQuestion()          { questions.value.Add(1) }
func IncQuestionFailed()    { questionFails.value.Add(1) }

// IncStorageFailure counts checklist snapshot reads or writes that failed.
func IncStorageFailure() { storageFailures.value.Add(1) }

// AddActiveSessions adjusts the live session gauge.
func AddActiveSessions(delta int64) {
	activeSessions.Add(delta)
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	analysisDuration.Observe(clampNonNegative(value))
}

// ObserveRequest counts a finished HTTP request by matched route and status.
// Unmatched paths are grouped under "unmatched" to keep label cardinality bounded.
func ObserveRequest(route string, status int, durationMs float64) {
	if strings.TrimSpace(route) == "" {
		route = "unmatched"
	}
	requestsMu.Lock()
	requests[requestKey{route: route, status: status}]++
	requestsMu.Unlock()
	requestDuration.Observe(clampNonNegative(durationMs))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	for _, c := range registry {
		writeCounter(&buf, c.name, c.help, c.value.Load())
	}
	fmt.Fprintf(&buf, "# HELP active_sessions Live workspace sessions\n# TYPE active_sessions gauge\nactive_sessions %d\n", activeSessions.Load())
	writeRequests(&buf)
	writeHistogram(&buf, "analysis_duration_ms", "Analysis duration in milliseconds", analysisDuration.Snapshot())
	writeHistogram(&buf, "http_request_duration_ms", "HTTP request duration in milliseconds", requestDuration.Snapshot())
	return buf.String()
}

func writeRequests(buf *bytes.Buffer) {
	requestsMu.Lock()
	keys := make([]requestKey, 0, len(requests))
	for k := range requests {
		keys = append(keys, k)
	}
	counts := make(map[requestKey]uint64, len(requests))
	for k, v := range requests {
		counts[k] = v
	}
	requestsMu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].route != keys[j].route {
			return keys[i].route < keys[j].route
		}
		return keys[i].status < keys[j].status
	})
	buf.WriteString("# HELP http_requests_total HTTP requests by route and status\n")
	buf.WriteString("# TYPE http_requests_total counter\n")
	for _, k := range keys {
		fmt.Fprintf(buf, "http_requests_total{route=%q,status=\"%d\"} %d\n", k.route, k.status, counts[k])
	}
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe adds value to the first bucket whose bound holds it. Values above
// every bound only show up in the +Inf bucket.
func (h *histogram) Observe(value float64) {
	idx := sort.SearchFloat64s(h.buckets, value)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	if idx < len(h.counts) {
		h.counts[idx]++
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s histogram\n", name, help, name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=%q} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n%s_count %d\n", name, formatFloat(snap.sum), name, snap.count)
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
