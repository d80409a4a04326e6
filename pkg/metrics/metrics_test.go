package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter(t *testing.T) {
	r := New()
	c := r.Counter("searches_total", "Total searches.")
	c.Inc()
	c.Add(2)
	if c.Value() != 3 {
		t.Errorf("value = %d", c.Value())
	}
	if again := r.Counter("searches_total", ""); again != c {
		t.Error("same name must return the same counter")
	}
}

func TestGauge(t *testing.T) {
	r := New()
	g := r.Gauge("inflight", "")
	g.Set(5)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 4 {
		t.Errorf("value = %d", g.Value())
	}
}

func TestWithLabels(t *testing.T) {
	if got := WithLabels("hits", "mode", "strict"); got != `hits{mode="strict"}` {
		t.Errorf("got %q", got)
	}
	if got := WithLabels("hits", "odd"); got != "hits" {
		t.Errorf("odd kvs must return the bare name, got %q", got)
	}
	if got := WithLabels("hits"); got != "hits" {
		t.Errorf("got %q", got)
	}
}

func TestRenderCounterWithLabels(t *testing.T) {
	r := New()
	r.Counter(WithLabels("search_hits_total", "mode", "strict"), "Hits by mode.").Add(7)
	r.Counter(WithLabels("search_hits_total", "mode", "relaxed"), "").Inc()

	out := r.Render()
	for _, want := range []string{
		"# HELP search_hits_total Hits by mode.",
		"# TYPE search_hits_total counter",
		`search_hits_total{mode="relaxed"} 1`,
		`search_hits_total{mode="strict"} 7`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestRenderHistogramCumulative(t *testing.T) {
	r := New()
	h := r.Histogram("latency_seconds", "", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(0.7)
	h.Observe(100) // above all buckets, only in +Inf

	out := r.Render()
	for _, want := range []string{
		`latency_seconds_bucket{le="0.1"} 1`,
		`latency_seconds_bucket{le="1"} 3`,
		`latency_seconds_bucket{le="10"} 3`,
		`latency_seconds_bucket{le="+Inf"} 4`,
		"latency_seconds_count 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestRenderOrderIsRegistrationOrder(t *testing.T) {
	r := New()
	r.Counter("zzz_total", "")
	r.Counter("aaa_total", "")
	out := r.Render()
	if strings.Index(out, "zzz_total") > strings.Index(out, "aaa_total") {
		t.Error("metrics must render in registration order")
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("x_total", "").Inc()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "x_total 1") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
