package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mentorbridge/mentorbridge"
	"github.com/mentorbridge/mentorbridge/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Source is what the exporter reads on every scrape. *mentorbridge.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() mentorbridge.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine counters as labeled Prometheus families.
type Exporter struct {
	source Source
}

// NewPrometheusExporter reads from engine.
func NewPrometheusExporter(engine *mentorbridge.Engine) *Exporter {
	return NewPrometheusExporterFromSource(engine)
}

// NewPrometheusExporterFromSource reads from any [Source].
func NewPrometheusExporterFromSource(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves [Exporter.Render] on GET.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", contentType)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the text exposition of the current snapshot. It is empty
// while metrics are disabled and nothing was dropped.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var w expositionWriter
	w.Grow(4096)

	for _, fam := range internaldefs.Families {
		w.header(fam.Name, fam.Help, "counter")
		for _, s := range fam.Series {
			w.sample(fam.Name, fam.Label, s.Value, "", "", snap.Counters[s.ID])
		}
	}

	if len(snap.Histograms) > 0 {
		name := internaldefs.LatencyName
		w.header(name, internaldefs.LatencyHelp, "histogram")
		for _, op := range internaldefs.Latencies {
			cum := internaldefs.Cumulative(snap.Histograms[op.ID])
			for i, le := range internaldefs.Bounds {
				w.sample(name+"_bucket", "op", op.Value, "le", le, cum[i])
			}
			// The engine keeps bucket counts only.
			w.sample(name+"_sum", "op", op.Value, "", "", 0)
			w.sample(name+"_count", "op", op.Value, "", "", cum[len(cum)-1])
		}
	}

	w.header(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	w.sample(internaldefs.AuditDroppedName, "", "", "", "", dropped)

	return w.String()
}

type expositionWriter struct {
	strings.Builder
}

func (w *expositionWriter) header(name, help, kind string) {
	w.WriteString("# HELP " + name + " " + escape(help, false) + "\n")
	w.WriteString("# TYPE " + name + " " + kind + "\n")
}

// sample writes one line with up to two labels. Empty keys are skipped.
func (w *expositionWriter) sample(name, k1, v1, k2, v2 string, value uint64) {
	w.WriteString(name)
	if k1 != "" || k2 != "" {
		w.WriteByte('{')
		sep := false
		for _, kv := range [2][2]string{{k1, v1}, {k2, v2}} {
			if kv[0] == "" {
				continue
			}
			if sep {
				w.WriteByte(',')
			}
			w.WriteString(kv[0] + `="` + escape(kv[1], true) + `"`)
			sep = true
		}
		w.WriteByte('}')
	}
	w.WriteByte(' ')
	w.WriteString(strconv.FormatUint(value, 10))
	w.WriteByte('\n')
}

func escape(s string, quote bool) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	if quote {
		s = strings.ReplaceAll(s, `"`, `\"`)
	}
	return s
}
