// Package metrics exports commit and undo/redo counters through Prometheus.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zjrosen/ledgerkit/internal/txn"
	"github.com/zjrosen/ledgerkit/internal/undo"
)

const namespace = "ledgerkit"

var (
	_ txn.Metrics  = (*Recorder)(nil)
	_ undo.Metrics = (*Recorder)(nil)
)

// Recorder implements txn.Metrics and undo.Metrics. Commit labels are not
// used as metric labels since they are free text.
type Recorder struct {
	registry *prometheus.Registry

	commits        prometheus.Counter
	commitFailures prometheus.Counter
	commitDuration prometheus.Histogram
	changes        *prometheus.CounterVec
	replays        *prometheus.CounterVec
}

// NewRecorder registers the ledgerkit metrics with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		commits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Transactions committed into their base",
		}),
		commitFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_failures_total",
			Help:      "Commits that returned an error",
		}),
		commitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Duration of successful commits",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}),
		changes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "committed_changes_total",
			Help:      "Objects added, updated and deleted by commits",
		}, []string{"kind"}),
		replays: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_replays_total",
			Help:      "Operations undone or redone",
		}, []string{"direction"}),
	}
}

// Registry returns the registry holding the metrics.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// RecordCommit implements txn.Metrics.
func (r *Recorder) RecordCommit(_ string, d time.Duration, added, updated, deleted int) {
	r.commits.Inc()
	r.commitDuration.Observe(d.Seconds())
	r.changes.WithLabelValues("added").Add(float64(added))
	r.changes.WithLabelValues("updated").Add(float64(updated))
	r.changes.WithLabelValues("deleted").Add(float64(deleted))
}

// RecordCommitFailure implements txn.Metrics.
func (r *Recorder) RecordCommitFailure(string) { r.commitFailures.Inc() }

// RecordUndo implements undo.Metrics.
func (r *Recorder) RecordUndo(string) { r.replays.WithLabelValues("undo").Inc() }

// RecordRedo implements undo.Metrics.
func (r *Recorder) RecordRedo(string) { r.replays.WithLabelValues("redo").Inc() }

// Summary renders counter values as sorted "name{labels} value" lines.
// Histograms report their sample count.
func (r *Recorder) Summary() (string, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return "", fmt.Errorf("gathering metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				lines = append(lines, fmt.Sprintf("%s_count %d", name, m.GetHistogram().GetSampleCount()))
			}
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}
