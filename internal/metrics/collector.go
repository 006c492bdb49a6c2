// Package metrics exposes per-node jitter buffer stats as Prometheus
// gauges, refreshed from each node's own cumulative counters on every
// per-second tick.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/binaryvr/hifi/pkg/jitter"
)

var (
	nodesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "audiobridge",
		Name:      "nodes_active",
		Help:      "Current number of active remote node streams",
	})

	desiredFrames = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "audiobridge",
		Name:      "desired_jitter_buffer_frames",
		Help:      "Current target jitter buffer depth, in frames",
	}, []string{"node"})

	framesAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "audiobridge",
		Name:      "frames_available",
		Help:      "Frames currently buffered",
	}, []string{"node"})

	framesAvailableAvg = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "audiobridge",
		Name:      "frames_available_avg",
		Help:      "Time-weighted average of frames buffered",
	}, []string{"node"})

	// These are running totals kept by the node's InboundStream. They
	// only increase, except that the stream zeroes them on Reset (which
	// an unreasonable sequence jump triggers) and on ResetStats; the
	// gauges are re-Set() from the stream's totals on every tick rather
	// than tracked as counter deltas.
	starveCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "audiobridge",
		Name:      "starve_count",
		Help:      "Cumulative pop-with-nothing-available events",
	}, []string{"node"})

	silentFramesDropped = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "audiobridge",
		Name:      "silent_frames_dropped",
		Help:      "Cumulative loss-fill silence elided instead of written",
	}, []string{"node"})

	overflowCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "audiobridge",
		Name:      "ring_overflow_count",
		Help:      "Cumulative ring writes that overwrote samples before they were popped",
	}, []string{"node"})

	oldFramesDropped = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "audiobridge",
		Name:      "old_frames_dropped",
		Help:      "Cumulative frames trimmed for exceeding desired+maxFramesOverDesired",
	}, []string{"node"})

	packetsReceived = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "audiobridge",
		Name:      "packets_received",
		Help:      "Cumulative packets classified by the sequence tracker",
	}, []string{"node"})

	timeGapAvgUsec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "audiobridge",
		Name:      "time_gap_avg_usec",
		Help:      "Average inter-arrival gap over the stats window, in microseconds",
	}, []string{"node"})

	timeGapStdDevUsec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "audiobridge",
		Name:      "time_gap_stddev_usec",
		Help:      "Inter-arrival gap standard deviation over the stats window, in microseconds",
	}, []string{"node"})
)

// Register registers every collector with the default Prometheus
// registry. Call once at startup.
func Register() {
	prometheus.MustRegister(
		nodesActive,
		desiredFrames,
		framesAvailable,
		framesAvailableAvg,
		starveCount,
		silentFramesDropped,
		overflowCount,
		oldFramesDropped,
		packetsReceived,
		timeGapAvgUsec,
		timeGapStdDevUsec,
	)
}

// NodeAdded and NodeRemoved track the active node gauge.
func NodeAdded()   { nodesActive.Inc() }
func NodeRemoved() { nodesActive.Dec() }

// Observe folds one node's AudioStreamStats into the exposed series.
func Observe(node string, stats jitter.AudioStreamStats) {
	desiredFrames.WithLabelValues(node).Set(float64(stats.DesiredFrames))
	framesAvailable.WithLabelValues(node).Set(float64(stats.FramesAvailable))
	framesAvailableAvg.WithLabelValues(node).Set(stats.FramesAvailableAvg)
	starveCount.WithLabelValues(node).Set(float64(stats.StarveCount))
	silentFramesDropped.WithLabelValues(node).Set(float64(stats.SilentFramesDropped))
	overflowCount.WithLabelValues(node).Set(float64(stats.OverflowCount))
	oldFramesDropped.WithLabelValues(node).Set(float64(stats.OldFramesDropped))
	packetsReceived.WithLabelValues(node).Set(float64(stats.PacketsReceived))
	timeGapAvgUsec.WithLabelValues(node).Set(stats.TimeGapAvgUsec)
	timeGapStdDevUsec.WithLabelValues(node).Set(stats.TimeGapStdDevUsec)
}

// Unregister drops a node's label set from every metric, for
// nodestream cleanup on node removal.
func Unregister(node string) {
	desiredFrames.DeleteLabelValues(node)
	framesAvailable.DeleteLabelValues(node)
	framesAvailableAvg.DeleteLabelValues(node)
	starveCount.DeleteLabelValues(node)
	silentFramesDropped.DeleteLabelValues(node)
	overflowCount.DeleteLabelValues(node)
	oldFramesDropped.DeleteLabelValues(node)
	packetsReceived.DeleteLabelValues(node)
	timeGapAvgUsec.DeleteLabelValues(node)
	timeGapStdDevUsec.DeleteLabelValues(node)
}

// Serve starts the /metrics HTTP server in the background, following
// the bigbluebutton recorder's own ServePromMetrics shape.
func Serve(listenAddress string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	go func() {
		if err := http.ListenAndServe(listenAddress, mux); err != nil {
			log.Errorf("metrics server stopped: %s", err)
		}
	}()

	log.Infof("prometheus metrics exported on %s", listenAddress)
}
