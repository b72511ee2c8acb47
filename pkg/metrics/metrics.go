// Package metrics exposes check outcomes as Prometheus gauges so that a run
// can be scraped through the node exporter's textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/newtron-network/fpverify/pkg/fpcheck"
)

const namespace = "fpverify"

// Label names.
const (
	labelDevice = "device"
	labelEntry  = "entry"
	labelCheck  = "check"
)

// Recorder holds the gauges for one run on a private registry.
type Recorder struct {
	reg *prometheus.Registry

	// Entries is the number of FP dump lines matched per entry.
	Entries *prometheus.GaugeVec

	// Success is 1 when the check passed on the device, 0 otherwise.
	Success *prometheus.GaugeVec

	// LastRun is the unix time the check finished on the device.
	LastRun *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with its gauges registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		Entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fp",
			Name:      "entries",
			Help:      "Number of FP dump lines matching each expected OSPF entry.",
		}, []string{labelDevice, labelEntry}),
		Success: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "check_success",
			Help:      "Whether the last check on the device passed (1) or not (0).",
		}, []string{labelDevice, labelCheck}),
		LastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "check_last_run_timestamp_seconds",
			Help:      "Unix time the last check on the device finished.",
		}, []string{labelDevice, labelCheck}),
	}
	r.reg.MustRegister(r.Entries, r.Success, r.LastRun)
	return r
}

// ObserveCounts records the per-entry counts seen on device.
func (r *Recorder) ObserveCounts(device string, c fpcheck.Counts) {
	for _, e := range c.Entries() {
		r.Entries.WithLabelValues(device, e.Name).Set(float64(e.Count))
	}
}

// ObserveResult records whether check passed on device.
func (r *Recorder) ObserveResult(device, check string, passed bool) {
	v := 0.0
	if passed {
		v = 1
	}
	r.Success.WithLabelValues(device, check).Set(v)
	r.LastRun.WithLabelValues(device, check).SetToCurrentTime()
}

// Gatherer returns the registry for callers that serve or push it.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteTextfile writes all metrics to path atomically, in the format read by
// the node exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Gatherer()); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
