// Package stats owns the prometheus collectors of the keyring.
package stats

import (
	"bufio"
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// NetworkSwitches counts network switches by outcome (committed,
	// rolled_back).
	NetworkSwitches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keyring",
		Name:      "network_switches_total",
		Help:      "Network switches by outcome.",
	}, []string{"outcome"})

	// ThrottleEvents counts RPC throttle admissions and cooldowns by
	// throttle name.
	ThrottleEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keyring",
		Name:      "rpc_throttle_events_total",
		Help:      "RPC throttle events by throttle name and event.",
	}, []string{"name", "event"})

	// SignedTransactions counts signed transactions by chain family and
	// signer kind.
	SignedTransactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keyring",
		Name:      "signed_transactions_total",
		Help:      "Signed transactions by chain family and signer.",
	}, []string{"family", "signer"})
)

func init() {
	prometheus.MustRegister(NetworkSwitches, ThrottleEvents, SignedTransactions)
}

// DumpPrometheusDefaults write default Prometheus metrics to the given file
func DumpPrometheusDefaults(path string) error {
	file, err := os.OpenFile(
		path,
		os.O_APPEND|os.O_CREATE|os.O_RDWR,
		0644,
	)
	if err != nil {
		return err
	}
	defer file.Close()
	writer := bufio.NewWriter(file)

	metricFamily, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, v := range metricFamily {
		if _, err := writer.WriteString(v.String() + "\n"); err != nil {
			return err
		}
	}

	return writer.Flush()
}
