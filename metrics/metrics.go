// Package metrics wires rpc, corpc, and stackpool into Prometheus
// instrumentation. Grounded on ClusterCockpit-cc-backend's and aistore's use
// of github.com/prometheus/client_golang, but registered against a
// package-owned registry (not promauto/DefaultRegisterer) so an embedder can
// mount it under its own namespace without collisions.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var reg = prometheus.NewRegistry()

// Registry exposes the registry so an embedder's HTTP server can serve it
// via promhttp.HandlerFor(metrics.Registry(), ...).
func Registry() *prometheus.Registry { return reg }

var (
	CallsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cartrpc", Subsystem: "rpc", Name: "calls_created_total",
		Help: "RPC objects created via rpc.Create.",
	})
	CallsInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cartrpc", Subsystem: "rpc", Name: "calls_inflight",
		Help: "RPC objects currently tracked as in flight by the context tracker.",
	})
	CallsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cartrpc", Subsystem: "rpc", Name: "calls_completed_total",
		Help: "RPC objects completed, labeled by terminal status.",
	}, []string{"status"})

	CorpcChildrenSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cartrpc", Subsystem: "corpc", Name: "children_sent_total",
		Help: "Child RPCs actually sent by the CoRPC engine (excludes excluded ranks).",
	})
	CorpcParentsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cartrpc", Subsystem: "corpc", Name: "parents_completed_total",
		Help: "CoRPC parents completed, labeled by terminal status.",
	}, []string{"status"})

	StackPoolAllocedStacks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cartrpc", Subsystem: "stackpool", Name: "alloced_stacks",
		Help: "Total stacks currently allocated (free + in-use).",
	})
	StackPoolFreeStacks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cartrpc", Subsystem: "stackpool", Name: "free_stacks",
		Help: "Stacks currently sitting on the free list.",
	})
	StackPoolAcquires = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cartrpc", Subsystem: "stackpool", Name: "acquire_total",
		Help: "Stack acquisitions, labeled by whether they were served from the free list or mmap'd fresh.",
	}, []string{"source"})
)

func init() {
	reg.MustRegister(
		CallsCreated, CallsInflight, CallsCompleted,
		CorpcChildrenSent, CorpcParentsCompleted,
		StackPoolAllocedStacks, StackPoolFreeStacks, StackPoolAcquires,
	)
}
