// Package metrics collects per-file and per-run transformation metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so call sites never check for nil:
//
//	runner := transform.NewRunner(opts, resolver).WithRecorder(metrics.NoopRecorder{})
//
// The Prometheus implementation registers its collectors on a caller-supplied
// registry. WriteTextfile dumps that registry in the text exposition format,
// which suits batch runs scraped through a node_exporter textfile collector.
package metrics
