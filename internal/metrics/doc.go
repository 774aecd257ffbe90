// Package metrics records build and render metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	runner := pipeline.New(cfg, pipeline.WithRecorder(metrics.NoopRecorder{}))
//
// When metrics.textfile is configured the CLI swaps in a PrometheusRecorder
// backed by its own registry and writes the registry to the textfile after every
// build (node_exporter textfile collector format). A one-shot CLI has no scrape
// endpoint, so the textfile is the only export.
package metrics
