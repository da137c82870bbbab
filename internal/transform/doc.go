// Package transform is the incremental transformation engine.
//
// A Runner resolves the shared run state once (stylesheet, optional project
// document), enumerates input files and hands each one to a Processor. The
// Processor decides whether the output is stale, and if so parses the input,
// builds a RenderContext, renders the stylesheet into a temporary file and
// moves it into place. Every per-file failure is captured in that file's
// Outcome; only configuration and scan errors end a run early.
package transform
