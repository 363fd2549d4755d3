// Package installer installs missing runtime packages with live progress.
//
// The Orchestrator keeps a queue of PackageSpecs that the local Probe reports
// as missing and installs them strictly one at a time: installers share the
// vendor directory, so parallel runs would race on it. Each install is a job:
// one goroutine owns one external process and one Parser. The job only sends
// messages; the Batch coordinator owns every piece of state and turns job
// messages into a single continuous progress stream.
//
// # Progress Scale
//
// Within a package the Parser maps installer output onto 0..100:
//
//	  0       Collecting requirements
//	  0..50   Downloading (reported percent * 0.5)
//	 50       Installing collected packages
//	 50..98  +2 per "Successfully installed" line
//	100       process exited with status 0
//
// Across the batch the value is completed*100 + jobPercent out of total*100.
//
// # Failure Policy
//
// A package whose installer exits non-zero does not stop the batch. The
// failure is recorded as a *PackageError in the Summary and the queue
// advances; a later import of the dependency is the real availability check.
// The only condition that stops a batch is a missing Python runtime
// (pyenv.ErrRuntimeNotFound).
package installer
