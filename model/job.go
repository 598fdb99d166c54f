package model

import "time"

// Job is one input file queued for partitioning.
type Job struct {
	Path string
	// Output is the JSON document written for Path.
	Output string
	Hash   string
}

// Result reports the outcome of a job.
type Result struct {
	Job      Job
	Elements int
	// Skipped is set when the input was already partitioned by an earlier run.
	Skipped  bool
	Err      error
	Duration time.Duration
}
