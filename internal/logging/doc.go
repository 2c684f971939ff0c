// Package logging builds the zap logger used across ethicsd and carries
// correlation IDs (case, run, session) through context so every log line
// of a pipeline task can be tied back to its run.
package logging
