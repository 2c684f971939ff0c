// Package casefile holds the case record the pipeline operates on:
// the narrative sections handed to extraction and the board's recorded
// questions, conclusions, and resolution used by synthesis and scoring.
//
// Parsing a raw case document into this shape happens upstream; ethicsd
// receives cases already sectioned.
package casefile
