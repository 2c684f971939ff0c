// Package pipeline sequences the extraction pipeline steps for a case.
//
// Steps run in a strict linear order (1 -> 1b -> 2 -> 2b -> 3 -> 4 -> 5);
// a step cannot start unless its predecessor's run completed, and a case
// never has more than one non-terminal run at a time. Each triggered step
// executes as an independently schedulable task on a worker pool; the only
// state crossing task boundaries is the run record and the entity store.
package pipeline
