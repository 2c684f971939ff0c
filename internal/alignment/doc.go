// Package alignment rates a synthesized decision point against the
// case's recorded board questions and conclusions. The scorer is pure:
// identical inputs always yield the identical score, and the result is
// clamped to [0,1].
package alignment
