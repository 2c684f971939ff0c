// Package review is the human review surface over candidate entities:
// edit, approve, reassign, delete, and the atomic session commit that
// turns surviving candidates into the authoritative entity set.
package review
