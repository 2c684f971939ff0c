// Package session manages extraction sessions: one session per
// (case, pass, section), linking every generated candidate entity and
// prompt record back to the session that produced it.
package session
