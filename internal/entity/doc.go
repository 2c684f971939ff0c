// Package entity defines candidate entities: concepts extracted from a
// case narrative that sit under human review before anything downstream
// may treat them as authoritative.
//
// Status changes go through Status.CanTransition; illegal transitions are
// rejected at the boundary rather than by convention. Once an entity is
// committed its label and definition are frozen.
package entity
