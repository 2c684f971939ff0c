package entity

import "errors"

// ErrAlreadyCommitted indicates a write was attempted on a committed
// entity. Committed labels and definitions are immutable.
var ErrAlreadyCommitted = errors.New("entity already committed")

// ErrNotFound indicates the entity ID is unknown.
var ErrNotFound = errors.New("entity not found")

// ErrIllegalStatusTransition indicates a status change outside the
// transition table.
var ErrIllegalStatusTransition = errors.New("illegal entity status transition")
