package review

import "errors"

// ErrCommitTransaction indicates the commit transaction failed and was
// rolled back; every candidate keeps its pre-commit status.
var ErrCommitTransaction = errors.New("commit transaction failed")

// ErrUnknownClass indicates a reassignment named a class the catalog
// does not list.
var ErrUnknownClass = errors.New("class not found in ontology catalog")
