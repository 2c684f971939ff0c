// Package store is the sqlite persistence arena. It owns the schema and
// every transactional operation; the domain packages define the narrow
// interfaces it satisfies.
package store
