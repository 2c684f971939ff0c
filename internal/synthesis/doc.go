// Package synthesis composes canonical decision points from a case's
// committed entities.
//
// The algorithmic path runs three stages: obligation-conflict coverage
// (pairs of obligations sharing a role and time window that a rule table
// marks as mutually unsatisfiable), action-option scoring (five-factor
// moral intensity), and composition into DecisionPoint records. When the
// algorithmic path yields nothing, a generative fallback produces the
// same shape; its payload is schema-validated before anything persists.
package synthesis
