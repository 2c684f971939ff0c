// Package ontology provides read-only access to the external class
// catalog used when reassigning a candidate entity to an existing
// ontology class. A catalog outage never blocks extraction or commit;
// entities simply stay unmatched.
package ontology
