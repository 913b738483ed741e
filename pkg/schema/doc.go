// Package schema orders, validates, and applies forward/reverse database
// migrations against a DatabaseManager, tracking applied versions in a
// schema_version table.
package schema
