// Package backup snapshots, compresses, retains, and restores the database
// file that a Connection holds open, independent of DatabaseManager and
// SchemaManager. Callers are responsible for quiescing the pool (closing it
// or otherwise ensuring no Connection is active) before RestoreFromBackup.
package backup
