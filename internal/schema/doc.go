// Package schema keeps relational schemas in line with declared table models.
// It detects the SQL dialect from a JDBC-style connection string, reads the
// live columns and indexes of each table, and plans and applies the CREATE
// TABLE, CREATE INDEX and ALTER TABLE ADD COLUMN statements that are missing.
package schema
