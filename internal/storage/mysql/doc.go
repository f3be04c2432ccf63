// Package mysql persists migration history. A JSON-lines file backs local
// runs, and a MySQL table backs shared deployments; the table itself is
// bootstrapped from the SQL files embedded in deploy/migrations.
package mysql
