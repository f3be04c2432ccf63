// Package redis holds the Redis-backed pieces of the migrator: a shared
// client constructor and the distributed migration lock used when several
// instances may migrate the same database.
package redis
