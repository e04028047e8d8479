// Package pgstore implements the engine's durable stores on Postgres:
// members, OTP challenges, signing keys and mobile app versions.
//
// Repositories take a [DBTX] so they run equally on *sql.DB and *sql.Tx.
// Connections use the pgx stdlib driver; the schema ships as embedded
// golang-migrate migrations applied by [Migrate].
package pgstore
