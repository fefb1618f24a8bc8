// Package postgres provides PostgreSQL implementations of the store
// interfaces for outputs and documents, along with the embedded schema
// migrations. Connections go through database/sql with the pgx driver.
package postgres
