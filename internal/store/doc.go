// Package store defines interfaces for persisting documents and generated
// outputs. The orchestrator and HTTP layer depend only on these interfaces;
// the PostgreSQL implementations live in internal/platform/postgres.
package store
