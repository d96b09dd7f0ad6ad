// Package storage provides the durable stores behind the vote ledger and
// ballot subsystem. Two engines implement the same interfaces: an embedded
// bbolt file (the default) and PostgreSQL via pgx.
package storage

import (
	"github.com/khurramrashidd/BharatVotes/internal/auth"
	"github.com/khurramrashidd/BharatVotes/internal/ballot"
	"github.com/khurramrashidd/BharatVotes/internal/ledger"
	"github.com/khurramrashidd/BharatVotes/internal/roster"
)

// Store is the full persistence surface an engine must provide.
type Store interface {
	ledger.Store
	ballot.Store
	roster.Store
	auth.Store

	Close() error
}
