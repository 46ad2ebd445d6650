package health

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"redact-backend/internal/shared/storage/object"
)

const probeTimeout = 2 * time.Second

// probeKey is never written; a not-found answer proves the store is reachable.
const probeKey = "health/probe"

// Service reports whether the API's dependencies are reachable.
type Service struct {
	DB    *sql.DB
	Store object.ObjectStore
}

// NewService constructs a health service. Nil dependencies are reported as skipped.
func NewService(db *sql.DB, store object.ObjectStore) *Service {
	return &Service{DB: db, Store: store}
}

// Status is the health payload.
type Status struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks"`
}

// Check probes each dependency.
func (s *Service) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	st := Status{OK: true, Checks: map[string]string{}}
	record := func(name string, err error) {
		if err != nil {
			st.OK = false
			st.Checks[name] = "error"
			return
		}
		st.Checks[name] = "ok"
	}

	if s.DB == nil {
		st.Checks["database"] = "skipped"
	} else {
		record("database", s.DB.PingContext(ctx))
	}

	if s.Store == nil {
		st.Checks["store"] = "skipped"
	} else {
		_, err := s.Store.Stat(ctx, probeKey)
		if errors.Is(err, object.ErrNotFound) {
			err = nil
		}
		record("store", err)
	}
	return st
}
