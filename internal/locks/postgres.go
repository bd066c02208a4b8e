package locks

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"strings"
	"sync"

	"gorm.io/gorm"
)

// PostgresService maps lock keys onto session-level Postgres advisory
// locks. Each holder pins a dedicated connection for the lifetime of the
// lock so the session (and with it the lock) survives pool rotation.
type PostgresService struct {
	sqlDB *sql.DB
}

// NewPostgresService builds an advisory lock service over the given handle.
func NewPostgresService(db *gorm.DB) (*PostgresService, error) {
	if db == nil {
		return nil, errors.New("locks: db is required")
	}
	if db.Dialector.Name() != "postgres" {
		return nil, errors.New("locks: advisory locks require a postgres database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return &PostgresService{sqlDB: sqlDB}, nil
}

// TryLock attempts a non-blocking acquire. A nil Holder means the lock is
// held by another session.
func (s *PostgresService) TryLock(ctx context.Context, key string) (Holder, error) {
	conn, id, err := s.grabConn(ctx, key)
	if err != nil {
		return nil, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !acquired {
		_ = conn.Close()
		return nil, nil
	}

	return &pgHolder{conn: conn, id: id}, nil
}

// Lock blocks until the advisory lock is acquired or ctx is done.
func (s *PostgresService) Lock(ctx context.Context, key string) (Holder, error) {
	conn, id, err := s.grabConn(ctx, key)
	if err != nil {
		return nil, err
	}

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", id); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &pgHolder{conn: conn, id: id}, nil
}

func (s *PostgresService) grabConn(ctx context.Context, key string) (*sql.Conn, int64, error) {
	if s == nil || s.sqlDB == nil {
		return nil, 0, errors.New("locks: service not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, 0, errors.New("locks: key is required")
	}

	conn, err := s.sqlDB.Conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	return conn, keyID(key), nil
}

// keyID hashes the key into the signed 64-bit space advisory locks use.
func keyID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}

type pgHolder struct {
	conn *sql.Conn
	id   int64
	once sync.Once
	err  error
}

// Close releases the advisory lock and returns the connection to the pool.
func (h *pgHolder) Close() error {
	h.once.Do(func() {
		_, unlockErr := h.conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", h.id)
		closeErr := h.conn.Close()
		if unlockErr != nil {
			h.err = unlockErr
			return
		}
		h.err = closeErr
	})
	return h.err
}
