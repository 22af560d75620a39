// SQL-backed Data Sources: a BLOB column read through database/sql as
// the byte window, generalizing the teacher's per-engine DSN-building
// (internal/database/database.go's Connect method) from security
// scanning to blob retrieval.
package source

import (
	"database/sql"
	"fmt"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLBlobSource reads a single BLOB value, identified by a query, as
// a read-only byte window. Writes are rejected: mutating a row backing
// a pattern tree out from under a running evaluation is out of scope.
type SQLBlobSource struct {
	db   *sql.DB
	data []byte
	base uint64
}

// DSN builds a driver connection string the way the teacher's
// Connect method does, one case per supported engine.
func DSN(engine, host string, port int, database, username, password string) (driver, dsn string, err error) {
	switch engine {
	case "mysql":
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", username, password, host, port, database), nil
	case "postgres":
		return "postgres", fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			host, port, username, password, database), nil
	case "sqlite":
		return "sqlite", database, nil
	case "sqlserver":
		return "sqlserver", fmt.Sprintf("server=%s;port=%d;user id=%s;password=%s;database=%s",
			host, port, username, password, database), nil
	default:
		return "", "", errors.Errorf("unsupported SQL data source engine %q", engine)
	}
}

// OpenSQLBlob connects using driver/dsn, runs query (which must select
// exactly one BLOB/bytea/varbinary column from exactly one row), and
// loads it as the Source's full byte window.
func OpenSQLBlob(driver, dsn, query string, args ...interface{}) (*SQLBlobSource, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s data source", driver)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connecting to %s data source", driver)
	}
	row := db.QueryRow(query, args...)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "reading blob column")
	}
	return &SQLBlobSource{db: db, data: blob}, nil
}

// WithBaseAddress sets the address the first byte of the blob is
// considered to live at.
func (s *SQLBlobSource) WithBaseAddress(base uint64) *SQLBlobSource {
	s.base = base
	return s
}

func (s *SQLBlobSource) Size() uint64        { return uint64(len(s.data)) }
func (s *SQLBlobSource) BaseAddress() uint64 { return s.base }
func (s *SQLBlobSource) Writable() bool      { return false }
func (s *SQLBlobSource) Close() error        { return s.db.Close() }

func (s *SQLBlobSource) ReadAt(offset uint64, buf []byte) error {
	if err := checkBounds(s, offset, len(buf)); err != nil {
		return err
	}
	copy(buf, s.data[offset:offset+uint64(len(buf))])
	return nil
}

func (s *SQLBlobSource) WriteAt(offset uint64, buf []byte) error {
	return OutOfBounds(s, offset, len(buf))
}
