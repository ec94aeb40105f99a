package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Dialect holds the SQL differences between the supported drivers
type Dialect struct {
	Driver      string
	uuidType    string
	decimalType string
	timeType    string
	forUpdate   string
	numbered    bool
}

var (
	// Postgres is the production dialect
	Postgres = Dialect{
		Driver:      "postgres",
		uuidType:    "UUID",
		decimalType: "NUMERIC(20,4)",
		timeType:    "TIMESTAMPTZ",
		forUpdate:   " FOR UPDATE",
		numbered:    true,
	}

	// SQLite is used for development and tests. Decimals are stored as TEXT
	// so no precision is lost.
	SQLite = Dialect{
		Driver:      "sqlite3",
		uuidType:    "TEXT",
		decimalType: "TEXT",
		timeType:    "DATETIME",
	}
)

// DialectFor returns the dialect of a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case Postgres.Driver:
		return Postgres, nil
	case SQLite.Driver:
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// Rebind rewrites ? placeholders into $N for drivers that need numbered parameters
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// Repository provides database operations
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

// Open connects to the database and checks the connection
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}
	if dialect == SQLite {
		dsn = withSQLiteDefaults(dsn)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, Dialect{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, dialect, nil
}

// sqliteDefaults are the go-sqlite3 parameters the store depends on. Restricted
// deletes need foreign keys and the application lock needs immediate transactions.
var sqliteDefaults = []struct{ key, alias, value string }{
	{"_foreign_keys", "_fk", "on"},
	{"_txlock", "", "immediate"},
	{"_busy_timeout", "_timeout", "5000"},
}

// withSQLiteDefaults adds the sqliteDefaults missing from dsn. Parameters
// already present are kept as given.
func withSQLiteDefaults(dsn string) string {
	base, query, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(query)
	if err != nil {
		return dsn
	}
	for _, d := range sqliteDefaults {
		if params.Has(d.key) || (d.alias != "" && params.Has(d.alias)) {
			continue
		}
		params.Set(d.key, d.value)
	}
	return base + "?" + params.Encode()
}

// Dialect returns the SQL dialect of the repository
func (r *Repository) Dialect() Dialect {
	return r.dialect
}

// q returns the transaction bound to ctx, or the pool when there is none
func (r *Repository) q(ctx context.Context) querier {
	if tx := getTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q(ctx).ExecContext(ctx, r.dialect.Rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q(ctx).QueryContext(ctx, r.dialect.Rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q(ctx).QueryRowContext(ctx, r.dialect.Rebind(query), args...)
}

// count runs a COUNT(*) query built from table and filters
func (r *Repository) count(ctx context.Context, table string, columns map[string]bool, filters []Filter) (int, error) {
	where, args, err := buildWhere(columns, filters)
	if err != nil {
		return 0, err
	}
	var n int
	if err := r.queryRow(ctx, "SELECT COUNT(*) FROM "+table+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// timeArg turns an optional time into a query argument, NULL when unset
func timeArg(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
