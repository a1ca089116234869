package toolinvoke

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"
)

// placeholderRE guards against the model inlining an unresolved template
// literal (e.g. "{price}") instead of a real bound parameter.
var placeholderRE = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)

// ErrSQLPlaceholder is returned when a SQL body still contains an
// unresolved "{name}"-style template.
var ErrSQLPlaceholder = fmt.Errorf("sql contains an unresolved placeholder")

// CheckSQLPlaceholder implements the SQL-placeholder guard from spec §4.3.
func CheckSQLPlaceholder(sqlText string) error {
	if placeholderRE.MatchString(sqlText) {
		return ErrSQLPlaceholder
	}
	return nil
}

// DB wraps a *sql.DB opened against a pure-Go sqlite driver, used as the
// backing store for db_query/db_migrate/db_schema. The key-value/queue
// tools do not use it; their state lives only in memory (see KVStore).
type DB struct {
	conn *sql.DB
}

// OpenDB opens (creating if necessary) a sqlite database at path.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Conn exposes the underlying *sql.DB for callers that need direct access.
func (d *DB) Conn() *sql.DB { return d.conn }

func (d *DB) Close() error { return d.conn.Close() }

func paramsArg(args map[string]any) []any {
	raw, ok := args["params"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	return list
}

// NewDBQuery builds the db_query invoker. Guarded by CheckSQLPlaceholder
// before anything touches the database.
func NewDBQuery(db *DB) Invoker {
	return InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		query, _ := stringArg(args, "sql")
		if query == "" {
			return nil, fmt.Errorf("sql is required")
		}
		if err := CheckSQLPlaceholder(query); err != nil {
			return nil, err
		}
		rows, err := db.conn.QueryContext(ctx, query, paramsArg(args)...)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read columns: %w", err)
		}
		var out []map[string]any
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return nil, fmt.Errorf("scan row: %w", err)
			}
			row := make(map[string]any, len(cols))
			for i, c := range cols {
				row[c] = values[i]
			}
			out = append(out, row)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate rows: %w", err)
		}
		return map[string]any{"rows": out, "row_count": len(out)}, nil
	})
}

// NewDBMigrate builds the db_migrate invoker.
func NewDBMigrate(db *DB) Invoker {
	return InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		query, _ := stringArg(args, "sql")
		if query == "" {
			return nil, fmt.Errorf("sql is required")
		}
		if err := CheckSQLPlaceholder(query); err != nil {
			return nil, err
		}
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return map[string]any{"applied": true}, nil
	})
}

// NewDBSchema builds the db_schema invoker.
func NewDBSchema(db *DB) Invoker {
	return InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		table, _ := stringArg(args, "table")
		if table == "" {
			return nil, fmt.Errorf("table is required")
		}
		rows, err := db.conn.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
		if err != nil {
			return nil, fmt.Errorf("describe table: %w", err)
		}
		defer rows.Close()

		var columns []map[string]any
		for rows.Next() {
			var cid int
			var name, colType string
			var notNull int
			var dfltValue sql.NullString
			var pk int
			if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
				return nil, fmt.Errorf("scan column info: %w", err)
			}
			columns = append(columns, map[string]any{
				"name":     name,
				"type":     colType,
				"not_null": notNull != 0,
				"primary_key": pk != 0,
			})
		}
		return map[string]any{"table": table, "columns": columns}, nil
	})
}

// quoteIdent defends PRAGMA table_info against an identifier containing a
// closing paren; sqlite has no parameter binding for PRAGMA targets.
func quoteIdent(ident string) string {
	out := make([]rune, 0, len(ident))
	for _, r := range ident {
		if r == '\'' || r == ')' || r == ';' {
			continue
		}
		out = append(out, r)
	}
	return "'" + string(out) + "'"
}
