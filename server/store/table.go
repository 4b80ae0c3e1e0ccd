package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
)

// Table provides typed helpers for a single database table whose rows carry
// an auto-increment integer primary key. Each concrete store embeds a Table
// and builds its queries on top of these helpers.
type Table struct {
	logger.Log
	db        *DB
	tableName string
	idColumn  string
}

func NewTable(db *DB, logFactory logger.LogFactory, tableName string, idColumn string) *Table {
	return &Table{
		Log:       logFactory("TableStore").WithField("Table", tableName),
		db:        db,
		tableName: tableName,
		idColumn:  idColumn,
	}
}

func (t *Table) DB() *DB {
	return t.db
}

func (t *Table) TableName() string {
	return t.tableName
}

// Create inserts row into the table and returns the id the database assigned
// to it. Postgres hands the id back via RETURNING; SQLite via LastInsertId.
func (t *Table) Create(ctx context.Context, txOrNil *Tx, row interface{}) (int64, error) {
	var id int64
	err := t.db.Write(txOrNil, func(writer Writer) error {
		ds := writer.Insert(t.tableName).Prepared(true).Rows(row)
		if t.db.Driver == Postgres {
			query, args, err := ds.Returning(goqu.C(t.idColumn)).ToSQL()
			if err != nil {
				return errors.Wrap(err, "error generating insert query")
			}
			found, err := writer.ScanValContext(ctx, &id, query, args...)
			if err != nil {
				return t.MakeStandardDBError(err)
			}
			if !found {
				return errors.New("error insert returned no id")
			}
			return nil
		}
		query, args, err := ds.ToSQL()
		if err != nil {
			return errors.Wrap(err, "error generating insert query")
		}
		result, err := writer.ExecContext(ctx, query, args...)
		if err != nil {
			return t.MakeStandardDBError(err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "error reading inserted id")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ReadByID reads the row with the specified primary key into dest.
// Returns a NotFound error if the row does not exist.
func (t *Table) ReadByID(ctx context.Context, txOrNil *Tx, id int64, dest interface{}) error {
	return t.ReadWhere(ctx, txOrNil, dest, goqu.Ex{t.idColumn: id})
}

// ReadWhere reads a single row matching the specified where clauses into dest.
// Returns a NotFound error if no row matches.
func (t *Table) ReadWhere(ctx context.Context, txOrNil *Tx, dest interface{}, expressions ...exp.Expression) error {
	return t.db.Read(txOrNil, func(reader Reader) error {
		query, args, err := reader.
			From(t.tableName).
			Prepared(true).
			Where(expressions...).
			Limit(1).
			ToSQL()
		if err != nil {
			return errors.Wrap(err, "error generating query")
		}
		found, err := reader.ScanStructContext(ctx, dest, query, args...)
		if err != nil {
			return t.MakeStandardDBError(err)
		}
		if !found {
			return gerror.NewErrNotFound("Not Found").Wrap(sql.ErrNoRows)
		}
		return nil
	})
}

// ReadAndLockRowForUpdateWhere reads a single row matching the specified where
// clauses into dest, locking the row for update for the duration of the
// enclosing transaction. On databases without row-level locking (sqlite) the
// database-wide write lock already provides the required exclusion and the
// read proceeds unlocked.
func (t *Table) ReadAndLockRowForUpdateWhere(ctx context.Context, tx *Tx, dest interface{}, expressions ...exp.Expression) error {
	return t.db.Read(tx, func(reader Reader) error {
		ds := reader.
			From(t.tableName).
			Prepared(true).
			Where(expressions...).
			Limit(1)
		if t.db.SupportsRowLevelLocking() {
			ds = ds.ForUpdate(exp.Wait)
		}
		query, args, err := ds.ToSQL()
		if err != nil {
			return errors.Wrap(err, "error generating query")
		}
		found, err := reader.ScanStructContext(ctx, dest, query, args...)
		if err != nil {
			return t.MakeStandardDBError(err)
		}
		if !found {
			return gerror.NewErrNotFound("Not Found").Wrap(sql.ErrNoRows)
		}
		return nil
	})
}

// UpdateByID updates all non-skipupdate columns of the row with the specified
// primary key from row. Returns a NotFound error if the row does not exist.
func (t *Table) UpdateByID(ctx context.Context, txOrNil *Tx, id int64, row interface{}) error {
	updated, err := t.UpdateWhere(ctx, txOrNil, goqu.Record{}, row, goqu.Ex{t.idColumn: id})
	if err != nil {
		return err
	}
	if updated == 0 {
		return gerror.NewErrNotFound("Not Found").Wrap(sql.ErrNoRows)
	}
	return nil
}

// UpdateWhere applies the update described by record (or, when record is
// empty, the full set of non-skipupdate columns of row) to every row matching
// the specified where clauses, and returns the number of rows updated.
func (t *Table) UpdateWhere(ctx context.Context, txOrNil *Tx, record goqu.Record, row interface{}, expressions ...exp.Expression) (int64, error) {
	var updated int64
	err := t.db.Write(txOrNil, func(writer Writer) error {
		ds := writer.Update(t.tableName).Prepared(true)
		if len(record) > 0 {
			ds = ds.Set(record)
		} else {
			ds = ds.Set(row)
		}
		query, args, err := ds.Where(expressions...).ToSQL()
		if err != nil {
			return errors.Wrap(err, "error generating update query")
		}
		result, err := writer.ExecContext(ctx, query, args...)
		if err != nil {
			return t.MakeStandardDBError(err)
		}
		updated, err = result.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "error reading rows affected")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// ListIn runs the select dataset returned by build, applying the supplied
// pagination, and scans the resulting rows into dest (a pointer to a slice
// of structs).
func (t *Table) ListIn(ctx context.Context, txOrNil *Tx, dest interface{}, pagination models.Pagination, build func(ds *goqu.SelectDataset) *goqu.SelectDataset) error {
	return t.db.Read(txOrNil, func(reader Reader) error {
		ds := build(reader.From(t.tableName).Prepared(true))
		if !pagination.Unlimited() {
			ds = ds.Offset(pagination.Offset()).Limit(pagination.Limit())
		}
		query, args, err := ds.ToSQL()
		if err != nil {
			return errors.Wrap(err, "error generating list query")
		}
		err = reader.ScanStructsContext(ctx, dest, query, args...)
		if err != nil {
			return t.MakeStandardDBError(err)
		}
		return nil
	})
}

// Count returns the number of rows matching the specified where clauses.
func (t *Table) Count(ctx context.Context, txOrNil *Tx, expressions ...exp.Expression) (int64, error) {
	var count int64
	err := t.db.Read(txOrNil, func(reader Reader) error {
		query, args, err := reader.
			From(t.tableName).
			Prepared(true).
			Select(goqu.COUNT(goqu.Star())).
			Where(expressions...).
			ToSQL()
		if err != nil {
			return errors.Wrap(err, "error generating count query")
		}
		_, err = reader.ScanValContext(ctx, &count, query, args...)
		if err != nil {
			return t.MakeStandardDBError(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MakeStandardDBError converts well-known database driver errors into their
// coded equivalents, so callers can react to e.g. unique constraint
// violations without knowing which driver is underneath.
func (t *Table) MakeStandardDBError(err error) error {
	if err == nil {
		return nil
	}
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return gerror.NewErrAlreadyExists("Already Exists").Wrap(err)
		}
	}
	if pqErr, ok := err.(*pq.Error); ok {
		// unique_violation
		if pqErr.Code == "23505" {
			return gerror.NewErrAlreadyExists("Already Exists").Wrap(err)
		}
	}
	if err == sql.ErrNoRows || strings.Contains(err.Error(), sql.ErrNoRows.Error()) {
		return gerror.NewErrNotFound("Not Found").Wrap(err)
	}
	return err
}
