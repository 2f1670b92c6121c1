package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"remoteworks-cleaner/internal/models/entities"
	"remoteworks-cleaner/internal/models/ports"
	"remoteworks-cleaner/internal/pkg/fieldcodec"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Repository хранит документы всех коллекций в одной таблице documents
type Repository struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *zap.Logger
}

// NewRepository создает новый экземпляр SQL-хранилища документов
func NewRepository(db *sqlx.DB, dialect Dialect, logger *zap.Logger) *Repository {
	return &Repository{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

type documentRow struct {
	ID   string `db:"id"`
	Data string `db:"data"`
}

// EnsureSchema создает таблицу документов, если ее нет
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.createTable); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

// EnsureIndex создает индекс по полю документа, используемому в предикатах
func (r *Repository) EnsureIndex(ctx context.Context, field string) error {
	if !isValidIdentifier(field) {
		return fmt.Errorf("invalid field name: %s", field)
	}

	query := fmt.Sprintf("CREATE INDEX IF NOT EXISTS documents_%s_idx ON documents (collection, %s)",
		strings.ToLower(field), r.dialect.indexExpr(field))
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create index on %s: %w", field, err)
	}
	return nil
}

// Put создает или перезаписывает документ
func (r *Repository) Put(ctx context.Context, rec entities.Record) error {
	data, err := fieldcodec.Encode(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Ref(), err)
	}

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(r.dialect.upsert), rec.Collection, rec.ID, string(data)); err != nil {
		return fmt.Errorf("put %s: %w", rec.Ref(), err)
	}
	return nil
}

// Query возвращает документы коллекции, удовлетворяющие предикату
func (r *Repository) Query(ctx context.Context, collection string, pred entities.Predicate) ([]entities.Record, error) {
	where, arg, err := r.condition(pred)
	if err != nil {
		return nil, err
	}

	query := r.db.Rebind("SELECT id, data FROM documents WHERE collection = ? AND " + where + " ORDER BY id")

	var rows []documentRow
	if err := r.db.SelectContext(ctx, &rows, query, collection, arg); err != nil {
		return nil, fmt.Errorf("execute select query: %w", err)
	}

	records := make([]entities.Record, 0, len(rows))
	for _, row := range rows {
		fields, err := fieldcodec.Decode([]byte(row.Data))
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, row.ID, err)
		}
		records = append(records, entities.Record{Collection: collection, ID: row.ID, Fields: fields})
	}
	return records, nil
}

// Get возвращает документ по ссылке
func (r *Repository) Get(ctx context.Context, ref entities.RecordRef) (*entities.Record, error) {
	var row documentRow
	err := r.db.GetContext(ctx, &row,
		r.db.Rebind("SELECT id, data FROM documents WHERE collection = ? AND id = ?"),
		ref.Collection, ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}

	fields, err := fieldcodec.Decode([]byte(row.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	return &entities.Record{Collection: ref.Collection, ID: ref.ID, Fields: fields}, nil
}

// Update сливает поля в существующий документ
func (r *Repository) Update(ctx context.Context, ref entities.RecordRef, fields map[string]any) error {
	return r.Commit(ctx, []entities.WriteOp{entities.UpdateOp(ref, fields)})
}

// Commit применяет пакет операций в одной транзакции
func (r *Repository) Commit(ctx context.Context, ops []entities.WriteOp) (err error) {
	if len(ops) > entities.MaxBatchCapacity {
		return fmt.Errorf("%d ops: %w", len(ops), ports.ErrBatchTooLarge)
	}

	// Начинаем транзакцию с уровнем изоляции READ COMMITTED
	tx, err := r.db.BeginTxx(ctx, r.txOptions())
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	deleteQuery := tx.Rebind("DELETE FROM documents WHERE collection = ? AND id = ?")
	mergeQuery := tx.Rebind(r.dialect.merge)

	for _, op := range ops {
		switch op.Kind {
		case entities.OpDelete:
			if _, err = tx.ExecContext(ctx, deleteQuery, op.Ref.Collection, op.Ref.ID); err != nil {
				return fmt.Errorf("delete %s: %w", op.Ref, err)
			}
		case entities.OpUpdate:
			if err = r.merge(ctx, tx, mergeQuery, op); err != nil {
				return err
			}
		default:
			err = fmt.Errorf("unsupported operation %q", op.Kind)
			return err
		}
	}

	// Завершаем транзакцию
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) merge(ctx context.Context, tx *sqlx.Tx, query string, op entities.WriteOp) error {
	patch, err := fieldcodec.Encode(op.Fields)
	if err != nil {
		return fmt.Errorf("encode update %s: %w", op.Ref, err)
	}

	res, err := tx.ExecContext(ctx, query, string(patch), op.Ref.Collection, op.Ref.ID)
	if err != nil {
		return fmt.Errorf("update %s: %w", op.Ref, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", op.Ref, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s: %w", op.Ref, ports.ErrRecordNotFound)
	}
	return nil
}

func (r *Repository) txOptions() *sql.TxOptions {
	// SQLite поддерживает только сериализуемые транзакции
	if r.dialect.Name == SQLite.Name {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

// condition строит условие WHERE и аргумент для предиката
func (r *Repository) condition(pred entities.Predicate) (string, any, error) {
	if !isValidIdentifier(pred.Field) {
		return "", nil, fmt.Errorf("invalid field name: %s", pred.Field)
	}

	op, err := sqlOperator(pred.Operator)
	if err != nil {
		return "", nil, err
	}

	switch v := pred.Value.(type) {
	case time.Time:
		return r.dialect.textExpr(pred.Field) + " " + op + " ?", fieldcodec.EncodeValue(v), nil
	case string:
		return r.dialect.textExpr(pred.Field) + " " + op + " ?", v, nil
	case bool:
		return r.dialect.boolExpr(pred.Field) + " " + op + " ?", r.dialect.boolArg(v), nil
	}

	if _, ok := entities.Compare(pred.Value, 0); ok {
		return r.dialect.numberExpr(pred.Field) + " " + op + " ?", pred.Value, nil
	}
	return "", nil, fmt.Errorf("unsupported predicate value type %T", pred.Value)
}

func sqlOperator(op entities.Operator) (string, error) {
	switch op {
	case entities.OpEqual:
		return "=", nil
	case entities.OpLess, entities.OpLessEqual, entities.OpGreater, entities.OpGreaterEqual:
		return string(op), nil
	}
	return "", fmt.Errorf("unsupported operator %q", op)
}

// isValidIdentifier проверяет, что имя поля безопасно подставлять в SQL
func isValidIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, char := range name {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9' && i > 0) ||
			char == '_') {
			return false
		}
	}
	return true
}
