package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mysql "github.com/go-sql-driver/mysql"

	"LEMS-backend/internal/platform/api"
	"LEMS-backend/internal/platform/db"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// CONDITION はMySQLの予約語なのでカラム名は item_condition にしている
const itemCols = `item_id, item_ulid, name, category, location,
	quantity, available_quantity, borrowed_quantity, maintenance_quantity, disposal_quantity,
	item_condition, status, can_be_borrowed, is_disposed, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (*Item, error) {
	var it Item
	err := r.Scan(
		&it.ItemID, &it.ItemULID, &it.Name, &it.Category, &it.Location,
		&it.Quantity, &it.Available, &it.Borrowed, &it.Maintenance, &it.Disposed,
		&it.Condition, &it.Status, &it.CanBeBorrowed, &it.IsDisposed, &it.Notes,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// ===== package-level Tx helpers =====
// 貸出・保守・廃棄・返却の各ストアはこの3つを通して台帳行を触る。

// LockTx は台帳行を FOR UPDATE で取得する。check-then-write をこのロック内で
// 行うことで同一機材への並行更新を直列化する。
func LockTx(ctx context.Context, tx db.DBTX, itemID int64) (*Item, error) {
	q := `SELECT ` + itemCols + ` FROM equipment_items WHERE item_id = ? FOR UPDATE`
	it, err := scanItem(tx.QueryRowContext(ctx, q, itemID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, api.ErrNotFound("equipment not found")
		}
		return nil, err
	}
	return it, nil
}

// SaveLedgerTx は LockTx で取得・変更した台帳をまとめて書き戻す。
// 必ず Reconcile 済みの Item を渡すこと。
func SaveLedgerTx(ctx context.Context, tx db.DBTX, it *Item) error {
	if err := it.Check(); err != nil {
		return err
	}
	const q = `
	UPDATE equipment_items SET
		quantity = ?, available_quantity = ?, borrowed_quantity = ?,
		maintenance_quantity = ?, disposal_quantity = ?,
		item_condition = ?, status = ?, is_disposed = ?
	WHERE item_id = ?`
	// 値が全て同一だと RowsAffected=0 になるので件数では判定しない
	_, err := tx.ExecContext(ctx, q,
		it.Quantity, it.Available, it.Borrowed, it.Maintenance, it.Disposed,
		it.Condition, it.Status, it.IsDisposed, it.ItemID,
	)
	return err
}

// ResolveIDTx: item_ulid -> item_id
func ResolveIDTx(ctx context.Context, q db.DBTX, ulid string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT item_id FROM equipment_items WHERE item_ulid = ?`, ulid).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, api.ErrNotFound("equipment not found")
		}
		return 0, err
	}
	return id, nil
}

// ===== CRUD =====

func (s *Store) Insert(ctx context.Context, it *Item) error {
	const q = `
	INSERT INTO equipment_items
	(item_ulid, name, category, location,
	 quantity, available_quantity, borrowed_quantity, maintenance_quantity, disposal_quantity,
	 item_condition, status, can_be_borrowed, is_disposed, notes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		it.ItemULID, it.Name, it.Category, it.Location,
		it.Quantity, it.Available, it.Borrowed, it.Maintenance, it.Disposed,
		it.Condition, it.Status, it.CanBeBorrowed, it.IsDisposed, it.Notes,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return api.ErrConflict("item_ulid already exists")
		}
		return err
	}
	id, _ := res.LastInsertId()
	it.ItemID = id
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	q := `SELECT ` + itemCols + ` FROM equipment_items WHERE item_id = ?`
	it, err := scanItem(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, api.ErrNotFound("equipment not found")
		}
		return nil, err
	}
	return it, nil
}

func (s *Store) GetByULID(ctx context.Context, ulid string) (*Item, error) {
	q := `SELECT ` + itemCols + ` FROM equipment_items WHERE item_ulid = ?`
	it, err := scanItem(s.db.QueryRowContext(ctx, q, ulid))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, api.ErrNotFound("equipment not found")
		}
		return nil, err
	}
	return it, nil
}

func (s *Store) List(ctx context.Context, f ItemFilter, p Page) ([]Item, int64, error) {
	where := strings.Builder{}
	where.WriteString(` WHERE 1=1`)
	args := []any{}
	if f.Query != nil {
		where.WriteString(` AND name LIKE ?`)
		args = append(args, "%"+*f.Query+"%")
	}
	if f.Status != nil {
		where.WriteString(` AND status = ?`)
		args = append(args, *f.Status)
	}
	if f.Condition != nil {
		where.WriteString(` AND item_condition = ?`)
		args = append(args, *f.Condition)
	}
	if f.Borrowable != nil {
		where.WriteString(` AND can_be_borrowed = ?`)
		args = append(args, *f.Borrowable)
	}

	order := "DESC"
	if strings.ToLower(p.Order) == "asc" {
		order = "ASC"
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	q := fmt.Sprintf(`SELECT `+itemCols+` FROM equipment_items%s ORDER BY created_at %s LIMIT ? OFFSET ?`,
		where.String(), order)
	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	cq := `SELECT COUNT(*) FROM equipment_items` + where.String()
	if err := s.db.QueryRowContext(ctx, cq, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update はロック下で apply を実行して書き戻す。台帳フィールドを触る場合も
// apply 内で Ledger 経由の操作に限ること。
func (s *Store) Update(ctx context.Context, id int64, apply func(*Item) error) (*Item, error) {
	var out *Item
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		it, err := LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := apply(it); err != nil {
			return err
		}
		const q = `
		UPDATE equipment_items SET
			name = ?, category = ?, location = ?, notes = ?, can_be_borrowed = ?,
			quantity = ?, available_quantity = ?, borrowed_quantity = ?,
			maintenance_quantity = ?, disposal_quantity = ?,
			item_condition = ?, status = ?, is_disposed = ?
		WHERE item_id = ?`
		if _, err := tx.ExecContext(ctx, q,
			it.Name, it.Category, it.Location, it.Notes, it.CanBeBorrowed,
			it.Quantity, it.Available, it.Borrowed, it.Maintenance, it.Disposed,
			it.Condition, it.Status, it.IsDisposed, it.ItemID,
		); err != nil {
			return err
		}
		out = it
		return nil
	})
	return out, err
}

// Delete は未完了の貸出・保守が参照している機材を消させない
func (s *Store) Delete(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := LockTx(ctx, tx, id); err != nil {
			return err
		}
		var n int64
		const bq = `SELECT COUNT(*) FROM borrowings
			WHERE item_id = ? AND status IN ('approved','released','return_requested','overdue')`
		if err := tx.QueryRowContext(ctx, bq, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return api.ErrConflict("equipment has active borrowings")
		}
		const mq = `SELECT COUNT(*) FROM maintenance_records
			WHERE item_id = ? AND status IN ('Scheduled','In Progress','Overdue')`
		if err := tx.QueryRowContext(ctx, mq, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return api.ErrConflict("equipment has outstanding maintenance")
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM equipment_items WHERE item_id = ?`, id)
		return err
	})
}
