package borrowings

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"LEMS-backend/internal/equipment/items"
	"LEMS-backend/internal/platform/api"
	"LEMS-backend/internal/platform/db"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const borrowCols = `b.borrow_id, b.borrow_ulid, b.item_id, i.item_ulid, b.quantity, b.borrower_id,
	b.status, b.requested_at, b.intended_borrow_date, b.intended_return_date,
	b.approved_at, b.released_at, b.returned_at, b.admin_remarks, b.created_at, b.updated_at`

const borrowFrom = ` FROM borrowings b JOIN equipment_items i ON i.item_id = b.item_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBorrowing(r rowScanner) (*Borrowing, error) {
	var b Borrowing
	err := r.Scan(
		&b.BorrowID, &b.BorrowULID, &b.ItemID, &b.ItemULID, &b.Quantity, &b.BorrowerID,
		&b.Status, &b.RequestedAt, &b.IntendedBorrowDate, &b.IntendedReturnDate,
		&b.ApprovedAt, &b.ReleasedAt, &b.ReturnedAt, &b.AdminRemarks, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ロック順は常に 貸出行 → 台帳行。逆順のパスを作るとデッドロックする。
func lockBorrowTx(ctx context.Context, tx db.DBTX, borrowID int64) (*Borrowing, error) {
	q := `SELECT ` + borrowCols + borrowFrom + ` WHERE b.borrow_id = ? FOR UPDATE`
	b, err := scanBorrowing(tx.QueryRowContext(ctx, q, borrowID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, api.ErrNotFound("borrowing not found")
		}
		return nil, err
	}
	return b, nil
}

// ===== package-level Tx helpers（returns パッケージからも使う） =====

// SettleTx は貸出を returned で閉じ、台帳へ返す。既に returned なら何もしない
// （冪等）。戻り値は実際に台帳へ戻した数。
func SettleTx(ctx context.Context, tx db.DBTX, borrowID int64, now time.Time) (int, error) {
	b, err := lockBorrowTx(ctx, tx, borrowID)
	if err != nil {
		return 0, err
	}
	if b.Status == StatusReturned {
		return 0, nil
	}
	if !CanTransition(b.Status, StatusReturned) {
		return 0, api.ErrConflict(fmt.Sprintf("borrowing is %s, cannot be returned", b.Status))
	}

	it, err := items.LockTx(ctx, tx, b.ItemID)
	if err != nil {
		return 0, err
	}
	credit := applyReturn(it, b.Quantity)
	if err := items.SaveLedgerTx(ctx, tx, it); err != nil {
		return 0, err
	}

	const q = `UPDATE borrowings SET status = ?, returned_at = ? WHERE borrow_id = ?`
	if _, err := tx.ExecContext(ctx, q, StatusReturned, now, borrowID); err != nil {
		return 0, err
	}
	return credit, nil
}

// RequestReturnTx: 返却審査待ちへ。台帳は動かさない。
func RequestReturnTx(ctx context.Context, tx db.DBTX, borrowID int64) error {
	b, err := lockBorrowTx(ctx, tx, borrowID)
	if err != nil {
		return err
	}
	if b.Status == StatusReturnRequested {
		return nil
	}
	if !CanTransition(b.Status, StatusReturnRequested) {
		return api.ErrConflict(fmt.Sprintf("borrowing is %s, cannot enter return review", b.Status))
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE borrowings SET status = ? WHERE borrow_id = ?`, StatusReturnRequested, borrowID)
	return err
}

// ReopenTx: 返却却下。return_requested から released へ戻す。
func ReopenTx(ctx context.Context, tx db.DBTX, borrowID int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE borrowings SET status = ? WHERE borrow_id = ? AND status = ?`,
		StatusReleased, borrowID, StatusReturnRequested)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return api.ErrConflict("borrowing is not awaiting return review")
	}
	return nil
}

// ===== Store methods =====

func (s *Store) ResolveItem(ctx context.Context, itemULID string) (*items.Item, error) {
	return items.NewStore(s.db).GetByULID(ctx, itemULID)
}

func (s *Store) Insert(ctx context.Context, b *Borrowing) error {
	const q = `
	INSERT INTO borrowings
	(borrow_ulid, item_id, quantity, borrower_id, status, requested_at,
	 intended_borrow_date, intended_return_date, admin_remarks)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		b.BorrowULID, b.ItemID, b.Quantity, b.BorrowerID, b.Status, b.RequestedAt,
		b.IntendedBorrowDate, b.IntendedReturnDate, b.AdminRemarks,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	b.BorrowID = id
	return nil
}

func (s *Store) GetByULID(ctx context.Context, ulid string) (*Borrowing, error) {
	q := `SELECT ` + borrowCols + borrowFrom + ` WHERE b.borrow_ulid = ?`
	b, err := scanBorrowing(s.db.QueryRowContext(ctx, q, ulid))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, api.ErrNotFound("borrowing not found")
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) List(ctx context.Context, f Filter, p Page) ([]Borrowing, int64, error) {
	where := strings.Builder{}
	where.WriteString(` WHERE 1=1`)
	args := []any{}
	if f.BorrowerID != nil {
		where.WriteString(` AND b.borrower_id = ?`)
		args = append(args, *f.BorrowerID)
	}
	if f.ItemULID != nil {
		where.WriteString(` AND i.item_ulid = ?`)
		args = append(args, *f.ItemULID)
	}
	if f.Status != nil {
		where.WriteString(` AND b.status = ?`)
		args = append(args, *f.Status)
	}
	if f.OnlyActive {
		where.WriteString(` AND b.status IN ('approved','released','return_requested','overdue')`)
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

	// rows と total を同一スナップショットで読む
	var out []Borrowing
	var total int64
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		q := fmt.Sprintf(`SELECT `+borrowCols+borrowFrom+`%s ORDER BY b.requested_at %s LIMIT ? OFFSET ?`,
			where.String(), order)
		rows, err := tx.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			b, err := scanBorrowing(rows)
			if err != nil {
				return err
			}
			out = append(out, *b)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		cq := `SELECT COUNT(*)` + borrowFrom + where.String()
		return tx.QueryRowContext(ctx, cq, args...).Scan(&total)
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Approve は在庫チェックと引当を同一Txで行う。
// available のチェックはロック済み台帳行に対して行われるため、並行する承認が
// 同じ在庫を二重に引き当てることはない。
func (s *Store) Approve(ctx context.Context, borrowID int64, now time.Time) (*Borrowing, error) {
	var out *Borrowing
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		b, err := lockBorrowTx(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		if !CanTransition(b.Status, StatusApproved) {
			return api.ErrConflict(fmt.Sprintf("borrowing is %s, cannot be approved", b.Status))
		}

		it, err := items.LockTx(ctx, tx, b.ItemID)
		if err != nil {
			return err
		}
		if err := applyApprove(it, b.Quantity); err != nil {
			return err
		}
		if err := items.SaveLedgerTx(ctx, tx, it); err != nil {
			return err
		}

		const q = `UPDATE borrowings SET status = ?, approved_at = ? WHERE borrow_id = ?`
		if _, err := tx.ExecContext(ctx, q, StatusApproved, now, borrowID); err != nil {
			return err
		}
		b.Status = StatusApproved
		b.ApprovedAt = sql.NullTime{Time: now, Valid: true}
		out = b
		return nil
	})
	return out, err
}

// SetStatus は台帳に影響しない遷移（reject / release）用。
// 遷移表（CanTransition）をロック済みの現在値に当てるので、競合したリクエストは 409 になる。
func (s *Store) SetStatus(ctx context.Context, borrowID int64, to Status, remarks *string, now time.Time) (*Borrowing, error) {
	var out *Borrowing
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		b, err := lockBorrowTx(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		if !CanTransition(b.Status, to) {
			return api.ErrConflict(fmt.Sprintf("borrowing is %s, cannot move to %s", b.Status, to))
		}

		set := `status = ?`
		args := []any{to}
		if to == StatusReleased {
			set += `, released_at = ?`
			args = append(args, now)
		}
		if remarks != nil {
			set += `, admin_remarks = ?`
			args = append(args, *remarks)
		}
		args = append(args, borrowID)
		if _, err := tx.ExecContext(ctx, `UPDATE borrowings SET `+set+` WHERE borrow_id = ?`, args...); err != nil {
			return err
		}
		b.Status = to
		if to == StatusReleased {
			b.ReleasedAt = sql.NullTime{Time: now, Valid: true}
		}
		if remarks != nil {
			b.AdminRemarks = sql.NullString{String: *remarks, Valid: true}
		}
		out = b
		return nil
	})
	return out, err
}

// Return は返却確定。冪等（既に returned なら台帳へは触れない）。
func (s *Store) Return(ctx context.Context, borrowID int64, now time.Time) (*Borrowing, error) {
	var out *Borrowing
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := SettleTx(ctx, tx, borrowID, now); err != nil {
			return err
		}
		b, err := lockBorrowTx(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// Delete はアクティブな貸出なら先に台帳を復元してから行を消す。
// 復元せずに消すと borrowed バケットが宙に浮く。
func (s *Store) Delete(ctx context.Context, borrowID int64, now time.Time) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		b, err := lockBorrowTx(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		if b.Status.Active() {
			if _, err := SettleTx(ctx, tx, borrowID, now); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM borrowings WHERE borrow_id = ?`, borrowID)
		return err
	})
}
