package returns

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"LEMS-backend/internal/equipment/borrowings"
	"LEMS-backend/internal/platform/api"
	"LEMS-backend/internal/platform/db"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const returnCols = `r.return_id, r.return_ulid, r.borrow_id, b.borrow_ulid, r.damage_severity,
	r.penalty_fee, r.damage_fee, r.total_fee, r.late_days, r.is_fee_paid,
	r.status, r.notes, r.returned_at, r.created_at, r.updated_at`

const returnFrom = ` FROM return_records r JOIN borrowings b ON b.borrow_id = r.borrow_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReturn(rs rowScanner) (*Return, error) {
	var r Return
	err := rs.Scan(
		&r.ReturnID, &r.ReturnULID, &r.BorrowID, &r.BorrowULID, &r.DamageSeverity,
		&r.PenaltyFee, &r.DamageFee, &r.TotalFee, &r.LateDays, &r.IsFeePaid,
		&r.Status, &r.Notes, &r.ReturnedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ロック順は 返却行 → 貸出行 → 台帳行。SettleTx が後半2つを同じ順で取る。
func lockReturnTx(ctx context.Context, tx db.DBTX, returnID int64) (*Return, error) {
	q := `SELECT ` + returnCols + returnFrom + ` WHERE r.return_id = ? FOR UPDATE`
	r, err := scanReturn(tx.QueryRowContext(ctx, q, returnID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, api.ErrNotFound("return record not found")
		}
		return nil, err
	}
	return r, nil
}

func (s *Store) ResolveBorrowing(ctx context.Context, borrowULID string) (*borrowings.Borrowing, error) {
	return borrowings.NewStore(s.db).GetByULID(ctx, borrowULID)
}

// InsertAdjudicated は返却記録の作成と貸出の決着を同一Txで行う。
// 判定結果が approved / completed なら貸出を閉じて台帳へ返し、
// pending なら貸出を審査待ち（return_requested）にして台帳は動かさない。
func (s *Store) InsertAdjudicated(ctx context.Context, r *Return, now time.Time) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if r.Status.Settled() {
			credit, err := borrowings.SettleTx(ctx, tx, r.BorrowID, now)
			if err != nil {
				return err
			}
			// SettleTx は決着済みの貸出には no-op で 0 を返す。Active チェックを
			// 同時に通過した2件目の返却がここで止まる。
			if credit == 0 {
				return api.ErrConflict("borrowing has already been returned")
			}
		} else {
			if err := borrowings.RequestReturnTx(ctx, tx, r.BorrowID); err != nil {
				return err
			}
		}

		const q = `
		INSERT INTO return_records
		(return_ulid, borrow_id, damage_severity, penalty_fee, damage_fee, total_fee,
		 late_days, is_fee_paid, status, notes, returned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, q,
			r.ReturnULID, r.BorrowID, r.DamageSeverity, r.PenaltyFee, r.DamageFee, r.TotalFee,
			r.LateDays, r.IsFeePaid, r.Status, r.Notes, r.ReturnedAt,
		)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		r.ReturnID = id
		return nil
	})
}

func (s *Store) GetByULID(ctx context.Context, ulid string) (*Return, error) {
	q := `SELECT ` + returnCols + returnFrom + ` WHERE r.return_ulid = ?`
	r, err := scanReturn(s.db.QueryRowContext(ctx, q, ulid))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, api.ErrNotFound("return record not found")
		}
		return nil, err
	}
	return r, nil
}

func (s *Store) List(ctx context.Context, f Filter, p Page) ([]Return, int64, error) {
	where := strings.Builder{}
	where.WriteString(` WHERE 1=1`)
	args := []any{}
	if f.BorrowULID != nil {
		where.WriteString(` AND b.borrow_ulid = ?`)
		args = append(args, *f.BorrowULID)
	}
	if f.Status != nil {
		where.WriteString(` AND r.status = ?`)
		args = append(args, *f.Status)
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
	var out []Return
	var total int64
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		q := fmt.Sprintf(`SELECT `+returnCols+returnFrom+`%s ORDER BY r.returned_at %s LIMIT ? OFFSET ?`,
			where.String(), order)
		rows, err := tx.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanReturn(rows)
			if err != nil {
				return err
			}
			out = append(out, *r)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		cq := `SELECT COUNT(*)` + returnFrom + where.String()
		return tx.QueryRowContext(ctx, cq, args...).Scan(&total)
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// decisionFn は apply 済みの返却記録を受けて遷移先を決める。
// 台帳系の副作用（SettleTx / ReopenTx）は遷移の内容に応じてここで起こす。
type decisionFn func(r *Return) (Status, error)

// UpdateDecision は管理者裁定の確定。未決着 → approved/completed への遷移で
// 貸出を閉じ、rejected への遷移で貸出を released へ戻す。
func (s *Store) UpdateDecision(ctx context.Context, returnID int64, intendedReturn sql.NullTime,
	apply func(r *Return) error, decide decisionFn, now time.Time) (*Return, error) {

	var out *Return
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		r, err := lockReturnTx(ctx, tx, returnID)
		if err != nil {
			return err
		}

		wasSettled := r.Status.Settled()
		if err := apply(r); err != nil {
			return err
		}
		r.recompute(intendedReturn.Time, intendedReturn.Valid)

		next, err := decide(r)
		if err != nil {
			return err
		}

		switch {
		case next.Settled() && !wasSettled:
			credit, err := borrowings.SettleTx(ctx, tx, r.BorrowID, now)
			if err != nil {
				return err
			}
			// 同じ貸出の別の返却記録が先に決着していたら承認できない
			if credit == 0 {
				return api.ErrConflict("borrowing has already been returned")
			}
		case next == StatusRejected:
			if wasSettled {
				return api.ErrConflict("return already settled the borrowing and cannot be rejected")
			}
			if err := borrowings.ReopenTx(ctx, tx, r.BorrowID); err != nil {
				return err
			}
		}
		r.Status = next

		const q = `UPDATE return_records SET damage_severity = ?, penalty_fee = ?, damage_fee = ?,
			total_fee = ?, late_days = ?, is_fee_paid = ?, status = ?, notes = ?
			WHERE return_id = ?`
		if _, err := tx.ExecContext(ctx, q,
			r.DamageSeverity, r.PenaltyFee, r.DamageFee, r.TotalFee,
			r.LateDays, r.IsFeePaid, r.Status, r.Notes, returnID,
		); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// IntendedReturnDate は裁定時の late_days 再計算に使う期限を引く。
func (s *Store) IntendedReturnDate(ctx context.Context, borrowID int64) (sql.NullTime, error) {
	var t sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT intended_return_date FROM borrowings WHERE borrow_id = ?`, borrowID).Scan(&t)
	if err != nil {
		if err == sql.ErrNoRows {
			return t, api.ErrNotFound("borrowing not found")
		}
		return t, err
	}
	return t, nil
}
