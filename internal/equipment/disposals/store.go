package disposals

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"LEMS-backend/internal/equipment/items"
	"LEMS-backend/internal/platform/api"
	"LEMS-backend/internal/platform/db"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const dispCols = `d.disposal_id, d.disposal_ulid, d.item_id, i.item_ulid, d.quantity,
	d.salvage_value, d.status, d.reason, d.disposed_at, d.created_at, d.updated_at`

const dispFrom = ` FROM disposal_records d JOIN equipment_items i ON i.item_id = d.item_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDisposal(r rowScanner) (*Disposal, error) {
	var d Disposal
	err := r.Scan(
		&d.DisposalID, &d.DisposalULID, &d.ItemID, &d.ItemULID, &d.Quantity,
		&d.SalvageValue, &d.Status, &d.Reason, &d.DisposedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ロック順は常に 廃棄行 → 台帳行（他のワークフローと同じ規約）
func lockDisposalTx(ctx context.Context, tx db.DBTX, dispID int64) (*Disposal, error) {
	q := `SELECT ` + dispCols + dispFrom + ` WHERE d.disposal_id = ? FOR UPDATE`
	d, err := scanDisposal(tx.QueryRowContext(ctx, q, dispID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, api.ErrNotFound("disposal record not found")
		}
		return nil, err
	}
	return d, nil
}

func (s *Store) ResolveItem(ctx context.Context, itemULID string) (*items.Item, error) {
	return items.NewStore(s.db).GetByULID(ctx, itemULID)
}

// Insert は廃棄記録と台帳からの引き落としを同一Txで行う
func (s *Store) Insert(ctx context.Context, d *Disposal) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		it, err := items.LockTx(ctx, tx, d.ItemID)
		if err != nil {
			return err
		}
		if err := applyDispose(it, d.Quantity); err != nil {
			return err
		}
		if err := items.SaveLedgerTx(ctx, tx, it); err != nil {
			return err
		}

		const q = `
		INSERT INTO disposal_records
		(disposal_ulid, item_id, quantity, salvage_value, status, reason, disposed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, q,
			d.DisposalULID, d.ItemID, d.Quantity, d.SalvageValue, d.Status, d.Reason, d.DisposedAt,
		)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		d.DisposalID = id
		return nil
	})
}

func (s *Store) GetByULID(ctx context.Context, ulid string) (*Disposal, error) {
	q := `SELECT ` + dispCols + dispFrom + ` WHERE d.disposal_ulid = ?`
	d, err := scanDisposal(s.db.QueryRowContext(ctx, q, ulid))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, api.ErrNotFound("disposal record not found")
		}
		return nil, err
	}
	return d, nil
}

func (s *Store) List(ctx context.Context, f Filter, p Page) ([]Disposal, int64, error) {
	where := strings.Builder{}
	where.WriteString(` WHERE 1=1`)
	args := []any{}
	if f.ItemULID != nil {
		where.WriteString(` AND i.item_ulid = ?`)
		args = append(args, *f.ItemULID)
	}
	if f.Status != nil {
		where.WriteString(` AND d.status = ?`)
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

	q := fmt.Sprintf(`SELECT `+dispCols+dispFrom+`%s ORDER BY d.disposed_at %s LIMIT ? OFFSET ?`,
		where.String(), order)
	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Disposal
	for rows.Next() {
		d, err := scanDisposal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	cq := `SELECT COUNT(*)` + dispFrom + where.String()
	if err := s.db.QueryRowContext(ctx, cq, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update はステータス確定・取消とメタデータ更新。
// Cancelled だけが台帳を動かす（廃棄の取消 = 総数と available の復元）。
func (s *Store) Update(ctx context.Context, dispID int64, in UpdateDisposalRequest) (*Disposal, error) {
	var out *Disposal
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		d, err := lockDisposalTx(ctx, tx, dispID)
		if err != nil {
			return err
		}

		if in.Status != nil {
			switch Status(*in.Status) {
			case StatusCompleted:
				if d.Status != StatusPending {
					return api.ErrConflict(fmt.Sprintf("disposal is %s, not pending", d.Status))
				}
				d.Status = StatusCompleted
			case StatusCancelled:
				if !d.Status.Reversible() {
					return api.ErrConflict(fmt.Sprintf("disposal is %s and can no longer be cancelled", d.Status))
				}
				it, err := items.LockTx(ctx, tx, d.ItemID)
				if err != nil {
					return err
				}
				if err := applyReverse(it, d.Quantity); err != nil {
					return err
				}
				if err := items.SaveLedgerTx(ctx, tx, it); err != nil {
					return err
				}
				d.Status = StatusCancelled
			default:
				return api.ErrInvalid("status must be Completed or Cancelled")
			}
		}

		if in.SalvageValue != nil {
			dec, err := parseMoney(in.SalvageValue)
			if err != nil {
				return api.ErrInvalid("salvage_value must be a decimal string")
			}
			d.SalvageValue = dec
		}
		if in.Reason != nil {
			d.Reason = sql.NullString{String: *in.Reason, Valid: *in.Reason != ""}
		}

		const q = `UPDATE disposal_records SET status = ?, salvage_value = ?, reason = ?
			WHERE disposal_id = ?`
		if _, err := tx.ExecContext(ctx, q, d.Status, d.SalvageValue, d.Reason, dispID); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

// Delete は未確定の廃棄なら台帳を復元してから行を消す。
// Completed の削除は監査記録の抹消になるため拒否する。
func (s *Store) Delete(ctx context.Context, dispID int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		d, err := lockDisposalTx(ctx, tx, dispID)
		if err != nil {
			return err
		}
		if d.Status == StatusCompleted {
			return api.ErrConflict("completed disposal cannot be deleted")
		}
		if d.Status.Reversible() {
			it, err := items.LockTx(ctx, tx, d.ItemID)
			if err != nil {
				return err
			}
			if err := applyReverse(it, d.Quantity); err != nil {
				return err
			}
			if err := items.SaveLedgerTx(ctx, tx, it); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM disposal_records WHERE disposal_id = ?`, dispID)
		return err
	})
}
