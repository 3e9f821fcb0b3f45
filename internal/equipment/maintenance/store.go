package maintenance

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

const maintCols = `m.maintenance_id, m.maintenance_ulid, m.item_id, i.item_ulid, m.kind,
	m.quantity, m.maintained_quantity, m.status, m.scheduled_at, m.due_date,
	m.next_maintenance, m.completed_at, m.assignee_id, m.notes, m.created_at, m.updated_at`

const maintFrom = ` FROM maintenance_records m JOIN equipment_items i ON i.item_id = m.item_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(r rowScanner) (*MaintenanceRecord, error) {
	var m MaintenanceRecord
	err := r.Scan(
		&m.MaintenanceID, &m.MaintenanceULID, &m.ItemID, &m.ItemULID, &m.Kind,
		&m.Quantity, &m.MaintainedQuantity, &m.Status, &m.ScheduledAt, &m.DueDate,
		&m.NextMaintenance, &m.CompletedAt, &m.AssigneeID, &m.Notes, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ロック順は常に ジョブ行 → 台帳行（borrowings と同じ規約）
func lockRecordTx(ctx context.Context, tx db.DBTX, maintID int64) (*MaintenanceRecord, error) {
	q := `SELECT ` + maintCols + maintFrom + ` WHERE m.maintenance_id = ? FOR UPDATE`
	m, err := scanRecord(tx.QueryRowContext(ctx, q, maintID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, api.ErrNotFound("maintenance record not found")
		}
		return nil, err
	}
	return m, nil
}

func (s *Store) ResolveItem(ctx context.Context, itemULID string) (*items.Item, error) {
	return items.NewStore(s.db).GetByULID(ctx, itemULID)
}

// Insert はジョブ登録と available -> maintenance の引当を同一Txで行う
func (s *Store) Insert(ctx context.Context, m *MaintenanceRecord) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		it, err := items.LockTx(ctx, tx, m.ItemID)
		if err != nil {
			return err
		}
		if err := applySchedule(it, m.Quantity); err != nil {
			return err
		}
		if err := items.SaveLedgerTx(ctx, tx, it); err != nil {
			return err
		}

		const q = `
		INSERT INTO maintenance_records
		(maintenance_ulid, item_id, kind, quantity, maintained_quantity, status,
		 scheduled_at, due_date, next_maintenance, assignee_id, notes)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, q,
			m.MaintenanceULID, m.ItemID, m.Kind, m.Quantity, m.Status,
			m.ScheduledAt, m.DueDate, m.NextMaintenance, m.AssigneeID, m.Notes,
		)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		m.MaintenanceID = id
		return nil
	})
}

func (s *Store) GetByULID(ctx context.Context, ulid string) (*MaintenanceRecord, error) {
	q := `SELECT ` + maintCols + maintFrom + ` WHERE m.maintenance_ulid = ?`
	m, err := scanRecord(s.db.QueryRowContext(ctx, q, ulid))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, api.ErrNotFound("maintenance record not found")
		}
		return nil, err
	}
	return m, nil
}

func (s *Store) List(ctx context.Context, f Filter, p Page) ([]MaintenanceRecord, int64, error) {
	where := strings.Builder{}
	where.WriteString(` WHERE 1=1`)
	args := []any{}
	if f.ItemULID != nil {
		where.WriteString(` AND i.item_ulid = ?`)
		args = append(args, *f.ItemULID)
	}
	if f.AssigneeID != nil {
		where.WriteString(` AND m.assignee_id = ?`)
		args = append(args, *f.AssigneeID)
	}
	if f.Status != nil {
		where.WriteString(` AND m.status = ?`)
		args = append(args, *f.Status)
	}
	if f.OnlyOpen {
		where.WriteString(` AND m.status IN ('Scheduled','In Progress','Overdue')`)
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

	q := fmt.Sprintf(`SELECT `+maintCols+maintFrom+`%s ORDER BY m.scheduled_at %s LIMIT ? OFFSET ?`,
		where.String(), order)
	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []MaintenanceRecord
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	cq := `SELECT COUNT(*)` + maintFrom + where.String()
	if err := s.db.QueryRowContext(ctx, cq, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// RecordProgress は累計完了数の更新。減少は拒否、差分だけ台帳を
// maintenance -> available へ動かす。全数完了でジョブを Completed にする。
func (s *Store) RecordProgress(ctx context.Context, maintID int64, newMaintained int, now time.Time) (*MaintenanceRecord, error) {
	var out *MaintenanceRecord
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		m, err := lockRecordTx(ctx, tx, maintID)
		if err != nil {
			return err
		}
		if !m.Status.Outstanding() {
			return api.ErrConflict(fmt.Sprintf("maintenance job is %s", m.Status))
		}
		delta := newMaintained - m.MaintainedQuantity
		if delta < 0 {
			return api.ErrInvalid("maintained_quantity cannot decrease")
		}
		if newMaintained > m.Quantity {
			return api.ErrQuantity(fmt.Sprintf("maintained_quantity exceeds job quantity (job: %d, got: %d)",
				m.Quantity, newMaintained))
		}

		if delta > 0 {
			it, err := items.LockTx(ctx, tx, m.ItemID)
			if err != nil {
				return err
			}
			if err := applyProgress(it, delta); err != nil {
				return err
			}
			if err := items.SaveLedgerTx(ctx, tx, it); err != nil {
				return err
			}
		}

		status := StatusInProgress
		var completedAt sql.NullTime
		if newMaintained == m.Quantity {
			status = StatusCompleted
			completedAt = sql.NullTime{Time: now, Valid: true}
		} else if newMaintained == 0 {
			status = m.Status
		}

		const q = `UPDATE maintenance_records SET maintained_quantity = ?, status = ?, completed_at = ?
			WHERE maintenance_id = ?`
		if _, err := tx.ExecContext(ctx, q, newMaintained, status, completedAt, maintID); err != nil {
			return err
		}
		m.MaintainedQuantity = newMaintained
		m.Status = status
		m.CompletedAt = completedAt
		out = m
		return nil
	})
	return out, err
}

// Update は再スケジュール・再割当・数量変更。数量変更は差分を台帳へ反映する。
// Cancelled への変更は未完了分を台帳へ戻す。
func (s *Store) Update(ctx context.Context, maintID int64, in UpdateMaintenanceRequest, due, next sql.NullTime) (*MaintenanceRecord, error) {
	var out *MaintenanceRecord
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		m, err := lockRecordTx(ctx, tx, maintID)
		if err != nil {
			return err
		}
		if !m.Status.Outstanding() {
			return api.ErrConflict(fmt.Sprintf("maintenance job is %s", m.Status))
		}

		cancel := in.Status != nil && Status(*in.Status) == StatusCancelled

		if in.Quantity != nil && *in.Quantity != m.Quantity {
			if cancel {
				return api.ErrInvalid("cannot change quantity while cancelling")
			}
			if *in.Quantity < m.MaintainedQuantity {
				return api.ErrQuantity(fmt.Sprintf("quantity below already maintained units (maintained: %d, got: %d)",
					m.MaintainedQuantity, *in.Quantity))
			}
			delta := *in.Quantity - m.Quantity
			it, err := items.LockTx(ctx, tx, m.ItemID)
			if err != nil {
				return err
			}
			if err := applyRequantify(it, delta); err != nil {
				return err
			}
			if err := items.SaveLedgerTx(ctx, tx, it); err != nil {
				return err
			}
			m.Quantity = *in.Quantity
		}

		if cancel {
			it, err := items.LockTx(ctx, tx, m.ItemID)
			if err != nil {
				return err
			}
			if err := applyRelease(it, m.Remaining()); err != nil {
				return err
			}
			if err := items.SaveLedgerTx(ctx, tx, it); err != nil {
				return err
			}
			m.Status = StatusCancelled
		}

		if in.Kind != nil {
			m.Kind = Kind(*in.Kind)
		}
		if due.Valid {
			m.DueDate = due
		}
		if next.Valid {
			m.NextMaintenance = next
		}
		if in.AssigneeID != nil {
			m.AssigneeID = sql.NullString{String: *in.AssigneeID, Valid: *in.AssigneeID != ""}
		}
		if in.Notes != nil {
			m.Notes = sql.NullString{String: *in.Notes, Valid: *in.Notes != ""}
		}

		const q = `UPDATE maintenance_records SET kind = ?, quantity = ?, status = ?,
			due_date = ?, next_maintenance = ?, assignee_id = ?, notes = ?
			WHERE maintenance_id = ?`
		if _, err := tx.ExecContext(ctx, q,
			m.Kind, m.Quantity, m.Status, m.DueDate, m.NextMaintenance,
			m.AssigneeID, m.Notes, maintID,
		); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// Delete は未完了分を台帳へ戻してから行を消す
func (s *Store) Delete(ctx context.Context, maintID int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		m, err := lockRecordTx(ctx, tx, maintID)
		if err != nil {
			return err
		}
		if m.Status.Outstanding() && m.Remaining() > 0 {
			it, err := items.LockTx(ctx, tx, m.ItemID)
			if err != nil {
				return err
			}
			if err := applyRelease(it, m.Remaining()); err != nil {
				return err
			}
			if err := items.SaveLedgerTx(ctx, tx, it); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM maintenance_records WHERE maintenance_id = ?`, maintID)
		return err
	})
}
