package returns

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"

	ulid "github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"LEMS-backend/internal/equipment/borrowings"
	"LEMS-backend/internal/platform/api"
	"LEMS-backend/internal/platform/events"
)

// ===== Clock & ID =====
type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

type storeAPI interface {
	ResolveBorrowing(ctx context.Context, borrowULID string) (*borrowings.Borrowing, error)
	InsertAdjudicated(ctx context.Context, r *Return, now time.Time) error
	GetByULID(ctx context.Context, ulid string) (*Return, error)
	List(ctx context.Context, f Filter, p Page) ([]Return, int64, error)
	UpdateDecision(ctx context.Context, returnID int64, intendedReturn sql.NullTime,
		apply func(r *Return) error, decide decisionFn, now time.Time) (*Return, error)
	IntendedReturnDate(ctx context.Context, borrowID int64) (sql.NullTime, error)
}

type Service struct {
	store  storeAPI
	clock  Clock
	id     IDGen
	events *events.Publisher
}

func NewService(db *sql.DB, pub *events.Publisher) *Service {
	return &Service{
		store:  NewStore(db),
		clock:  realClock{},
		id:     ulidGen{},
		events: pub,
	}
}

// Create は返却の提出と自動判定。None/Minor は人手を介さず承認し、
// 料金が無ければそのまま完了する。Moderate/Severe は審査待ちに落とす。
// 戻り値の message は UI にそのまま出せる判定結果の説明。
func (s *Service) Create(ctx context.Context, in CreateReturnRequest) (ReturnResponse, string, error) {
	sev := DamageSeverity(in.DamageSeverity)
	if !ValidSeverity(sev) {
		return ReturnResponse{}, "", api.ErrInvalid("damage_severity must be one of None/Minor/Moderate/Severe")
	}
	penalty, err := parseMoney(in.PenaltyFee)
	if err != nil {
		return ReturnResponse{}, "", api.ErrInvalid("penalty_fee must be a decimal string")
	}
	damage, err := parseMoney(in.DamageFee)
	if err != nil {
		return ReturnResponse{}, "", api.ErrInvalid("damage_fee must be a decimal string")
	}
	if penalty.IsNegative() || damage.IsNegative() {
		return ReturnResponse{}, "", api.ErrInvalid("fees must be >= 0")
	}

	b, err := s.store.ResolveBorrowing(ctx, in.BorrowULID)
	if err != nil {
		return ReturnResponse{}, "", err
	}
	if !b.Status.Active() {
		return ReturnResponse{}, "", api.ErrConflict(fmt.Sprintf("borrowing is %s, not active", b.Status))
	}

	now := s.clock.Now()
	r := &Return{
		ReturnULID:     s.id.NewULID(now),
		BorrowID:       b.BorrowID,
		BorrowULID:     b.BorrowULID,
		DamageSeverity: sev,
		PenaltyFee:     penalty,
		DamageFee:      damage,
		IsFeePaid:      in.IsFeePaid,
		ReturnedAt:     now,
	}
	if in.Notes != nil && *in.Notes != "" {
		r.Notes = sql.NullString{String: *in.Notes, Valid: true}
	}
	r.recompute(b.IntendedReturnDate.Time, b.IntendedReturnDate.Valid)
	r.Status = adjudicate(r)

	if err := s.store.InsertAdjudicated(ctx, r, now); err != nil {
		return ReturnResponse{}, "", err
	}

	s.events.Publish(ctx, events.TopicReturnSubmitted, r.toDTO())
	if r.Status.Settled() {
		s.events.Publish(ctx, events.TopicBorrowReturned, r.toDTO())
	}
	return r.toDTO(), decisionMessage(r), nil
}

// UpdateDecision は管理者による裁定の上書き。approved への遷移では
// 自動完了チェックを再実行し、料金精算済みならそのまま completed へ進める。
func (s *Service) UpdateDecision(ctx context.Context, returnULID string, in UpdateReturnRequest) (ReturnResponse, error) {
	if in.Status != nil {
		switch Status(*in.Status) {
		case StatusApproved, StatusCompleted, StatusRejected:
		default:
			return ReturnResponse{}, api.ErrInvalid("status must be approved, completed or rejected")
		}
	}
	var penalty, damage *decimal.Decimal
	if in.PenaltyFee != nil {
		v, err := parseMoney(in.PenaltyFee)
		if err != nil || v.IsNegative() {
			return ReturnResponse{}, api.ErrInvalid("penalty_fee must be a decimal string >= 0")
		}
		penalty = &v
	}
	if in.DamageFee != nil {
		v, err := parseMoney(in.DamageFee)
		if err != nil || v.IsNegative() {
			return ReturnResponse{}, api.ErrInvalid("damage_fee must be a decimal string >= 0")
		}
		damage = &v
	}

	r, err := s.store.GetByULID(ctx, returnULID)
	if err != nil {
		return ReturnResponse{}, err
	}
	intended, err := s.store.IntendedReturnDate(ctx, r.BorrowID)
	if err != nil {
		return ReturnResponse{}, err
	}

	now := s.clock.Now()
	apply := func(r *Return) error {
		if penalty != nil {
			r.PenaltyFee = *penalty
		}
		if damage != nil {
			r.DamageFee = *damage
		}
		if in.IsFeePaid != nil {
			r.IsFeePaid = *in.IsFeePaid
		}
		if in.Notes != nil {
			r.Notes = sql.NullString{String: *in.Notes, Valid: *in.Notes != ""}
		}
		return nil
	}
	decide := func(r *Return) (Status, error) {
		if in.Status == nil {
			// 料金精算だけの更新でも approved → completed の昇格は起こりうる
			if r.Status == StatusApproved && shouldAutoComplete(r.TotalFee, r.IsFeePaid) {
				return StatusCompleted, nil
			}
			return r.Status, nil
		}
		next := Status(*in.Status)
		if r.Status == StatusCompleted && next != StatusCompleted {
			return "", api.ErrConflict("return is already completed")
		}
		if next == StatusApproved && shouldAutoComplete(r.TotalFee, r.IsFeePaid) {
			return StatusCompleted, nil
		}
		return next, nil
	}

	updated, err := s.store.UpdateDecision(ctx, r.ReturnID, intended, apply, decide, now)
	if err != nil {
		return ReturnResponse{}, err
	}
	if updated.Status.Settled() && !r.Status.Settled() {
		s.events.Publish(ctx, events.TopicBorrowReturned, updated.toDTO())
	}
	return updated.toDTO(), nil
}

func (s *Service) Get(ctx context.Context, returnULID string) (ReturnResponse, error) {
	r, err := s.store.GetByULID(ctx, returnULID)
	if err != nil {
		return ReturnResponse{}, err
	}
	return r.toDTO(), nil
}

func (s *Service) List(ctx context.Context, f Filter, p Page) ([]ReturnResponse, int64, error) {
	rows, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ReturnResponse, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}

func decisionMessage(r *Return) string {
	switch r.Status {
	case StatusCompleted:
		return "return accepted and completed"
	case StatusApproved:
		return "return accepted; outstanding fees must be paid before completion"
	default:
		return "return submitted for manual review"
	}
}

func parseMoney(s *string) (decimal.Decimal, error) {
	if s == nil || *s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*s)
}
