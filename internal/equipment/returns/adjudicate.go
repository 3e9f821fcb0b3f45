package returns

import (
	"time"

	"github.com/shopspring/decimal"
)

// 自動判定の方針:
//   - 損傷が None / Minor なら人手を介さず承認する
//   - 料金が無い、または支払済みならそのまま完了まで進める
//   - Moderate / Severe は必ず審査待ち（pending）に落とす
func autoApprove(d DamageSeverity) bool {
	return d == DamageNone || d == DamageMinor
}

func shouldAutoComplete(totalFee decimal.Decimal, feePaid bool) bool {
	return !totalFee.IsPositive() || feePaid
}

// adjudicate は提出時・承認時の両方で使う。入力は再計算済みの r を前提とする。
func adjudicate(r *Return) Status {
	if !autoApprove(r.DamageSeverity) {
		return StatusPending
	}
	if shouldAutoComplete(r.TotalFee, r.IsFeePaid) {
		return StatusCompleted
	}
	return StatusApproved
}

// recompute は導出フィールドを保存前に必ず作り直す。
func (r *Return) recompute(intendedReturn time.Time, hasIntended bool) {
	r.TotalFee = r.PenaltyFee.Add(r.DamageFee)
	r.LateDays = lateDays(r.ReturnedAt, intendedReturn, hasIntended)
}

// lateDays は日単位の超過。同日・期限なしは 0。
func lateDays(actual, intended time.Time, hasIntended bool) int {
	if !hasIntended || !actual.After(intended) {
		return 0
	}
	d := int(actual.Sub(intended).Hours() / 24)
	if actual.Sub(intended)%(24*time.Hour) > 0 {
		d++
	}
	return d
}
