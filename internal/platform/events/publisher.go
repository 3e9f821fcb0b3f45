package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// 通知系のチャネル名。購読側（通知サービス・フロントのSSEゲートウェイ）と共有。
const (
	TopicItemCreated          = "equipment.item.created"
	TopicItemDisposed         = "equipment.item.disposed"
	TopicBorrowRequested      = "equipment.borrow.requested"
	TopicBorrowApproved       = "equipment.borrow.approved"
	TopicBorrowReturned       = "equipment.borrow.returned"
	TopicMaintenanceScheduled = "equipment.maintenance.scheduled"
	TopicMaintenanceCompleted = "equipment.maintenance.completed"
	TopicReturnSubmitted      = "equipment.return.submitted"
)

// Publisher は Redis Pub/Sub への通知送信。
// プロセス内のコネクションマップを持ち回す方式はスケールアウトで破綻するため、
// ブローカー経由に統一している。送信はベストエフォートで、失敗しても
// 呼び出し元のリクエストは失敗させない。
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish は payload をJSONにして topic へ送る。nilレシーバ・未設定クライアントは無視。
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) {
	if p == nil || p.rdb == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[WARN] events: marshal %s: %v", topic, err)
		return
	}
	// リクエストのctxがキャンセル済みでも通知は送り切りたい
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.rdb.Publish(ctx, topic, body).Err(); err != nil {
		log.Printf("[WARN] events: publish %s: %v", topic, err)
	}
}
