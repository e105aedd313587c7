package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PendingReconciliation is a confirmed ledger effect the store did not record.
type PendingReconciliation struct {
	ProjectID       uuid.UUID  `json:"projectId"`
	Transition      string     `json:"transition"`
	ContractAddress string     `json:"contractAddress"`
	TxHash          string     `json:"txHash,omitempty"`
	FreelancerID    *uuid.UUID `json:"freelancerId,omitempty"`
	Cause           string     `json:"cause,omitempty"`
	RecordedAt      time.Time  `json:"recordedAt"`
}

const defaultJournalKey = "escrow:reconcile:pending"

// RedisJournal is a FIFO of pending reconciliations kept in a redis list.
type RedisJournal struct {
	Client *redis.Client
	Key    string
}

func NewRedisJournal(client *redis.Client) *RedisJournal {
	return &RedisJournal{Client: client, Key: defaultJournalKey}
}

func (j *RedisJournal) Push(ctx context.Context, rec PendingReconciliation) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return j.Client.LPush(ctx, j.Key, b).Err()
}

// Pop removes the oldest record. ok is false when the journal is empty.
func (j *RedisJournal) Pop(ctx context.Context) (rec PendingReconciliation, ok bool, err error) {
	raw, err := j.Client.RPop(ctx, j.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

func (j *RedisJournal) Len(ctx context.Context) (int64, error) {
	return j.Client.LLen(ctx, j.Key).Result()
}
