package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "librarydesk:remind:"

// Marker 基于 Redis SetNX 的一次性标记，用于逾期提醒去重。
//
// 同一个键在 TTL 窗口内只有第一次 Claim 会成功，
// 之后的调用都会返回"已存在"。
type Marker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewMarker(rdb *redis.Client, ttl time.Duration) *Marker {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Marker{
		rdb: rdb,
		ttl: ttl,
	}
}

// Claim 尝试占用标记。返回 true 表示本次是第一次占用（应当发送提醒）。
func (m *Marker) Claim(ctx context.Context, key string) (bool, error) {
	if m == nil || m.rdb == nil || key == "" {
		return true, nil
	}
	ok, err := m.rdb.SetNX(ctx, keyPrefix+key, "1", m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("marker setnx: %w", err)
	}
	return ok, nil
}

// Release 删除标记（记录归还后允许将来的新逾期再次提醒）。
func (m *Marker) Release(ctx context.Context, key string) error {
	if m == nil || m.rdb == nil || key == "" {
		return nil
	}
	if err := m.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("marker del: %w", err)
	}
	return nil
}
