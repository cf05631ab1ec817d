package notification

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/carelink/clinic-scheduling/pkg/logging"
)

// ChangeFeed broadcasts table-change hints over Redis pub/sub. Subscribers
// use the hints to re-query; nothing here affects correctness, only how
// quickly stale views refresh. A nil *ChangeFeed is a no-op.
type ChangeFeed struct {
	client *redis.Client
	log    *logging.Logger
}

func NewChangeFeed(client *redis.Client, log *logging.Logger) *ChangeFeed {
	if log == nil {
		log = logging.Default()
	}
	return &ChangeFeed{client: client, log: log}
}

func channelFor(table string) string {
	return fmt.Sprintf("changes:%s", table)
}

// Publish announces that rows in table changed. Failures are logged and
// dropped; the write that triggered the hint already succeeded.
func (f *ChangeFeed) Publish(ctx context.Context, table string) {
	if f == nil || f.client == nil {
		return
	}
	if err := f.client.Publish(ctx, channelFor(table), "changed").Err(); err != nil {
		f.log.Warn("change feed publish failed", "table", table, "error", err)
	}
}

// Subscribe invokes fn for every change hint on table until the returned
// unsubscribe function is called or ctx ends.
func (f *ChangeFeed) Subscribe(ctx context.Context, table string, fn func()) func() {
	if f == nil || f.client == nil {
		return func() {}
	}

	sub := f.client.Subscribe(ctx, channelFor(table))

	go func() {
		for range sub.Channel() {
			fn()
		}
	}()

	return func() {
		_ = sub.Close()
	}
}
