package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"review_harvester/internal/adapters/observability"
	"review_harvester/internal/domain"
)

// Channel is where every progress update is published.
const Channel = "harvest:progress"

func progressKey(appID string) string { return "progress:" + appID }

// Update is the message published on Channel.
type Update struct {
	App       string `json:"app"`
	Collected int    `json:"collected"`
}

// Progress is the messaging channel between a running harvest and whoever
// watches it: the last count per app is kept in a key and each update is
// also published.
type Progress struct{ c *redis.Client }

func New(addr, pass string, db int) *Progress {
	return &Progress{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func NewWithClient(c *redis.Client) *Progress { return &Progress{c: c} }

func (p *Progress) Close() error { return p.c.Close() }

// For binds the channel to one app.
func (p *Progress) For(appID string) domain.ProgressNotifier {
	return appNotifier{p: p, app: appID}
}

func (p *Progress) Progress(ctx context.Context, appID string) (int, bool, error) {
	v, err := p.c.Get(ctx, progressKey(appID)).Result()
	if errors.Is(err, redis.Nil) {
		observability.ObserveProgress("redis", "miss")
		return 0, false, nil
	}
	if err != nil {
		observability.ObserveProgress("redis", "error")
		return 0, false, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, err
	}
	observability.ObserveProgress("redis", "read")
	return n, true, nil
}

// Subscribe streams updates until ctx is done.
func (p *Progress) Subscribe(ctx context.Context) <-chan Update {
	out := make(chan Update)
	sub := p.c.Subscribe(ctx, Channel)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var u Update
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					log.Warn().Err(err).Msg("bad progress message")
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

type appNotifier struct {
	p   *Progress
	app string
}

// Notify never fails the harvest; errors are logged and counted.
func (n appNotifier) Notify(ctx context.Context, collected int) {
	b, _ := json.Marshal(Update{App: n.app, Collected: collected})
	_, err := n.p.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, progressKey(n.app), collected, 0)
		pipe.Publish(ctx, Channel, b)
		return nil
	})
	if err != nil {
		observability.ObserveProgress("redis", "error")
		log.Warn().Str("app", n.app).Int("collected", collected).Err(err).Msg("progress notify failed")
		return
	}
	observability.ObserveProgress("redis", "notify")
}
