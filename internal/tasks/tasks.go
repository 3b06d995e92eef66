package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/ups-sales/api/internal/banknoti"
	"go.uber.org/zap"
)

// Task types.
const (
	TypeBankPoll = "banknoti:poll"
)

// RedisOpt builds asynq connection options from an existing redis client.
func RedisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	o := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	}
}

// BankPoller runs one bank notification poll.
type BankPoller interface {
	Poll(ctx context.Context) banknoti.Result
}

// Processor holds the dependencies task handlers need.
type Processor struct {
	poller BankPoller
	logger *zap.Logger
}

func NewProcessor(poller BankPoller, logger *zap.Logger) *Processor {
	return &Processor{poller: poller, logger: logger}
}

// HandleBankPoll runs a single poll. Poll failures are logged, not returned:
// the next scheduled tick is the retry.
func (p *Processor) HandleBankPoll(ctx context.Context, _ *asynq.Task) error {
	res := p.poller.Poll(ctx)

	fields := []zap.Field{
		zap.String("status", string(res.Status)),
		zap.String("transaction_id", res.TransactionID),
	}
	switch res.Status {
	case banknoti.StatusCreated:
		if res.AlertErr != nil {
			p.logger.Warn("bank poll stored notification, alert failed", append(fields, zap.Error(res.AlertErr))...)
			return nil
		}
		p.logger.Info("bank poll stored notification", fields...)
	case banknoti.StatusDuplicate:
		p.logger.Debug("bank poll duplicate", fields...)
	default:
		p.logger.Warn("bank poll failed", append(fields, zap.Error(res.Err))...)
	}
	return nil
}

// NewMux registers every task handler.
func NewMux(p *Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBankPoll, p.HandleBankPoll)
	return mux
}

// NewServer configures an asynq server that logs task failures with zap.
func NewServer(opt asynq.RedisConnOpt, concurrency int, logger *zap.Logger) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task failed",
				zap.String("type", task.Type()),
				zap.ByteString("payload", task.Payload()),
				zap.Error(err),
			)
		}),
	})
}

// NewScheduler registers the periodic bank poll. Missed ticks are not
// retried and a tick never outlives timeout.
func NewScheduler(opt asynq.RedisConnOpt, cronspec string, timeout time.Duration) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		LogLevel: asynq.WarnLevel,
	})
	_, err := scheduler.Register(cronspec, asynq.NewTask(TypeBankPoll, nil),
		asynq.MaxRetry(0),
		asynq.Timeout(2*timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("register %s at %q: %w", TypeBankPoll, cronspec, err)
	}
	return scheduler, nil
}
