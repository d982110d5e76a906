package helper

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"

	"github.com/pielancer314/PizzaForPi/logger"
)

const jobTimeout = time.Minute

type PaymentReconciler interface {
	ReconcilePayments(ctx context.Context) (int, error)
}

type UnpaidOrderExpirer interface {
	ExpireUnpaid(ctx context.Context, ttl time.Duration) (int, error)
}

// StartPaymentReconciler polls the payment network for orders whose
// payment is still pending, every interval. Runs never overlap.
func StartPaymentReconciler(svc PaymentReconciler, interval time.Duration, log logger.ILogger) (gocron.Scheduler, error) {
	log = log.With(logger.String("job", "reconcile-payments"))

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			n, err := svc.ReconcilePayments(ctx)
			if err != nil {
				log.Error("reconcile payments", logger.Error(err))
				return
			}
			if n > 0 {
				log.Info("payments reconciled", logger.Int("orders", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}

	s.Start()
	log.Info("payment reconciler started", logger.Duration("interval", interval))
	return s, nil
}

// StartUnpaidOrderExpiry cancels orders left unpaid for longer than ttl on
// the given cron schedule.
func StartUnpaidOrderExpiry(svc UnpaidOrderExpirer, schedule string, ttl time.Duration, log logger.ILogger) (*cron.Cron, error) {
	log = log.With(logger.String("job", "expire-unpaid"))

	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	_, err := scheduler.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		n, err := svc.ExpireUnpaid(ctx, ttl)
		if err != nil {
			log.Error("expire unpaid orders", logger.Error(err))
			return
		}
		if n > 0 {
			log.Info("unpaid orders cancelled", logger.Int("orders", n))
		}
	})
	if err != nil {
		return nil, err
	}

	scheduler.Start()
	log.Info("unpaid order expiry started", logger.String("schedule", schedule), logger.Duration("ttl", ttl))
	return scheduler, nil
}
