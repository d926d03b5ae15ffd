package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"schoolku_backend/internals/features/finance/payment_flows/model"
	"schoolku_backend/internals/features/finance/payment_flows/provider"
)

type SweeperConfig struct {
	Schedule     string        // ekspresi cron, contoh "@every 10m"
	MinAge       time.Duration // hanya flow PENDING yang tidak berubah selama ini
	Batch        int
	QueryTimeout time.Duration // per flow
	RunTimeout   time.Duration // per putaran
}

type SweepStats struct {
	Scanned int
	Applied int
	Expired int
	Errors  int
}

// Sweeper = jalur pull: QueryStatus untuk flow PENDING yang webhook-nya tidak kunjung datang.
type Sweeper struct {
	flows      FlowStore
	adapters   *provider.Registry
	reconciler *Reconciler
	cfg        SweeperConfig
	cron       *cron.Cron
	now        func() time.Time
}

func NewSweeper(flows FlowStore, adapters *provider.Registry, reconciler *Reconciler, cfg SweeperConfig) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 10m"
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = 15 * time.Minute
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 15 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 4 * time.Minute
	}
	return &Sweeper{flows: flows, adapters: adapters, reconciler: reconciler, cfg: cfg, now: time.Now}
}

// Start mendaftarkan job cron. Putaran yang masih jalan tidak ditumpuk.
func (s *Sweeper) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
		defer cancel()
		st := s.RunOnce(ctx)
		if st.Scanned > 0 {
			log.Printf("[SWEEP] scanned=%d applied=%d expired=%d errors=%d", st.Scanned, st.Applied, st.Expired, st.Errors)
		}
	})
	if err != nil {
		return err
	}
	s.cron = c
	c.Start()
	log.Printf("[SWEEP] started schedule=%q minAge=%s batch=%d", s.cfg.Schedule, s.cfg.MinAge, s.cfg.Batch)
	return nil
}

// Stop menunggu putaran yang sedang berjalan selesai.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Sweeper) RunOnce(ctx context.Context) SweepStats {
	var st SweepStats

	online := s.adapters.Online()
	if len(online) == 0 {
		return st
	}
	now := s.now()
	flows, err := s.flows.ListStalePending(ctx, online, now.Add(-s.cfg.MinAge), s.cfg.Batch)
	if err != nil {
		log.Printf("[SWEEP] list flow gagal: %v", err)
		st.Errors++
		return st
	}

	for i := range flows {
		if ctx.Err() != nil {
			break
		}
		f := &flows[i]
		st.Scanned++

		adapter, ok := s.adapters.Get(f.PaymentFlowProvider)
		if !ok || f.PaymentFlowProviderRef == nil {
			continue
		}

		// ditandai sebelum query: flow yang query-nya gagal juga mundur ke belakang antrean
		if err := s.flows.MarkPolled(ctx, f.PaymentFlowID, now); err != nil {
			log.Printf("[SWEEP] tandai poll flow %s gagal: %v", f.PaymentFlowID, err)
		}

		qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
		res, err := adapter.QueryStatus(qctx, *f.PaymentFlowProviderRef)
		cancel()
		if err != nil {
			if !errors.Is(err, provider.ErrNotConfigured) {
				log.Printf("[SWEEP] query %s %s gagal: %v", f.PaymentFlowProvider, *f.PaymentFlowProviderRef, err)
			}
			st.Errors++
			continue
		}

		out, err := s.reconciler.ApplyPolledStatus(ctx, f, res)
		if err != nil {
			log.Printf("[SWEEP] apply flow %s gagal: %v", f.PaymentFlowID, err)
			st.Errors++
			continue
		}
		if out.Outcome == model.CallbackOutcomeApplied {
			st.Applied++
			continue
		}

		// provider masih PENDING tapi checkout sudah lewat expires_at
		if out.To == model.FlowStatusPending && expired(f, now) {
			exp, err := s.reconciler.ExpireFlow(ctx, f)
			if err != nil {
				log.Printf("[SWEEP] expire flow %s gagal: %v", f.PaymentFlowID, err)
				st.Errors++
				continue
			}
			if exp.Outcome == model.CallbackOutcomeApplied {
				st.Expired++
			}
		}
	}
	return st
}

func expired(f *model.PaymentFlow, now time.Time) bool {
	return f.PaymentFlowExpiresAt != nil && now.After(*f.PaymentFlowExpiresAt)
}
