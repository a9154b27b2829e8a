package system

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// run in registration order. A tick that takes longer than its dt is
// reported with the time spent in each phase.
type Runner struct {
	systems []System
	sorted  bool
	ticks   uint64
	log     *zap.Logger
	spent   [phaseCount]time.Duration
}

func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		systems: make([]System, 0, 8),
		log:     log,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	r.spent = [phaseCount]time.Duration{}
	start := time.Now()
	for _, s := range r.systems {
		t0 := time.Now()
		s.Update(dt)
		if p := s.Phase(); p >= 0 && p < phaseCount {
			r.spent[p] += time.Since(t0)
		}
	}
	r.ticks++

	if elapsed := time.Since(start); dt > 0 && elapsed > dt {
		fields := []zap.Field{
			zap.Uint64("ticks", r.ticks),
			zap.Duration("elapsed", elapsed),
			zap.Duration("dt", dt),
		}
		for p := Phase(0); p < phaseCount; p++ {
			fields = append(fields, zap.Duration(p.String(), r.spent[p]))
		}
		r.log.Warn("slow tick", fields...)
	}
}

// Ticks is the number of completed Tick calls.
func (r *Runner) Ticks() uint64 { return r.ticks }

// Spent reports how long the last tick spent in phase p.
func (r *Runner) Spent(p Phase) time.Duration {
	if p < 0 || p >= phaseCount {
		return 0
	}
	return r.spent[p]
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
