package sim_test

import (
	"context"
	"errors"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/demonsim/internal/demon"
	"github.com/san-kum/demonsim/internal/lattice"
	"github.com/san-kum/demonsim/internal/metrics"
	"github.com/san-kum/demonsim/internal/sim"
)

func newEngine(seed uint64, opts demon.Options) *demon.Engine {
	l, err := lattice.NewArray(6, 2, rand.New(rand.NewPCG(seed, 7)))
	Expect(err).NotTo(HaveOccurred())
	eng, err := demon.New(l, opts)
	Expect(err).NotTo(HaveOccurred())
	return eng
}

var _ = Describe("Simulator", func() {
	var (
		eng *demon.Engine
		s   *sim.Simulator
		ctx context.Context
	)

	BeforeEach(func() {
		eng = newEngine(1, demon.Options{})
		s = sim.New(eng, metrics.NewMagnetization())
		ctx = context.Background()
	})

	It("samples once per iteration and hands every step to the callback", func() {
		var steps []int
		res, err := s.Run(ctx, sim.Config{Iterations: 50}, func(step int, snap sim.Snapshot) error {
			steps = append(steps, step)
			Expect(snap.Step).To(Equal(step))
			Expect(snap.DemonHistory).To(HaveLen(step + 1))
			Expect(snap.Magnetization).To(HaveLen(step + 1))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Steps).To(Equal(50))
		Expect(res.DemonHistory).To(HaveLen(50))
		Expect(res.Magnetization).To(HaveLen(50))
		Expect(steps).To(HaveLen(50))
		Expect(steps[0]).To(Equal(0))
		Expect(steps[49]).To(Equal(49))
		Expect(s.Step()).To(Equal(50))
	})

	It("invokes the callback before the move of that iteration", func() {
		_, err := s.Run(ctx, sim.Config{Iterations: 200}, func(step int, snap sim.Snapshot) error {
			last := snap.Magnetization[len(snap.Magnetization)-1]
			Expect(float64(lattice.Magnetization(snap.Lattice))).To(Equal(last))
			Expect(snap.DemonEnergy).To(Equal(eng.DemonEnergy()))
			Expect(snap.DemonHistory[len(snap.DemonHistory)-1]).To(Equal(snap.DemonEnergy))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("runs nothing for zero iterations", func() {
		called := false
		res, err := s.Run(ctx, sim.Config{}, func(int, sim.Snapshot) error {
			called = true
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(called).To(BeFalse())
		Expect(res.Steps).To(BeZero())
		Expect(res.DemonHistory).To(BeEmpty())
	})

	DescribeTable("rejects invalid configuration at entry",
		func(cfg sim.Config) {
			_, err := s.Run(ctx, cfg, nil)
			Expect(err).To(MatchError(demon.ErrConfiguration))
			Expect(s.Step()).To(BeZero())
		},
		Entry("negative iterations", sim.Config{Iterations: -1}),
		Entry("negative ceiling", sim.Config{Iterations: 10, ClampCeiling: -5}),
	)

	It("clamps the demon before the next move is attempted", func() {
		Expect(eng.SetDemonEnergy(150)).To(Succeed())
		var first float64
		res, err := s.Run(ctx, sim.Config{Iterations: 1, ClampCeiling: 100, CheckInvariants: true}, func(step int, snap sim.Snapshot) error {
			first = snap.DemonEnergy
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal(100.0))
		Expect(res.DemonHistory[0]).To(Equal(100.0))
		Expect(res.Released).To(Equal(50.0))
	})

	It("keeps every demon sample at or below the ceiling", func() {
		Expect(eng.SetDemonEnergy(40)).To(Succeed())
		res, err := s.Run(ctx, sim.Config{Iterations: 2000, ClampCeiling: 8, CheckInvariants: true}, nil)
		Expect(err).NotTo(HaveOccurred())
		for _, e := range res.DemonHistory {
			Expect(e).To(BeNumerically("<=", 8))
			Expect(e).To(BeNumerically(">=", 0))
		}
	})

	It("conserves lattice plus demon energy without a clamp", func() {
		initial := eng.TotalEnergy()
		res, err := s.Run(ctx, sim.Config{Iterations: 5000, CheckInvariants: true}, func(int, sim.Snapshot) error {
			Expect(eng.TotalEnergy()).To(BeNumerically("~", initial, 1e-9))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.FinalLattice + res.FinalDemon).To(BeNumerically("~", initial, 1e-9))
		Expect(res.Accepted).To(BeNumerically(">", 0))
		Expect(res.Released).To(BeZero())
	})

	It("aborts with the partial result when the callback fails", func() {
		boom := errors.New("render failed")
		res, err := s.Run(ctx, sim.Config{Iterations: 100}, func(step int, _ sim.Snapshot) error {
			if step == 10 {
				return boom
			}
			return nil
		})
		Expect(err).To(MatchError(boom))
		Expect(res.Steps).To(Equal(10))
		Expect(res.DemonHistory).To(HaveLen(11))
		Expect(s.Step()).To(Equal(10))
	})

	It("stops when the context is cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		res, err := s.Run(cctx, sim.Config{Unbounded: true}, func(step int, _ sim.Snapshot) error {
			if step == 5 {
				cancel()
			}
			return nil
		})
		Expect(err).To(MatchError(context.Canceled))
		Expect(res.Steps).To(Equal(6))
	})

	It("reports registered metrics", func() {
		s.AddMetric(metrics.NewAcceptanceRate())
		s.AddMetric(metrics.NewPeakDemon())
		res, err := s.Run(ctx, sim.Config{Iterations: 500}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Metrics).To(HaveKey("acceptance_rate"))
		Expect(res.Metrics["acceptance_rate"]).To(BeNumerically("~", float64(res.Accepted)/500, 1e-12))
		Expect(res.Metrics["peak_demon"]).To(BeNumerically(">=", res.FinalDemon))
	})

	It("scopes metrics to one Run while histories span every call", func() {
		s.AddMetric(metrics.NewAcceptanceRate())
		first, err := s.Run(ctx, sim.Config{Iterations: 300}, nil)
		Expect(err).NotTo(HaveOccurred())

		second, err := s.Run(ctx, sim.Config{Iterations: 200}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Steps).To(Equal(200))
		Expect(second.Metrics["acceptance_rate"]).To(BeNumerically("~", float64(second.Accepted)/200, 1e-12))
		Expect(second.DemonHistory).To(HaveLen(500))
		Expect(second.DemonHistory[:300]).To(Equal(first.DemonHistory))
	})

	It("notifies observers", func() {
		obs := &countingObserver{}
		s.AddObserver(obs)
		_, err := s.Run(ctx, sim.Config{Iterations: 25}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(obs.calls).To(Equal(25))
	})

	It("continues step numbering and histories after a restore", func() {
		_, err := s.Run(ctx, sim.Config{Iterations: 30}, nil)
		Expect(err).NotTo(HaveOccurred())
		cp := s.Checkpoint()
		Expect(cp.Step).To(Equal(30))
		Expect(cp.Spins).To(HaveLen(36))

		l, err := lattice.NewArrayFrom(cp.Size, cp.Dim, cp.Spins, rand.New(rand.NewPCG(2, 2)))
		Expect(err).NotTo(HaveOccurred())
		eng2, err := demon.New(l, demon.Options{})
		Expect(err).NotTo(HaveOccurred())
		s2 := sim.New(eng2, nil)
		Expect(s2.Restore(cp)).To(Succeed())
		Expect(eng2.DemonEnergy()).To(Equal(eng.DemonEnergy()))
		Expect(eng2.LatticeEnergy()).To(Equal(eng.LatticeEnergy()))

		var firstStep = -1
		res, err := s2.Run(ctx, sim.Config{Iterations: 5, CheckInvariants: true}, func(step int, _ sim.Snapshot) error {
			if firstStep < 0 {
				firstStep = step
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(firstStep).To(Equal(30))
		Expect(res.DemonHistory).To(HaveLen(35))
	})

	It("rejects checkpoints with mismatched histories", func() {
		cp := s.Checkpoint()
		cp.DemonHistory = []float64{1}
		Expect(s.Restore(cp)).To(MatchError(demon.ErrConfiguration))
	})
})

type countingObserver struct{ calls int }

func (c *countingObserver) OnStep(sim.Snapshot) { c.calls++ }
