package router

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rollout/buffer/trajectory"
	ts "github.com/samuelfneumann/rollout/timestep"
	"github.com/samuelfneumann/rollout/utils/tensorutils"
)

func newRouter(t *testing.T, seed uint64, opts ...Option) *Router {
	r, err := New(trajectory.DefaultConfig(), seed, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

// fill writes n complete transitions for an agent. Values are
// base, base+1, ... so rows can be traced back to their agent.
func fill(t *testing.T, r *Router, id AgentID, n int, base float64) {
	for i := 0; i < n; i++ {
		v := base + float64(i)
		state := tensorutils.FromFloat64s([]float64{v, v, v})
		action := tensorutils.FromFloat64s([]float64{0})
		if err := r.AddFirstPart(id, ts.NewDecision(state, action, v)); err != nil {
			t.Fatal(err)
		}
		err := r.UpdateSecondPart(id, ts.NewOutcome(1, i == n-1), true)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestUnknownAgent(t *testing.T) {
	r := newRouter(t, 1)
	err := r.UpdateSecondPart("ghost", ts.NewOutcome(1, false), true)
	if !IsUnknownAgent(err) {
		t.Errorf("updateSecondPart: want(%v) have(%v)", ErrUnknownAgent, err)
	}
	if err := r.SetBootstrap("ghost", 1); !IsUnknownAgent(err) {
		t.Errorf("setBootstrap: want(%v) have(%v)", ErrUnknownAgent, err)
	}
}

func TestSize(t *testing.T) {
	r := newRouter(t, 1)
	fill(t, r, "a", 5, 0)
	fill(t, r, "b", 7, 100)

	if r.Size() != 12 {
		t.Errorf("size: want(12) have(%v)", r.Size())
	}

	batch, err := r.GetBatch(0.99, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Size != 12 || len(batch.Returns) != 12 {
		t.Errorf("getBatch: size want(12) have(%v)", batch.Size)
	}
	if len(batch.States) != 12*3 {
		t.Errorf("getBatch: states want(36) have(%v)", len(batch.States))
	}
}

func TestAgentsInsertionOrder(t *testing.T) {
	r := newRouter(t, 1)
	fill(t, r, "c", 1, 0)
	fill(t, r, "a", 1, 0)
	fill(t, r, "b", 1, 0)
	fill(t, r, "a", 1, 0)

	ids := r.Agents()
	want := []AgentID{"c", "a", "b"}
	if len(ids) != len(want) {
		t.Fatalf("agents: want(%v) have(%v)", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("agents: want(%v) have(%v)", want, ids)
		}
	}
}

func TestBlocksStayContiguous(t *testing.T) {
	r := newRouter(t, 3)
	fill(t, r, "a", 5, 100)
	fill(t, r, "b", 7, 200)
	fill(t, r, "c", 3, 300)

	batch, err := r.GetBatch(0.99, 0.95)
	if err != nil {
		t.Fatal(err)
	}

	// Every row either starts a new block at base or continues the
	// previous row's block by one
	seen := map[float64]bool{}
	for i, v := range batch.Values {
		block := math.Floor(v/100) * 100
		if v == block {
			if seen[block] {
				t.Fatalf("block %v starts twice", block)
			}
			seen[block] = true
			continue
		}
		if i == 0 || batch.Values[i-1] != v-1 {
			t.Fatalf("row %v: block split, values %v", i, batch.Values)
		}
	}
	if len(seen) != 3 {
		t.Errorf("want 3 blocks, have %v", len(seen))
	}
}

func TestShuffleReproducible(t *testing.T) {
	order := func(seed uint64) []float64 {
		r := newRouter(t, seed)
		for i := 0; i < 5; i++ {
			fill(t, r, AgentID(rune('a'+i)), 2, float64(100*i))
		}
		batch, err := r.GetBatch(0.99, 0.95)
		if err != nil {
			t.Fatal(err)
		}
		return batch.Values
	}

	first, second := order(42), order(42)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("shuffle: same seed gave %v and %v", first, second)
		}
	}

	// Over many seeds, every agent should lead the batch at least once
	leaders := map[float64]bool{}
	for seed := uint64(0); seed < 200; seed++ {
		leaders[order(seed)[0]] = true
	}
	if len(leaders) != 5 {
		t.Errorf("shuffle: want 5 distinct leading agents, have %v", leaders)
	}
}

func TestNormalizeOption(t *testing.T) {
	r := newRouter(t, 1, WithNormalize(true))
	fill(t, r, "a", 6, 0)
	fill(t, r, "b", 4, 2)

	batch, err := r.GetBatch(0.99, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	mean, variance := stat.PopMeanVariance(batch.Advantages, nil)
	if math.Abs(mean) >= 1e-6 || math.Abs(math.Sqrt(variance)-1) > 1e-3 {
		t.Errorf("normalize: mean(%v) std(%v)", mean, math.Sqrt(variance))
	}
	for i := range batch.Returns {
		if batch.Returns[i] != batch.Values[i]+batch.RawAdvantages[i] {
			t.Fatalf("row %v: return != value + raw advantage", i)
		}
	}
}

func TestGetBatchEmpty(t *testing.T) {
	r := newRouter(t, 1)
	if _, err := r.GetBatch(0.99, 0.95); !trajectory.IsEmptyTrajectory(err) {
		t.Errorf("getBatch: want(%v) have(%v)", trajectory.ErrEmptyTrajectory,
			err)
	}

	// An agent with only a decision has nothing to contribute
	state := tensorutils.FromFloat64s([]float64{0, 0, 0})
	action := tensorutils.FromFloat64s([]float64{0})
	if err := r.AddFirstPart("a", ts.NewDecision(state, action, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetBatch(0.99, 0.95); !trajectory.IsEmptyTrajectory(err) {
		t.Errorf("getBatch: want(%v) have(%v)", trajectory.ErrEmptyTrajectory,
			err)
	}

	fill(t, r, "b", 2, 0)
	batch, err := r.GetBatch(0.99, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Size != 2 {
		t.Errorf("getBatch: size want(2) have(%v)", batch.Size)
	}
}

func TestShapeMismatchAcrossAgents(t *testing.T) {
	r := newRouter(t, 1)
	fill(t, r, "a", 1, 0)

	state := tensorutils.FromFloat64s([]float64{0})
	action := tensorutils.FromFloat64s([]float64{0})
	if err := r.AddFirstPart("b", ts.NewDecision(state, action, 0)); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateSecondPart("b", ts.NewOutcome(0, true), true); err != nil {
		t.Fatal(err)
	}

	if _, err := r.GetBatch(0.99, 0.95); err == nil {
		t.Error("getBatch: expected error for agents with different state " +
			"dimensions")
	}
}

func TestDispose(t *testing.T) {
	released := map[tensor.Tensor]int{}
	config := trajectory.DefaultConfig().WithReleaser(func(t tensor.Tensor) {
		released[t]++
	})
	r, err := New(config, 1)
	if err != nil {
		t.Fatal(err)
	}

	fill(t, r, "a", 3, 0)
	fill(t, r, "b", 2, 0)
	r.Dispose()
	r.Dispose()

	if len(released) != 10 {
		t.Errorf("dispose: want 10 released tensors have %v", len(released))
	}
	for _, n := range released {
		if n != 1 {
			t.Fatalf("dispose: tensor released %v times", n)
		}
	}
	if r.Size() != 0 || len(r.Agents()) != 0 {
		t.Error("dispose: router not cleared")
	}

	err = r.UpdateSecondPart("a", ts.NewOutcome(1, false), true)
	if !IsUnknownAgent(err) {
		t.Errorf("updateSecondPart: want(%v) have(%v)", ErrUnknownAgent, err)
	}

	// Ids may be reused after disposal
	fill(t, r, "a", 1, 0)
	if r.Size() != 1 {
		t.Errorf("size: want(1) have(%v)", r.Size())
	}
}

func BenchmarkGetBatch(b *testing.B) {
	config := trajectory.DefaultConfig().WithReleaser(tensorutils.NoRelease)
	r, _ := New(config, 1)
	state := tensorutils.FromFloat64s(make([]float64, 16))
	action := tensorutils.FromFloat64s(make([]float64, 2))
	for agent := 0; agent < 32; agent++ {
		id := AgentID(rune('A' + agent))
		for i := 0; i < 128; i++ {
			r.AddFirstPart(id, ts.NewDecision(state, action, 0))
			r.UpdateSecondPart(id, ts.NewOutcome(1, false), true)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.GetBatch(0.99, 0.95)
	}
}
