package trajectory

import (
	"testing"

	"gorgonia.org/tensor"

	ts "github.com/samuelfneumann/rollout/timestep"
	"github.com/samuelfneumann/rollout/utils/tensorutils"
)

func vec(values ...float64) *tensor.Dense {
	return tensorutils.FromFloat64s(values)
}

// releaseCounter counts how many times each tensor is released
type releaseCounter map[tensor.Tensor]int

func (r releaseCounter) release(t tensor.Tensor) {
	r[t]++
}

func newBuffer(t *testing.T, config Config) *Buffer {
	b, err := New(config)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func decide(t *testing.T, b *Buffer, value float64) {
	err := b.AddFirstPart(ts.NewDecision(vec(value, value), vec(1), value))
	if err != nil {
		t.Fatal(err)
	}
}

func outcome(t *testing.T, b *Buffer, reward float64, done, isLast bool) {
	if err := b.UpdateSecondPart(ts.NewOutcome(reward, done), isLast); err != nil {
		t.Fatal(err)
	}
}

func TestNewInvalidConfig(t *testing.T) {
	if _, err := New(Config{Gamma: 1.5}); err == nil {
		t.Error("new: expected error for gamma > 1")
	}
	if _, err := New(Config{Gamma: 0.9, Lambda: -0.1}); err == nil {
		t.Error("new: expected error for lambda < 0")
	}
	if _, err := New(Config{StateDim: -1}); err == nil {
		t.Error("new: expected error for negative state dimension")
	}
}

func TestGetBatchEmpty(t *testing.T) {
	b := newBuffer(t, DefaultConfig())
	_, err := b.GetBatch(0.99, 0.95)
	if !IsEmptyTrajectory(err) {
		t.Errorf("getBatch: want(%v) have(%v)", ErrEmptyTrajectory, err)
	}

	// Decisions without any outcome are still empty
	decide(t, b, 0)
	if _, err = b.GetBatch(0.99, 0.95); !IsEmptyTrajectory(err) {
		t.Errorf("getBatch: want(%v) have(%v)", ErrEmptyTrajectory, err)
	}
}

func TestCollapse(t *testing.T) {
	tests := []struct {
		name     string
		rewards  []float64
		dones    []bool
		wantSum  float64
		wantDone bool
	}{
		{
			// AllTicks is the default DoneRule: a window is terminal
			// only if every tick was. AnyTick commits true here, see
			// TestCollapseAnyTick.
			name:     "last tick terminal",
			rewards:  []float64{1, 2, 3, 4},
			dones:    []bool{false, false, false, true},
			wantSum:  10,
			wantDone: false,
		},
		{
			name:     "no terminal tick",
			rewards:  []float64{1, 2, 3, 4},
			dones:    []bool{false, false, false, false},
			wantSum:  10,
			wantDone: false,
		},
		{
			name:     "every tick terminal",
			rewards:  []float64{1, 2, 3, 4},
			dones:    []bool{true, true, true, true},
			wantSum:  10,
			wantDone: true,
		},
	}

	for _, test := range tests {
		b := newBuffer(t, DefaultConfig())
		decide(t, b, 0)
		for i := range test.rewards {
			outcome(t, b, test.rewards[i], test.dones[i],
				i == len(test.rewards)-1)
		}

		if b.Size() != 1 {
			t.Fatalf("%v: size want(1) have(%v)", test.name, b.Size())
		}
		batch, err := b.GetBatch(0.99, 0.95)
		if err != nil {
			t.Fatal(err)
		}
		if batch.Rewards[0] != test.wantSum {
			t.Errorf("%v: reward want(%v) have(%v)", test.name, test.wantSum,
				batch.Rewards[0])
		}
		if batch.Dones[0] != test.wantDone {
			t.Errorf("%v: done want(%v) have(%v)", test.name, test.wantDone,
				batch.Dones[0])
		}
	}
}

func TestCollapseAnyTick(t *testing.T) {
	tests := []struct {
		dones    []bool
		wantDone bool
	}{
		{[]bool{false, false, false, true}, true},
		{[]bool{false, false, false, false}, false},
		{[]bool{true, false}, true},
	}

	config := DefaultConfig()
	config.DoneRule = AnyTick
	for _, test := range tests {
		b := newBuffer(t, config)
		decide(t, b, 0)
		for i, done := range test.dones {
			outcome(t, b, float64(i+1), done, i == len(test.dones)-1)
		}

		batch, err := b.GetBatch(0.99, 0.95)
		if err != nil {
			t.Fatal(err)
		}
		if batch.Dones[0] != test.wantDone {
			t.Errorf("%v: done want(%v) have(%v)", test.dones, test.wantDone,
				batch.Dones[0])
		}
	}
}

func TestInvalidDoneRule(t *testing.T) {
	config := DefaultConfig()
	config.DoneRule = "Majority"
	if _, err := New(config); err == nil {
		t.Error("new: expected error for unknown done rule")
	}
}

func TestGetBatchFlushesPending(t *testing.T) {
	b := newBuffer(t, DefaultConfig())
	decide(t, b, 0)
	outcome(t, b, 1, true, false)
	outcome(t, b, 2, true, false)

	if b.Size() != 0 || b.Pending() != 2 {
		t.Fatalf("size/pending: want(0, 2) have(%v, %v)", b.Size(), b.Pending())
	}

	batch, err := b.GetBatch(0.99, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Size != 1 || batch.Rewards[0] != 3 || !batch.Dones[0] {
		t.Errorf("flush: want(size 1, reward 3, done) have(%v, %v, %v)",
			batch.Size, batch.Rewards[0], batch.Dones[0])
	}
	if b.Pending() != 0 {
		t.Errorf("pending: want(0) have(%v)", b.Pending())
	}
}

func TestPhase(t *testing.T) {
	b := newBuffer(t, DefaultConfig())
	if b.Phase() != Committed {
		t.Fatalf("phase: want(%v) have(%v)", Committed, b.Phase())
	}

	decide(t, b, 0)
	if b.Phase() != AwaitingOutcome {
		t.Fatalf("phase: want(%v) have(%v)", AwaitingOutcome, b.Phase())
	}

	outcome(t, b, 1, false, false)
	if b.Phase() != AwaitingOutcome {
		t.Fatalf("phase: want(%v) have(%v)", AwaitingOutcome, b.Phase())
	}

	outcome(t, b, 1, false, true)
	if b.Phase() != Committed {
		t.Fatalf("phase: want(%v) have(%v)", Committed, b.Phase())
	}
}

func TestStrictAlternation(t *testing.T) {
	config := DefaultConfig()
	config.StrictAlternation = true
	b := newBuffer(t, config)

	err := b.UpdateSecondPart(ts.NewOutcome(1, false), true)
	if !IsOutOfOrder(err) {
		t.Errorf("updateSecondPart: want(%v) have(%v)", ErrOutOfOrder, err)
	}

	decide(t, b, 0)
	err = b.AddFirstPart(ts.NewDecision(vec(0, 0), vec(1), 0))
	if !IsOutOfOrder(err) {
		t.Errorf("addFirstPart: want(%v) have(%v)", ErrOutOfOrder, err)
	}

	outcome(t, b, 1, false, true)
	decide(t, b, 0)
	if b.Size() != 1 {
		t.Errorf("size: want(1) have(%v)", b.Size())
	}
}

func TestLengthDesyncRepair(t *testing.T) {
	b := newBuffer(t, DefaultConfig())
	decide(t, b, 1)
	outcome(t, b, 1, false, true)
	decide(t, b, 2)
	outcome(t, b, 1, false, true)
	decide(t, b, 3)

	batch, err := b.GetBatch(0.99, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Size != 2 {
		t.Errorf("size: want(2) have(%v)", batch.Size)
	}
	if len(batch.States) != 2*batch.StateDim {
		t.Errorf("states: want(%v) have(%v)", 2*batch.StateDim,
			len(batch.States))
	}
	if batch.Values[1] != 2 {
		t.Errorf("values: want([1 2]) have(%v)", batch.Values)
	}
	if b.Desyncs() != 1 {
		t.Errorf("desyncs: want(1) have(%v)", b.Desyncs())
	}
}

func TestOutcomesWithoutDecisions(t *testing.T) {
	b := newBuffer(t, DefaultConfig())
	outcome(t, b, 1, false, true)

	if _, err := b.GetBatch(0.99, 0.95); !IsEmptyTrajectory(err) {
		t.Errorf("getBatch: want(%v) have(%v)", ErrEmptyTrajectory, err)
	}
	if b.Desyncs() != 1 {
		t.Errorf("desyncs: want(1) have(%v)", b.Desyncs())
	}
}

func TestShapeMismatch(t *testing.T) {
	b := newBuffer(t, DefaultConfig())
	decide(t, b, 0)
	outcome(t, b, 0, false, true)

	err := b.AddFirstPart(ts.NewDecision(vec(1, 2, 3), vec(1), 0))
	if err == nil {
		t.Error("addFirstPart: expected error on state length mismatch")
	}
	err = b.AddFirstPart(ts.NewDecision(vec(1, 2), vec(1, 2), 0))
	if err == nil {
		t.Error("addFirstPart: expected error on action length mismatch")
	}
	if err = b.AddFirstPart(ts.NewDecision(nil, vec(1), 0)); err == nil {
		t.Error("addFirstPart: expected error on nil state")
	}

	config := DefaultConfig()
	config.StateDim = 3
	fixed := newBuffer(t, config)
	if err = fixed.AddFirstPart(ts.NewDecision(vec(1, 2), vec(1), 0)); err == nil {
		t.Error("addFirstPart: expected error against configured state dim")
	}
}

func TestDisposeReleasesOnce(t *testing.T) {
	counter := releaseCounter{}
	b := newBuffer(t, DefaultConfig().WithReleaser(counter.release))

	var given []tensor.Tensor
	for i := 0; i < 3; i++ {
		state, action := vec(float64(i), 0), vec(1)
		given = append(given, state, action)
		if err := b.AddFirstPart(ts.NewDecision(state, action, 0)); err != nil {
			t.Fatal(err)
		}
		outcome(t, b, 1, false, true)
	}

	b.Dispose()
	b.Dispose()

	for i, tt := range given {
		if counter[tt] != 1 {
			t.Errorf("tensor %v: released %v times", i, counter[tt])
		}
	}
	if b.Size() != 0 || b.Pending() != 0 || b.Phase() != Committed {
		t.Errorf("dispose: buffer not reset")
	}
	if _, err := b.GetBatch(0.99, 0.95); !IsEmptyTrajectory(err) {
		t.Errorf("getBatch: want(%v) have(%v)", ErrEmptyTrajectory, err)
	}
}

func TestDisposeSharedTensors(t *testing.T) {
	counter := releaseCounter{}
	b := newBuffer(t, DefaultConfig().WithReleaser(counter.release))

	// One tensor used as both state and action
	shared := vec(5)
	if err := b.AddFirstPart(ts.NewDecision(shared, shared, 0)); err != nil {
		t.Fatal(err)
	}
	outcome(t, b, 1, false, true)

	// One state tensor reused across decisions
	state := vec(7)
	for i := 0; i < 3; i++ {
		if err := b.AddFirstPart(ts.NewDecision(state, vec(0), 0)); err != nil {
			t.Fatal(err)
		}
		outcome(t, b, 1, false, true)
	}

	b.Dispose()
	b.Dispose()

	if counter[shared] != 1 {
		t.Errorf("dispose: shared tensor released %v times, want 1",
			counter[shared])
	}
	if counter[state] != 1 {
		t.Errorf("dispose: reused state released %v times, want 1",
			counter[state])
	}
	if len(counter) != 5 {
		t.Errorf("dispose: want 5 released tensors have %v", len(counter))
	}
	for tt, n := range counter {
		if n != 1 {
			t.Errorf("dispose: tensor %v released %v times", tt, n)
		}
	}

	// Ownership starts over after disposal
	if err := b.AddFirstPart(ts.NewDecision(state, vec(0), 0)); err != nil {
		t.Fatal(err)
	}
	b.Dispose()
	if counter[state] != 2 {
		t.Errorf("dispose: reused state after reset released %v times, "+
			"want 2", counter[state])
	}
}

func TestDisposeWithOpenWindow(t *testing.T) {
	counter := releaseCounter{}
	b := newBuffer(t, DefaultConfig().WithReleaser(counter.release))
	state := vec(1, 1)
	if err := b.AddFirstPart(ts.NewDecision(state, vec(0), 0)); err != nil {
		t.Fatal(err)
	}
	outcome(t, b, 1, false, false)

	b.Dispose()
	if counter[state] != 1 {
		t.Errorf("dispose: state released %v times", counter[state])
	}
	if b.Pending() != 0 {
		t.Errorf("dispose: pending want(0) have(%v)", b.Pending())
	}
}

func TestLogProbsRoundTrip(t *testing.T) {
	b := newBuffer(t, DefaultConfig())
	for i := 0; i < 3; i++ {
		d := ts.NewDecisionWithLogProb(vec(0, 0), vec(0), 0, -float64(i))
		if err := b.AddFirstPart(d); err != nil {
			t.Fatal(err)
		}
		outcome(t, b, 0, false, true)
	}
	batch, err := b.GetBatch(0.99, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.LogProbs) != 3 || batch.LogProbs[2] != -2 {
		t.Errorf("logProbs: want([0 -1 -2]) have(%v)", batch.LogProbs)
	}

	// A single decision without a log-probability drops them all
	decide(t, b, 0)
	outcome(t, b, 0, false, true)
	batch, err = b.GetBatch(0.99, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if batch.LogProbs != nil {
		t.Errorf("logProbs: want(nil) have(%v)", batch.LogProbs)
	}
}

func TestBootstrap(t *testing.T) {
	b := newBuffer(t, DefaultConfig())
	decide(t, b, 0)
	outcome(t, b, 1, false, true)
	b.SetBootstrap(2)

	batch, err := b.GetBatch(0.5, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if batch.RawAdvantages[0] != 2 {
		t.Errorf("advantage: want(2) have(%v)", batch.RawAdvantages[0])
	}
}

func TestBatchDoesNotAlias(t *testing.T) {
	b := newBuffer(t, DefaultConfig())
	decide(t, b, 1)
	outcome(t, b, 1, false, true)

	first, err := b.GetBatch(0.99, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	first.Rewards[0] = 100
	first.States[0] = 100
	first.Advantages[0] = 100

	second, err := b.GetBatch(0.99, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if second.Rewards[0] != 1 || second.States[0] != 1 {
		t.Error("getBatch: batch aliases buffer storage")
	}
	if second.Advantages[0] != second.RawAdvantages[0] {
		t.Error("getBatch: advantages should equal raw advantages")
	}
}

func BenchmarkBuffer(b *testing.B) {
	config := DefaultConfig().WithReleaser(tensorutils.NoRelease)
	buffer, _ := New(config)
	state, action := vec(0, 0, 0, 0), vec(0, 0)

	for i := 0; i < b.N; i++ {
		buffer.AddFirstPart(ts.NewDecision(state, action, 0))
		buffer.UpdateSecondPart(ts.NewOutcome(1, false), false)
		buffer.UpdateSecondPart(ts.NewOutcome(1, false), true)
	}
	buffer.GetBatch(0.99, 0.95)
}
