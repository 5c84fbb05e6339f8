package tracker

import (
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/rollout/environment"
)

func TestReturn(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "returns.bin")
	r := NewReturn(filename)

	steps := []environment.Step{
		{ID: "a", Reward: 1, Number: 1},
		{ID: "b", Reward: 5, Number: 1},
		{ID: "a", Reward: 2, Number: 2, Done: true},
		{ID: "b", Reward: -1, Number: 2},
		{ID: "a", Reward: 7, Number: 1},
		{ID: "b", Reward: 1, Number: 3, Done: true},
	}
	for _, step := range steps {
		r.Track(step)
	}

	// The second episode of "a" has not finished
	want := []float64{3, 5}
	checkData(t, "return", want, r.Data())

	if err := r.Save(); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadData(filename)
	if err != nil {
		t.Fatal(err)
	}
	checkData(t, "loadData", want, loaded)
}

func TestEpisodeLength(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "lengths.bin")
	e := NewEpisodeLength(filename)
	e.Track(environment.Step{ID: "a", Number: 1})
	e.Track(environment.Step{ID: "a", Number: 2, Done: true})
	e.Track(environment.Step{ID: "b", Number: 4, Done: true})

	want := []float64{2, 4}
	checkData(t, "episodeLength", want, e.Data())

	if err := e.Save(); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadData(filename)
	if err != nil {
		t.Fatal(err)
	}
	checkData(t, "loadData", want, loaded)
}

func TestLoadDataMissing(t *testing.T) {
	if _, err := LoadData(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("loadData: expected error for missing file")
	}
}

func checkData(t *testing.T, op string, want, have []float64) {
	t.Helper()
	if len(want) != len(have) {
		t.Fatalf("%v: want(%v) have(%v)", op, want, have)
	}
	for i := range want {
		if want[i] != have[i] {
			t.Fatalf("%v: want(%v) have(%v)", op, want, have)
		}
	}
}
