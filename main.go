package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/rollout/agent"
	"github.com/samuelfneumann/rollout/agent/policy"
	"github.com/samuelfneumann/rollout/buffer/router"
	"github.com/samuelfneumann/rollout/buffer/trajectory"
	"github.com/samuelfneumann/rollout/environment"
	"github.com/samuelfneumann/rollout/environment/swarm"
	"github.com/samuelfneumann/rollout/experiment/tracker"
	"github.com/samuelfneumann/rollout/timestep"
	"github.com/samuelfneumann/rollout/utils/progressbar"
)

var (
	configFile = flag.String("config", "", "JSON run configuration file")
	progress   = flag.Bool("progress", true, "display a progress bar")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	c := DefaultRunConfig()
	if *configFile != "" {
		var err error
		if c, err = LoadRunConfig(*configFile); err != nil {
			glog.Fatal(err)
		}
	}

	var out io.Writer = io.Discard
	if *progress {
		out = os.Stdout
	}

	summary, err := Run(c, &statsLearner{}, out)
	if err != nil {
		glog.Fatal(err)
	}
	fmt.Fprintf(out, "\n%v\n", summary)
}

// Summary summarizes a run
type Summary struct {
	Transitions int
	Episodes    int
	Desyncs     int
	MeanReturn  float64
}

func (s Summary) String() string {
	return fmt.Sprintf("transitions: %v | episodes: %v | desyncs: %v | "+
		"mean return: %.3f", s.Transitions, s.Episodes, s.Desyncs,
		s.MeanReturn)
}

// Run runs the collection cycles described by c. At the end of each
// cycle the merged batch and its sampled minibatches are given to
// learner. Progress is written to out.
func Run(c RunConfig, learner agent.Learner, out io.Writer) (Summary, error) {
	if err := c.Validate(); err != nil {
		return Summary{}, errors.Wrap(err, "run")
	}

	env, err := swarm.New(c.Env)
	if err != nil {
		return Summary{}, errors.Wrap(err, "run")
	}
	pol, err := policy.NewLinearGaussian(swarm.ObservationLen,
		swarm.ActionLen, c.PolicyStd, c.MaxMean, c.WeightScale, c.Seed)
	if err != nil {
		return Summary{}, errors.Wrap(err, "run")
	}
	defer pol.Close()

	r, err := router.New(c.Trajectory, c.Seed, router.WithNormalize(c.Normalize))
	if err != nil {
		return Summary{}, errors.Wrap(err, "run")
	}
	defer r.Dispose()

	returns := tracker.NewReturn(c.ReturnsFile)
	lengths := tracker.NewEpisodeLength(c.LengthsFile)
	trackers := []tracker.Tracker{returns, lengths}

	for i := 0; i < c.Agents; i++ {
		env.Spawn()
	}

	bar := progressbar.NewManualProgressBar(out, 40, c.Cycles)
	var summary Summary
	for cycle := 0; cycle < c.Cycles; cycle++ {
		if err := collect(c, env, pol, r, trackers); err != nil {
			return summary, errors.Wrapf(err, "run: cycle %v", cycle)
		}

		batch, err := r.GetBatch(c.Trajectory.Gamma, c.Trajectory.Lambda)
		if err != nil {
			return summary, errors.Wrapf(err, "run: cycle %v", cycle)
		}
		summary.Transitions += batch.Size
		summary.Desyncs += r.Desyncs()

		minibatches, err := sample(c, cycle, batch)
		if err != nil {
			return summary, errors.Wrapf(err, "run: cycle %v", cycle)
		}
		if err := learner.Learn(batch, minibatches); err != nil {
			return summary, errors.Wrapf(err, "run: cycle %v", cycle)
		}
		r.Dispose()

		for n := len(env.Agents()); n < c.Agents; n++ {
			id, _ := env.Spawn()
			glog.V(1).Infof("run: spawned %q", id)
		}

		bar.Increment()
		bar.Describe(fmt.Sprintf("cycle %v: %v transitions", cycle+1,
			batch.Size))
		bar.Display()
	}

	summary.Episodes = len(returns.Data())
	if summary.Episodes > 0 {
		summary.MeanReturn = stat.Mean(returns.Data(), nil)
	}

	if c.ReturnsFile != "" {
		if err := returns.Save(); err != nil {
			return summary, errors.Wrap(err, "run")
		}
	}
	if c.LengthsFile != "" {
		if err := lengths.Save(); err != nil {
			return summary, errors.Wrap(err, "run")
		}
	}
	return summary, nil
}

// collect runs one collection cycle. Every live agent makes a decision,
// which is held for FrameSkip ticks or until its episode ends. Agents
// still running at the end of the cycle have their trajectory
// bootstrapped with the critic's value of their last observation.
func collect(c RunConfig, env environment.Environment,
	pol agent.ActorCritic, r *router.Router,
	trackers []tracker.Tracker) error {
	for step := 0; step < c.StepsPerCycle && len(env.Agents()) > 0; step++ {
		ids := env.Agents()
		actions := make([]environment.Action, 0, len(ids))
		for _, id := range ids {
			obs, err := env.Observe(id)
			if err != nil {
				return errors.Wrap(err, "collect")
			}
			d, action, err := pol.Act(obs)
			if err != nil {
				return errors.Wrap(err, "collect")
			}
			if err := r.AddFirstPart(router.AgentID(id), d); err != nil {
				return errors.Wrap(err, "collect")
			}
			actions = append(actions, environment.Action{ID: id, Value: action})
		}

		for tick := 0; tick < c.FrameSkip && len(env.Agents()) > 0; tick++ {
			steps, err := env.Tick(actions)
			if err != nil {
				return errors.Wrap(err, "collect")
			}
			actions = nil

			for _, s := range steps {
				for _, t := range trackers {
					t.Track(s)
				}
				isLast := s.Done || tick == c.FrameSkip-1
				err := r.UpdateSecondPart(router.AgentID(s.ID),
					timestep.NewOutcome(s.Reward, s.Done), isLast)
				if err != nil {
					return errors.Wrap(err, "collect")
				}
				if s.Done {
					glog.V(1).Infof("collect: %q finished after %v ticks",
						s.ID, s.Number)
				}
			}
		}
	}

	for _, id := range env.Agents() {
		obs, err := env.Observe(id)
		if err != nil {
			return errors.Wrap(err, "collect")
		}
		value, err := pol.Value(obs)
		if err != nil {
			return errors.Wrap(err, "collect")
		}
		err = r.SetBootstrap(router.AgentID(id), value)
		if err != nil && !router.IsUnknownAgent(err) {
			return errors.Wrap(err, "collect")
		}
	}
	return nil
}

// sample draws Epochs minibatches of a batch, biased towards the rows
// with the largest advantage magnitude
func sample(c RunConfig, cycle int, batch *trajectory.Batch) ([][]int,
	error) {
	replay := c.Replay
	replay.Seed += uint64(cycle)

	s, err := replay.Create(batch.Size, batch.RawAdvantages)
	if err != nil {
		return nil, errors.Wrap(err, "sample")
	}

	minibatches := make([][]int, c.Epochs)
	for i := range minibatches {
		minibatches[i] = replay.Sample(s)
	}
	return minibatches, nil
}

// statsLearner logs statistics of the batches it is given and makes no
// updates
type statsLearner struct {
	batches int
	rows    int
}

// Learn logs the return and advantage statistics of each minibatch
func (s *statsLearner) Learn(batch *trajectory.Batch,
	minibatches [][]int) error {
	s.batches++

	mean, std := stat.MeanStdDev(batch.Returns, nil)
	glog.Infof("learn: batch %v: %v rows, return %.3f ± %.3f, dones %v",
		s.batches, batch.Size, mean, std, countDones(batch.Dones))

	for i, rows := range minibatches {
		adv := make([]float64, len(rows))
		for j, row := range rows {
			adv[j] = batch.Advantages[row]
		}
		s.rows += len(rows)

		if len(adv) == 0 {
			continue
		}
		magnitude := floats.Norm(adv, 1) / float64(len(adv))
		if math.IsNaN(magnitude) {
			return fmt.Errorf("learn: NaN advantage in minibatch %v", i)
		}
		glog.V(1).Infof("learn: minibatch %v: mean |advantage| %.3f", i,
			magnitude)
	}
	return nil
}

func countDones(dones []bool) int {
	n := 0
	for _, d := range dones {
		if d {
			n++
		}
	}
	return n
}
