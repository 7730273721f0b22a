package presig

import (
	"context"

	"github.com/chippr-robotics/sigil/internal/container"
	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/chippr-robotics/sigil/internal/primitives"
	"golang.org/x/sync/errgroup"
)

// slotResult is the per-slot output of generateSlot, computed
// independently of every other slot.
type slotResult struct {
	cold  container.PresigColdShare
	agent container.PresigAgentShare
}

// GenerateBatch produces n independent presignature pairs bound to
// child shares and the given accumulator (version, hash), per spec
// §4.3. Generation is all-or-nothing: any per-slot failure, or an
// R-point collision across the batch, discards the entire batch with no
// side effects (errgroup cancels the remaining goroutines on first
// error, matching the pack's MPC reference file's use of errgroup for
// per-party fan-out).
func GenerateBatch(ctx context.Context, n int, child ChildShares, accVersion uint64, accHash [32]byte) (Batch, error) {
	if n <= 0 || n > container.MaxPresigSlots {
		return Batch{}, errs.New(errs.KindInvalidArgument, "batch size %d out of range [1,%d]", n, container.MaxPresigSlots)
	}

	results := make([]slotResult, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := generateSlot(child)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, errs.Wrap(errs.KindIO, err, "presig batch generation failed")
	}

	if err := checkRPointUniqueness(results); err != nil {
		return Batch{}, err
	}

	batch := Batch{
		ColdShares:  make([]container.PresigColdShare, n),
		AgentShares: make([]container.PresigAgentShare, n),
		Bindings:    make([]container.AccumulatorBinding, n),
	}
	for i, r := range results {
		batch.ColdShares[i] = r.cold
		batch.AgentShares[i] = r.agent
		batch.Bindings[i] = container.AccumulatorBinding{
			MinAccumulatorVersion: accVersion,
			AccumulatorHash:       accHash,
		}
	}
	return batch, nil
}

// generateSlot implements spec §4.3 steps 1-4 for a single slot,
// resampling k_cold/k_agent on the negligible-probability event that
// R.x mod n == 0.
func generateSlot(child ChildShares) (slotResult, error) {
	var res slotResult
	for attempt := 0; attempt < 8; attempt++ {
		kCold, err := primitives.RandScalarDefault()
		if err != nil {
			return res, err
		}
		kAgent, err := primitives.RandScalarDefault()
		if err != nil {
			return res, err
		}

		k := primitives.AddScalars(&kCold, &kAgent)
		R := primitives.ScalarBaseMult(&k)
		r := primitives.XAsScalar(R)
		if r.IsZero() {
			continue
		}

		chiCold := primitives.MulScalars(&kCold, &child.Cold)
		chiAgent := primitives.MulScalars(&kAgent, &child.Agent)

		rEnc := primitives.EncodePoint(R)
		res.cold = container.PresigColdShare{
			R:       rEnc,
			KCold:   primitives.EncodeScalar(&kCold),
			ChiCold: primitives.EncodeScalar(&chiCold),
			Status:  container.StatusFresh,
		}
		res.agent = container.PresigAgentShare{
			R:        rEnc,
			KAgent:   primitives.EncodeScalar(&kAgent),
			ChiAgent: primitives.EncodeScalar(&chiAgent),
		}
		return res, nil
	}
	return res, errs.New(errs.KindIO, "presig generation: exhausted resample attempts")
}

// checkRPointUniqueness enforces the "all 1000 R points distinct" rule
// by explicit set check before the batch is committed (spec §4.3).
func checkRPointUniqueness(results []slotResult) error {
	seen := make(map[[33]byte]int, len(results))
	for i, r := range results {
		if j, ok := seen[r.cold.R]; ok {
			return errs.New(errs.KindRPointCollision, "duplicate R point between slots %d and %d", j, i)
		}
		seen[r.cold.R] = i
	}
	return nil
}
