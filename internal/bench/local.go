// Package bench drives local, co-located benchmark runs of the threshold
// signing protocol and reports per-round timing and message sizes.
package bench

import (
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/btc-vision/noble-post-quantum/sign/mldsa"
	"github.com/btc-vision/noble-post-quantum/sign/thmldsa"
)

// Config selects what a local run measures.
type Config struct {
	Level     int
	Threshold int
	Parties   int
	Iter      int
}

// Run generates fresh threshold keys and signs once per iteration with the
// first T parties, logging per-round averages.
func Run(log *zap.SugaredLogger, cfg Config) error {
	params, err := thmldsa.GetParams(cfg.Level, uint8(cfg.Threshold), uint8(cfg.Parties))
	if err != nil {
		return err
	}
	mode, err := mldsa.ModeByLevel(cfg.Level)
	if err != nil {
		return err
	}

	round1Ms := make([]float64, 0, cfg.Iter)
	round2Ms := make([]float64, 0, cfg.Iter)
	round3Ms := make([]float64, 0, cfg.Iter)
	combineMs := make([]float64, 0, cfg.Iter)

	msg := []byte("message")

	for run := 0; run < cfg.Iter; run++ {
		log.Infow("start of run", "run", run, "t", cfg.Threshold, "n", cfg.Parties)

		start := time.Now()
		pk, shares, err := thmldsa.GenerateThresholdKey(nil, params)
		if err != nil {
			return err
		}
		log.Infow("key generation", "took", time.Since(start))

		active := shares[:cfg.Threshold]
		activeIDs := make([]uint8, cfg.Threshold)
		for i, ks := range active {
			activeIDs[i] = ks.ID
		}

		verifier, err := mode.UnpackPublicKey(pk.Bytes())
		if err != nil {
			return err
		}

		var sig []byte
		attempts := 0
		for nonce := uint16(0); sig == nil && nonce < 500; nonce++ {
			attempts++

			hashes := make([][]byte, cfg.Threshold)
			st1s := make([]*thmldsa.Round1State, cfg.Threshold)
			start = time.Now()
			for i, ks := range active {
				hashes[i], st1s[i], err = thmldsa.Round1(ks, nonce, nil)
				if err != nil {
					return err
				}
			}
			round1Ms = append(round1Ms, msSince(start))

			cmts := make([][]byte, cfg.Threshold)
			st2s := make([]*thmldsa.Round2State, cfg.Threshold)
			start = time.Now()
			for i, ks := range active {
				cmts[i], st2s[i], err = thmldsa.Round2(ks, activeIDs, msg, nil, hashes, st1s[i])
				if err != nil {
					return err
				}
			}
			round2Ms = append(round2Ms, msSince(start))

			resps := make([][]byte, cfg.Threshold)
			start = time.Now()
			for i, ks := range active {
				resps[i], err = thmldsa.Round3(ks, cmts, st1s[i], st2s[i])
				if err != nil {
					return err
				}
			}
			round3Ms = append(round3Ms, msSince(start))

			start = time.Now()
			sig, err = thmldsa.Combine(pk, msg, nil, cmts, resps, params)
			if err != nil {
				return err
			}
			combineMs = append(combineMs, msSince(start))

			for i := range active {
				st1s[i].Destroy()
				st2s[i].Destroy()
			}

			if nonce == 0 {
				log.Infow("message sizes",
					"round1", len(hashes[0]),
					"round2", len(cmts[0]),
					"round3", len(resps[0]))
			}
		}
		if sig == nil {
			log.Errorw("no attempt produced a signature", "run", run)
			continue
		}
		log.Infow("signature produced", "attempts", attempts, "bytes", len(sig))

		start = time.Now()
		if !mode.Verify(verifier, msg, nil, sig) {
			log.Errorw("verification failed", "run", run)
			continue
		}
		log.Infow("verification", "took", time.Since(start))
	}

	logStats(log, "round1", round1Ms)
	logStats(log, "round2", round2Ms)
	logStats(log, "round3", round3Ms)
	logStats(log, "combine", combineMs)
	return nil
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func logStats(log *zap.SugaredLogger, phase string, values []float64) {
	if len(values) == 0 {
		return
	}
	mean, _ := stats.Mean(values)
	median, _ := stats.Median(values)
	stddev, _ := stats.StandardDeviation(values)
	log.Infow("phase timing (ms)", "phase", phase, "mean", mean, "median", median, "stddev", stddev)
}
