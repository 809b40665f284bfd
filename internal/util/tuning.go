package util

import "time"

// networkConcurrency caps parallel reads against a network corpus
const networkConcurrency = 4

// ReadTuning holds the corpus read settings of ingest and dictionary builds
type ReadTuning struct {
	Concurrency int
	Retry       *RetryConfig
	Network     bool
	Mount       *MountInfo
}

// TuneForCorpus adapts read settings to the filesystem holding corpus.
// force overrides detection when non-nil.
func TuneForCorpus(corpus string, force *bool, concurrency int) *ReadTuning {
	t := &ReadTuning{
		Concurrency: concurrency,
		Retry:       DefaultRetryConfig(),
	}

	if force != nil {
		t.Network = *force
	} else if info, err := DetectMount(corpus); err != nil {
		WarnLog("Failed to detect filesystem of %s: %v", corpus, err)
	} else {
		t.Network = info.IsNetwork
		t.Mount = info
	}

	if t.Network {
		applyNetworkTuning(t)
		if t.Mount != nil {
			InfoLog("Corpus is on a %s mount (%s): %d readers, %d read attempts",
				t.Mount.Protocol, t.Mount.MountPath, t.Concurrency, t.Retry.MaxAttempts)
		} else {
			InfoLog("Network mode: %d readers, %d read attempts", t.Concurrency, t.Retry.MaxAttempts)
		}
	}
	return t
}

func applyNetworkTuning(t *ReadTuning) {
	if t.Concurrency <= 0 || t.Concurrency > networkConcurrency {
		t.Concurrency = networkConcurrency
	}
	t.Retry = &RetryConfig{
		MaxAttempts: 5,
		InitialWait: 250 * time.Millisecond,
		MaxWait:     10 * time.Second,
	}
}
