package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// CircuitBreakerFetcher wraps a Fetcher with one circuit breaker per
// upstream host, so a dead download host stops costing a timeout per
// platform probe.
type CircuitBreakerFetcher struct {
	fetcher   *Fetcher
	threshold int64
	breakers  map[string]*circuit.Breaker
	mu        sync.RWMutex
}

// NewCircuitBreakerFetcher creates a new circuit breaker wrapper for a fetcher.
// A breaker trips after threshold consecutive failures; values below one use 5.
func NewCircuitBreakerFetcher(f *Fetcher, threshold int) *CircuitBreakerFetcher {
	if threshold < 1 {
		threshold = 5
	}
	return &CircuitBreakerFetcher{
		fetcher:   f,
		threshold: int64(threshold),
		breakers:  make(map[string]*circuit.Breaker),
	}
}

func (cbf *CircuitBreakerFetcher) getBreaker(host string) *circuit.Breaker {
	cbf.mu.RLock()
	breaker, exists := cbf.breakers[host]
	cbf.mu.RUnlock()

	if exists {
		return breaker
	}

	cbf.mu.Lock()
	defer cbf.mu.Unlock()

	if breaker, exists := cbf.breakers[host]; exists {
		return breaker
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(cbf.threshold),
	})
	cbf.breakers[host] = breaker
	return breaker
}

// call runs fn through the host's breaker. Missing artifacts are an answer,
// not an outage, and do not count towards tripping.
func (cbf *CircuitBreakerFetcher) call(rawURL string, fn func() error) error {
	host := extractHost(rawURL)
	breaker := cbf.getBreaker(host)

	if !breaker.Ready() {
		return &ProbeError{URL: rawURL, Err: fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)}
	}

	var answer error
	err := breaker.Call(func() error {
		err := fn()
		if errors.Is(err, ErrNotFound) {
			answer = err
			return nil
		}
		return err
	}, 0)
	if err != nil {
		return err
	}
	return answer
}

// Fetch wraps the underlying fetcher's Fetch with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Fetch(ctx context.Context, fetchURL string) (*Artifact, error) {
	var artifact *Artifact
	err := cbf.call(fetchURL, func() error {
		var err error
		artifact, err = cbf.fetcher.Fetch(ctx, fetchURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// Probe wraps the underlying fetcher's Probe with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Probe(ctx context.Context, probeURL string) (*Probe, error) {
	var probe *Probe
	err := cbf.call(probeURL, func() error {
		var err error
		probe, err = cbf.fetcher.Probe(ctx, probeURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	return probe, nil
}

// extractHost returns the breaker key for a URL.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}

// BreakerStates returns "open" or "closed" per host seen so far.
func (cbf *CircuitBreakerFetcher) BreakerStates() map[string]string {
	cbf.mu.RLock()
	defer cbf.mu.RUnlock()

	states := make(map[string]string)
	for host, breaker := range cbf.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}
