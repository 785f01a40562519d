// Package rng implements the two concentric loops that keep the roll
// executor supplied with fresh, unpredictable seeds: a CSPRNG holder actor
// with a single owner, and a reseed ticker that feeds it fresh entropy on
// a schedule.
package rng

import (
	"context"
	cryptorand "crypto/rand"
	"fmt"
	mathrand "math/rand/v2"
	"time"
)

// Seed is the 32-byte value handed to a roll job; the job derives its own
// fast, non-cryptographic PRNG from it and never shares that PRNG with
// another job.
type Seed [32]byte

type getSeedMsg struct {
	reply chan Seed
}

type reseedMsg struct {
	src *mathrand.ChaCha8
}

// Provider is the CSPRNG holder. It is the sole owner of its entropy
// source; every other goroutine reaches it only by sending messages, so
// the generator itself never needs a mutex.
type Provider struct {
	getSeed chan getSeedMsg
	reseed  chan reseedMsg
	done    chan struct{}
}

// NewProvider starts the holder goroutine, seeded immediately from the
// system CSPRNG, and returns a handle to it. Cancel ctx to shut it down;
// Done reports when the holder goroutine has exited.
func NewProvider(ctx context.Context) (*Provider, error) {
	initial, err := freshChaCha8()
	if err != nil {
		return nil, fmt.Errorf("rng: initial seed: %w", err)
	}
	p := &Provider{
		getSeed: make(chan getSeedMsg),
		reseed:  make(chan reseedMsg),
		done:    make(chan struct{}),
	}
	go p.run(ctx, initial)
	return p, nil
}

func (p *Provider) run(ctx context.Context, src *mathrand.ChaCha8) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.getSeed:
			var s Seed
			if _, err := src.Read(s[:]); err != nil {
				// ChaCha8.Read never errors in practice; fall back to a
				// re-seeded generator rather than handing out a zero seed.
				if fresh, ferr := freshChaCha8(); ferr == nil {
					src = fresh
					_, _ = src.Read(s[:])
				}
			}
			select {
			case msg.reply <- s:
			case <-ctx.Done():
				return
			}
		case msg := <-p.reseed:
			src = msg.src
		}
	}
}

// GetSeed requests a fresh 32-byte seed from the CSPRNG holder.
func (p *Provider) GetSeed(ctx context.Context) (Seed, error) {
	reply := make(chan Seed, 1)
	select {
	case p.getSeed <- getSeedMsg{reply: reply}:
	case <-ctx.Done():
		return Seed{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Seed{}, ctx.Err()
	}
}

// Reseed replaces the holder's CSPRNG with src.
func (p *Provider) Reseed(ctx context.Context, src *mathrand.ChaCha8) error {
	select {
	case p.reseed <- reseedMsg{src: src}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done reports a channel closed once the holder goroutine has exited.
func (p *Provider) Done() <-chan struct{} { return p.done }

func freshChaCha8() (*mathrand.ChaCha8, error) {
	var seed [32]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		return nil, err
	}
	return mathrand.NewChaCha8(seed), nil
}

// RunReseedTicker constructs a fresh CSPRNG from system entropy every
// period and sends it to p, until ctx is cancelled.
func RunReseedTicker(ctx context.Context, p *Provider, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fresh, err := freshChaCha8()
			if err != nil {
				continue
			}
			if err := p.Reseed(ctx, fresh); err != nil {
				return
			}
		}
	}
}

// FastRNG derives a non-cryptographic, per-job PRNG from a Seed. The
// returned generator must not be shared across jobs.
type FastRNG struct {
	r *mathrand.Rand
}

// NewFastRNG builds a fast PRNG from a 32-byte seed obtained from the
// Provider.
func NewFastRNG(seed Seed) *FastRNG {
	var a, b uint64
	for i := 0; i < 8; i++ {
		a = a<<8 | uint64(seed[i])
		b = b<<8 | uint64(seed[i+8])
	}
	return &FastRNG{r: mathrand.New(mathrand.NewPCG(a, b))}
}

// IntN returns a value in [0, n). It implements diceeval.RNG.
func (f *FastRNG) IntN(n int64) int64 {
	return f.r.Int64N(n)
}
