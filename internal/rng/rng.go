// Package rng provides injectable uniform random sources.
package rng

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Source is a uniform random generator. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// NewSeeded returns a deterministic source for seed.
func NewSeeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// NewSeed returns a seed derived from the current time.
func NewSeed() int64 {
	return time.Now().UnixNano()
}

// Stream derives a replayable byte stream from a seed phrase with
// HMAC-SHA256 over "phrase:nonce:round", consuming 4 bytes per float.
type Stream struct {
	key    []byte
	phrase string
	nonce  uint64
	round  uint64
	pos    int
	buf    [32]byte
}

// NewStream returns a Stream for phrase and nonce.
func NewStream(phrase string, nonce uint64) *Stream {
	s := &Stream{key: []byte(phrase), phrase: phrase, nonce: nonce}
	s.fill()
	return s
}

func (s *Stream) fill() {
	h := hmac.New(sha256.New, s.key)
	_, _ = fmt.Fprintf(h, "%s:%d:%d", s.phrase, s.nonce, s.round)
	copy(s.buf[:], h.Sum(nil))
}

func (s *Stream) next() byte {
	if s.pos >= len(s.buf) {
		s.round++
		s.pos = 0
		s.fill()
	}
	b := s.buf[s.pos]
	s.pos++
	return b
}

// Float64 returns a value in [0, 1).
func (s *Stream) Float64() float64 {
	result := 0.0
	for i := 0; i < 4; i++ {
		result += float64(s.next()) / math.Pow(256, float64(i+1))
	}
	return result
}

// Intn returns a value in [0, n). It panics if n <= 0.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		panic("rng: invalid argument to Intn")
	}
	v := int(s.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// Shuffle permutes values in place using Fisher-Yates.
func Shuffle(src Source, values []int) {
	for i := len(values) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		values[i], values[j] = values[j], values[i]
	}
}
