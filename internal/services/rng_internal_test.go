package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestARC4StreamMatchesSeedrandom(t *testing.T) {
	s := newARC4Stream("hello.")
	assert.Equal(t, 0.9282578795792454, s.Float64())
}

func TestARC4StreamUnitInterval(t *testing.T) {
	s := newARC4Stream("bounds")
	for i := 0; i < 10000; i++ {
		u := s.Float64()
		if u < 0 || u >= 1 {
			t.Fatalf("draw %d out of [0, 1): %v", i, u)
		}
	}
}

func TestMixKey(t *testing.T) {
	assert.Equal(t, []byte{0}, mixKey(""))
	assert.Len(t, mixKey("abc"), 3)

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, mixKey(string(long)), 256)
}
