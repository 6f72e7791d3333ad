package services

import (
	"crypto/rc4"
	"math"
	"strconv"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// AlgorithmARC4V1 names the outcome derivation used for new rounds. It is
// stored on every round; changing the stream or the scaling needs a new name.
const AlgorithmARC4V1 = "arc4-seedrandom-v1"

const (
	arc4Width    = 256
	arc4Chunks   = 6
	significance = 1 << 52
	overflow     = 1 << 53
)

// SeedString is the exact string the outcome stream is keyed with.
func SeedString(serverSeed, clientSeed string, nonce int64) string {
	return serverSeed + "-" + clientSeed + "-" + strconv.FormatInt(nonce, 10)
}

// DeriveNumbers returns count integers in [min, max] drawn from the stream
// seeded with serverSeed-clientSeed-nonce. The same inputs always produce the
// same sequence.
func DeriveNumbers(serverSeed, clientSeed string, nonce int64, count, min, max int) ([]int, error) {
	return DeriveNumbersVersion(AlgorithmARC4V1, serverSeed, clientSeed, nonce, count, min, max)
}

func DeriveNumbersVersion(algorithm, serverSeed, clientSeed string, nonce int64, count, min, max int) ([]int, error) {
	if algorithm != AlgorithmARC4V1 {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %q", algorithm)
	}
	if count < 0 || min < 0 || max < min {
		return nil, errors.Wrapf(ErrInvalidRange, "count=%d min=%d max=%d", count, min, max)
	}

	numbers := make([]int, 0, count)
	if count == 0 {
		return numbers, nil
	}

	stream := newARC4Stream(SeedString(serverSeed, clientSeed, nonce))
	span := float64(max - min + 1)
	for i := 0; i < count; i++ {
		u := stream.Float64()
		numbers = append(numbers, int(math.Floor(u*span))+min)
	}
	return numbers, nil
}

// arc4Stream reproduces the seedrandom ARC4 generator: the seed string is
// folded into a key, the first 256 keystream bytes are dropped, and each
// float carries 52 significant bits.
type arc4Stream struct {
	cipher *rc4.Cipher
	buf    [1]byte
}

func newARC4Stream(seed string) *arc4Stream {
	c, err := rc4.NewCipher(mixKey(seed))
	if err != nil {
		// mixKey always yields 1..256 bytes.
		panic(err)
	}
	s := &arc4Stream{cipher: c}
	for i := 0; i < arc4Width; i++ {
		s.next()
	}
	return s
}

func mixKey(seed string) []byte {
	units := utf16.Encode([]rune(seed))
	n := len(units)
	if n > arc4Width {
		n = arc4Width
	}
	if n == 0 {
		return []byte{0}
	}

	key := make([]int, n)
	smear := 0
	for j, u := range units {
		k := j & (arc4Width - 1)
		smear ^= key[k] * 19
		key[k] = (smear + int(u)) & (arc4Width - 1)
	}

	out := make([]byte, n)
	for i, v := range key {
		out[i] = byte(v)
	}
	return out
}

func (s *arc4Stream) next() uint64 {
	s.buf[0] = 0
	s.cipher.XORKeyStream(s.buf[:], s.buf[:])
	return uint64(s.buf[0])
}

func (s *arc4Stream) bytes(count int) uint64 {
	var r uint64
	for i := 0; i < count; i++ {
		r = r*arc4Width + s.next()
	}
	return r
}

// Float64 returns a value in [0, 1).
func (s *arc4Stream) Float64() float64 {
	n := s.bytes(arc4Chunks)
	d := math.Pow(arc4Width, arc4Chunks)
	var x uint64

	for n < significance {
		n = (n + x) * arc4Width
		d *= arc4Width
		x = s.next()
	}
	for n >= overflow {
		n /= 2
		d /= 2
		x >>= 1
	}
	return float64(n+x) / d
}
