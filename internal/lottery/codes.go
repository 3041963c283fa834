package lottery

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
)

const (
	codeLen      = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// RandomCodes generates ticket codes from a crypto-seeded PRNG. Safe for
// concurrent use.
type RandomCodes struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomCodes() *RandomCodes {
	return &RandomCodes{rng: rand.New(rand.NewSource(cryptoSeed()))}
}

func (c *RandomCodes) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, codeLen)
	for i := range buf {
		buf[i] = codeAlphabet[c.rng.Intn(len(codeAlphabet))]
	}
	return string(buf)
}

func cryptoSeed() int64 {
	var seedBytes [8]byte
	_, _ = crand.Read(seedBytes[:])
	return int64(binary.LittleEndian.Uint64(seedBytes[:]))
}
