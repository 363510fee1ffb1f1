package docstore

import (
	"crypto/rand"
	"sync"
	"time"
)

// pushChars is the URL-safe, lexicographically ordered 64-character alphabet
// used for generated child keys. Keys generated later sort after keys
// generated earlier (within clock resolution), so ascending key order tracks
// creation order the way auto-ID keys are expected to.
const pushChars = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

var (
	pushMu       sync.Mutex
	lastPushTime int64
	lastRandPart [8]byte
)

// newPushKey generates a 16-character key: 8 chars encoding the current time
// in milliseconds, then 8 random chars. Two keys generated in the same
// millisecond reuse the previous random part incremented by one, which keeps
// same-millisecond keys strictly ascending.
func newPushKey(now time.Time) string {
	pushMu.Lock()
	defer pushMu.Unlock()

	ms := now.UnixMilli()
	var b [16]byte

	t := ms
	for i := 7; i >= 0; i-- {
		b[i] = pushChars[t%64]
		t /= 64
	}

	if ms == lastPushTime {
		// Same millisecond: increment the previous random part.
		for i := 7; i >= 0; i-- {
			lastRandPart[i]++
			if lastRandPart[i] < 64 {
				break
			}
			lastRandPart[i] = 0
		}
	} else {
		var r [8]byte
		if _, err := rand.Read(r[:]); err != nil {
			// crypto/rand failing is unrecoverable; fall back to zeros rather
			// than panicking in a key generator.
			r = [8]byte{}
		}
		for i := range r {
			r[i] %= 64
		}
		lastRandPart = r
	}
	lastPushTime = ms

	for i := 0; i < 8; i++ {
		b[8+i] = pushChars[lastRandPart[i]]
	}
	return string(b[:])
}
