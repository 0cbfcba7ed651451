package quota

import (
	"context"
	"hash/fnv"
	"sync"
)

const defaultShards = 32

// LocalStore keeps counters in process memory. It is safe for concurrent use inside one
// process but is not shared between instances.
type LocalStore struct {
	shards []*localShard
}

type localShard struct {
	mu       sync.Mutex
	counters map[string]localCounter
	swept    int64
}

type localCounter struct {
	count int
	day   int64
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates an in-process store split into the given number of lock shards.
func NewLocalStore(shards int) *LocalStore {
	if shards <= 0 {
		shards = defaultShards
	}
	s := &LocalStore{shards: make([]*localShard, shards)}
	for i := range s.shards {
		s.shards[i] = &localShard{counters: make(map[string]localCounter)}
	}
	return s
}

func (s *LocalStore) shard(userID string) *localShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get returns the count for day. A counter stored for any other day reads as 0.
func (s *LocalStore) Get(_ context.Context, userID string, day int64) (int, error) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.counters[userID]
	if !ok || c.day != day {
		return 0, nil
	}
	return c.count, nil
}

// Increment resets a counter left over from another day before counting.
func (s *LocalStore) Increment(_ context.Context, userID string, day int64) (int, error) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.sweep(day)

	c := sh.counters[userID]
	if c.day != day {
		c = localCounter{day: day}
	}
	c.count++
	sh.counters[userID] = c
	return c.count, nil
}

// sweep drops counters older than yesterday, once per shard per day. Caller holds mu.
func (sh *localShard) sweep(day int64) {
	if day <= sh.swept {
		return
	}
	for uid, c := range sh.counters {
		if c.day < day-1 {
			delete(sh.counters, uid)
		}
	}
	sh.swept = day
}

// Len reports the number of live counters, for tests and diagnostics.
func (s *LocalStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.counters)
		sh.mu.Unlock()
	}
	return n
}
