package memory

import (
	"time"

	"codeassist-be/internal/apperr"
	"codeassist-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

// TurnContextStore keeps pending multi-turn completion state in memory.
// Entries expire after the configured TTL so abandoned tool calls do not
// accumulate.
type TurnContextStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewTurnContextStore(ttl time.Duration, sweepInterval time.Duration) *TurnContextStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	return &TurnContextStore{
		cache: cache.New(ttl, sweepInterval),
		ttl:   ttl,
	}
}

func (s *TurnContextStore) Put(turn *entity.TurnContext) {
	s.cache.Set(turn.RequestId, turn, cache.DefaultExpiration)
}

func (s *TurnContextStore) Get(requestId string) (*entity.TurnContext, bool) {
	if x, found := s.cache.Get(requestId); found {
		return x.(*entity.TurnContext), true
	}
	return nil, false
}

// Take removes and returns the turn context for a request. A missing or
// expired entry reports NO_ACTIVE_CONVERSATION.
func (s *TurnContextStore) Take(requestId string) (*entity.TurnContext, error) {
	turn, found := s.Get(requestId)
	if !found {
		return nil, apperr.NoActiveConversation(requestId)
	}
	s.cache.Delete(requestId)
	return turn, nil
}

// AppendToolResult removes the parked turn and returns it with the tool
// round trip appended to its message history and the pending call
// cleared. A missing or expired entry reports NO_ACTIVE_CONVERSATION.
func (s *TurnContextStore) AppendToolResult(requestId, result string) (*entity.TurnContext, error) {
	turn, err := s.Take(requestId)
	if err != nil {
		return nil, err
	}
	resumed := *turn
	resumed.PriorMessages = turn.WithToolRoundTrip(result)
	resumed.PendingCall = nil
	resumed.CreatedAt = time.Now()
	return &resumed, nil
}

func (s *TurnContextStore) Remove(requestId string) {
	s.cache.Delete(requestId)
}

// SweepExpired evicts expired entries immediately instead of waiting
// for the background sweep tick.
func (s *TurnContextStore) SweepExpired() {
	s.cache.DeleteExpired()
}

func (s *TurnContextStore) Count() int {
	return s.cache.ItemCount()
}
