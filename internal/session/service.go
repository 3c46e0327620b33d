package session

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/slatelabs/slatesync/internal/event"
	"github.com/slatelabs/slatesync/internal/store"
)

// DefaultSyncTimeout bounds the wait for a synchronization response from a
// client before its session is torn down.
const DefaultSyncTimeout = 3 * time.Second

// Service is the backend-side root of the protocol. It owns the store, the
// backend's own participant identity, and the registry of live sessions.
type Service struct {
	identity event.Participant
	store    *store.Store

	nextSessionID atomic.Int64

	mu          sync.Mutex
	syncTimeout time.Duration
	sessions    map[string]*Session
}

// NewService creates a service around st. Each service instance gets a
// unique backend identity.
func NewService(name string, st *store.Store) *Service {
	return &Service{
		identity: event.Participant{
			Kind: event.KindBackend,
			ID:   uuid.NewString(),
			Name: name,
		},
		store:       st,
		syncTimeout: DefaultSyncTimeout,
		sessions:    make(map[string]*Session),
	}
}

// SetSyncTimeout overrides the handshake timeout for sessions created
// afterward. Intended for tests.
func (svc *Service) SetSyncTimeout(d time.Duration) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.syncTimeout = d
}

// Identity returns the backend's own participant identity.
func (svc *Service) Identity() event.Participant {
	return svc.identity
}

func (svc *Service) Store() *store.Store {
	return svc.store
}

// NewSession allocates a client identity and a session for one accepted
// connection. The session communicates once Run is called.
func (svc *Service) NewSession(transport Transport) *Session {
	svc.mu.Lock()
	syncTimeout := svc.syncTimeout
	svc.mu.Unlock()

	n := svc.nextSessionID.Add(1)
	return &Session{
		service: svc,
		identity: event.Participant{
			Kind: event.KindClient,
			ID:   strconv.FormatInt(n, 10),
			Name: fmt.Sprintf("%s session #%d", svc.identity.Name, n),
		},
		transport:     transport,
		syncTimeout:   syncTimeout,
		syncResponses: make(chan event.SyncResponse),
	}
}

// SessionCount reports how many sessions are currently communicating.
func (svc *Service) SessionCount() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return len(svc.sessions)
}

func (svc *Service) register(s *Session) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.sessions[s.identity.ID] = s
}

func (svc *Service) unregister(s *Session) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	delete(svc.sessions, s.identity.ID)
}
