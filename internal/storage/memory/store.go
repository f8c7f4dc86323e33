package memory

import (
	"sync"

	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

// Store is an in-memory implementation of every store the core needs.
// It is safe for concurrent use.
//
// Two levels of locking are used: a mutex per account serializes
// check-then-write sequences on that account's balance and entries, and mu
// guards the maps themselves for the short time they are read or written.
type Store struct {
	muMap map[string]*sync.Mutex // per-account lock, created on demand
	mapMu sync.Mutex             // protects muMap

	mu        sync.RWMutex
	accounts  map[string]*models.Account
	entities  map[string]*models.SellerEntity
	products  map[string]*models.Product
	contacts  map[string]map[string]struct{}
	entries   []models.LedgerEntry
	witnesses map[string]struct{} // uniqueness keys for one-time entries
	orders    map[string]*models.Order
	proposals map[string]*models.BarterProposal
}

func NewStore() *Store {
	return &Store{
		muMap:     make(map[string]*sync.Mutex),
		accounts:  make(map[string]*models.Account),
		entities:  make(map[string]*models.SellerEntity),
		products:  make(map[string]*models.Product),
		contacts:  make(map[string]map[string]struct{}),
		witnesses: make(map[string]struct{}),
		orders:    make(map[string]*models.Order),
		proposals: make(map[string]*models.BarterProposal),
	}
}

func (s *Store) getAccountLock(accountID string) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	// Locks are never removed, so a returned mutex stays the account's lock.
	if _, exists := s.muMap[accountID]; !exists {
		s.muMap[accountID] = &sync.Mutex{}
	}
	return s.muMap[accountID]
}

// lockPair locks two accounts in id order to avoid deadlocks and returns the
// matching unlock.
func (s *Store) lockPair(a, b string) func() {
	// One account would lock the same mutex twice.
	if a == b {
		lock := s.getAccountLock(a)
		lock.Lock()
		return lock.Unlock
	}
	first, second := s.getAccountLock(a), s.getAccountLock(b)
	// Every caller takes the lower id first, so two transfers in
	// opposite directions cannot each hold the lock the other wants.
	if b < a {
		first, second = second, first
	}
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}

// Compile-time checks: Store implements every store interface.
var (
	_ interfaces.LedgerStore       = (*Store)(nil)
	_ interfaces.RelationshipStore = (*Store)(nil)
	_ interfaces.ExchangeStore     = (*Store)(nil)
	_ interfaces.Directory         = (*Store)(nil)
)
