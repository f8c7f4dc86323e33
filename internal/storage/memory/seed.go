package memory

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

// Seed is the fixture format accepted by LoadSeed.
type Seed struct {
	Accounts       []models.Account      `json:"accounts"`
	SellerEntities []models.SellerEntity `json:"seller_entities"`
	Products       []models.Product      `json:"products"`
	Contacts       map[string][]string   `json:"contacts"`
}

// LoadSeed fills the directory from a JSON fixture. Balances in the fixture
// are ignored; points only enter through the ledger.
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, a := range seed.Accounts {
		a.Balance = 0
		s.PutAccount(a)
	}
	for _, e := range seed.SellerEntities {
		s.PutSellerEntity(e)
	}
	for _, p := range seed.Products {
		s.PutProduct(p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for owner, ids := range seed.Contacts {
		set, ok := s.contacts[owner]
		if !ok {
			set = make(map[string]struct{}, len(ids))
			s.contacts[owner] = set
		}
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}
	return nil
}
