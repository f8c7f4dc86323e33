package memory

import (
	"context"
	"sort"
)

// Contacts returns the account's trusted contacts in a stable order.
// Unknown accounts simply have no contacts.
func (s *Store) Contacts(ctx context.Context, accountID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.contacts[accountID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) AddContact(ctx context.Context, accountID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.contacts[accountID]
	if !ok {
		set = make(map[string]struct{})
		s.contacts[accountID] = set
	}
	set[contactID] = struct{}{}
	return nil
}

func (s *Store) RemoveContact(ctx context.Context, accountID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.contacts[accountID], contactID)
	return nil
}
