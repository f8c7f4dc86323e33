package postgres

import (
	"context"
	"fmt"
)

func (s *Store) Contacts(ctx context.Context, accountID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `SELECT contact_id FROM contacts WHERE account_id = $1 ORDER BY contact_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return ids, nil
}

func (s *Store) AddContact(ctx context.Context, accountID, contactID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO contacts (account_id, contact_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, accountID, contactID)
	if err != nil {
		return fmt.Errorf("add contact: %w", err)
	}
	return nil
}

func (s *Store) RemoveContact(ctx context.Context, accountID, contactID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE account_id = $1 AND contact_id = $2`, accountID, contactID)
	if err != nil {
		return fmt.Errorf("remove contact: %w", err)
	}
	return nil
}
