package interfaces

import "context"

// RelationshipStore keeps each account's set of trusted contacts.
// Edges are directed.
type RelationshipStore interface {
	Contacts(ctx context.Context, accountID string) ([]string, error)
	AddContact(ctx context.Context, accountID, contactID string) error
	RemoveContact(ctx context.Context, accountID, contactID string) error
}
