package trust

import (
	"context"
	"errors"
	"fmt"

	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

// Contact is one entry of an account's contact list, with the owner's trust
// level toward it.
type Contact struct {
	AccountID  string `json:"account_id"`
	Name       string `json:"name"`
	Reputation int    `json:"reputation"`
	TrustLevel int    `json:"trust_level"`
}

// ContactBook edits the trusted-contact graph.
type ContactBook struct {
	store  interfaces.RelationshipStore
	dir    interfaces.Directory
	engine *Engine
}

func NewContactBook(store interfaces.RelationshipStore, dir interfaces.Directory, engine *Engine) *ContactBook {
	return &ContactBook{store: store, dir: dir, engine: engine}
}

// Add makes owner trust contactID. Adding an existing contact is a no-op.
func (b *ContactBook) Add(ctx context.Context, owner, contactID string) error {
	if owner == contactID {
		return fmt.Errorf("%w: an account cannot add itself as a contact", models.ErrValidation)
	}
	if _, err := b.dir.GetAccount(ctx, contactID); err != nil {
		return err
	}
	return b.store.AddContact(ctx, owner, contactID)
}

func (b *ContactBook) Remove(ctx context.Context, owner, contactID string) error {
	return b.store.RemoveContact(ctx, owner, contactID)
}

// List returns owner's contacts; contacts whose account no longer exists
// are skipped.
func (b *ContactBook) List(ctx context.Context, owner string) ([]Contact, error) {
	ids, err := b.store.Contacts(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]Contact, 0, len(ids))
	for _, id := range ids {
		acct, err := b.dir.GetAccount(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		level, err := b.engine.Level(ctx, owner, id)
		if err != nil {
			return nil, err
		}
		out = append(out, Contact{
			AccountID:  id,
			Name:       acct.Name,
			Reputation: acct.Reputation,
			TrustLevel: level,
		})
	}
	return out, nil
}
