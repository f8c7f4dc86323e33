// Package redis keeps the trust graph's adjacency sets in Redis, one set
// per account.
package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"

	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
)

const keyPrefix = "contacts:"

type RelationshipStore struct {
	client *redis.Client
}

// NewRelationshipStore connects to addr and pings it.
func NewRelationshipStore(ctx context.Context, addr string) (*RelationshipStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RelationshipStore{client: client}, nil
}

func key(accountID string) string {
	return keyPrefix + accountID
}

// Contacts returns the members of the account's set, sorted. A missing key
// is an account with no contacts.
func (s *RelationshipStore) Contacts(ctx context.Context, accountID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, key(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read contacts: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RelationshipStore) AddContact(ctx context.Context, accountID, contactID string) error {
	if err := s.client.SAdd(ctx, key(accountID), contactID).Err(); err != nil {
		return fmt.Errorf("add contact: %w", err)
	}
	return nil
}

func (s *RelationshipStore) RemoveContact(ctx context.Context, accountID, contactID string) error {
	if err := s.client.SRem(ctx, key(accountID), contactID).Err(); err != nil {
		return fmt.Errorf("remove contact: %w", err)
	}
	return nil
}

func (s *RelationshipStore) Close() error {
	return s.client.Close()
}

var _ interfaces.RelationshipStore = (*RelationshipStore)(nil)
