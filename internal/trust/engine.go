// Package trust computes how closely two accounts are connected through the
// directed trusted-contact graph.
package trust

import (
	"context"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"

	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
	"github.com/sheikh-saqib/market-trust-core/internal/metrics"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
)

// MaxDepth is the furthest hop distance that still counts as trusted.
const MaxDepth = 3

// Levels returned by Engine.Level.
const (
	Untrusted = 0
	Direct    = 1
)

// Engine answers trust queries. It only reads from the relationship store
// and holds no locks, so it may run alongside writes and see a slightly
// stale graph.
type Engine struct {
	store interfaces.RelationshipStore
	log   logrus.FieldLogger
}

func NewEngine(store interfaces.RelationshipStore, log logrus.FieldLogger) *Engine {
	return &Engine{store: store, log: log.WithField("component", "trust")}
}

type frontierNode struct {
	id    string
	depth int
}

// Level returns the hop distance from observer to subject: 1 for a direct
// contact, 2 for a contact of a contact, 3 for three hops, and 0 when the
// subject is further away, either id is empty, or the observer is anonymous.
// An account always trusts itself at level 1.
func (e *Engine) Level(ctx context.Context, observer, subject string) (int, error) {
	if observer == "" || subject == "" {
		metrics.TrustLookups.WithLabelValues("0").Inc()
		return Untrusted, nil
	}
	if observer == subject {
		metrics.TrustLookups.WithLabelValues("1").Inc()
		return Direct, nil
	}

	level, visited, err := e.search(ctx, observer, subject)
	if err != nil {
		return Untrusted, err
	}
	metrics.TrustVisited.Observe(float64(visited))
	metrics.TrustLookups.WithLabelValues(strconv.Itoa(level)).Inc()
	return level, nil
}

// search is a breadth-first walk that never expands an account found at
// MaxDepth, so the work is bounded by the three-hop neighbourhood however
// large the graph is. It returns the level and the number of expanded accounts.
func (e *Engine) search(ctx context.Context, observer, subject string) (int, int, error) {
	queue := []frontierNode{{id: observer, depth: 0}}
	visited := map[string]struct{}{observer: {}}
	expanded := 0

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node.depth >= MaxDepth {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Untrusted, expanded, err
		}

		contacts, err := e.store.Contacts(ctx, node.id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return Untrusted, expanded, err
		}
		expanded++

		for _, c := range contacts {
			if c == subject {
				return node.depth + 1, expanded, nil
			}
			if _, seen := visited[c]; !seen {
				visited[c] = struct{}{}
				queue = append(queue, frontierNode{id: c, depth: node.depth + 1})
			}
		}
	}
	return Untrusted, expanded, nil
}

// CanView applies the visibility rule for an owner's profile and listings:
// open accounts are visible to everyone; restricted accounts are visible
// when the viewer is within trust range, or when the owner has not set up
// any contacts yet.
func (e *Engine) CanView(ctx context.Context, viewerID string, owner *models.Account) (bool, error) {
	if owner.Visibility != models.VisibilityRestricted {
		return true, nil
	}
	contacts, err := e.store.Contacts(ctx, owner.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return false, err
	}
	if len(contacts) == 0 {
		return true, nil
	}
	level, err := e.Level(ctx, viewerID, owner.ID)
	if err != nil {
		return false, err
	}
	return level > Untrusted, nil
}
