// Package exchange runs the order and barter lifecycles and fires their
// side effects once a transition has committed.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
	"github.com/sheikh-saqib/market-trust-core/internal/ledger"
	"github.com/sheikh-saqib/market-trust-core/internal/metrics"
	"github.com/sheikh-saqib/market-trust-core/internal/models"
	"github.com/sheikh-saqib/market-trust-core/internal/models/events"
	"github.com/sheikh-saqib/market-trust-core/internal/notify"
)

// CompletionReward is the token reward paid per party on a completed exchange.
var CompletionReward = decimal.NewFromInt(1)

const defaultSideEffectTimeout = 5 * time.Second

// TokenLedger is the part of the ledger the workflow drives.
type TokenLedger interface {
	Grant(ctx context.Context, accountID string, tokens decimal.Decimal, reason models.Reason, referenceID string) (ledger.GrantResult, error)
	Transfer(ctx context.Context, payer, payee string, amount int64, reason models.Reason, referenceID string) (bool, error)
	Transferred(ctx context.Context, payer string, reason models.Reason, referenceID string) (bool, error)
	GetBalance(ctx context.Context, accountID string) (int64, error)
}

// ReputationRecomputer refreshes reputation scores after completions.
type ReputationRecomputer interface {
	RecomputeAll(ctx context.Context, accountIDs ...string) error
}

type Workflow struct {
	store      interfaces.ExchangeStore
	dir        interfaces.Directory
	ledger     TokenLedger
	reputation ReputationRecomputer
	notifier   interfaces.Notifier
	events     interfaces.EventPublisher
	log        logrus.FieldLogger

	now               func() time.Time
	sideEffectTimeout time.Duration
}

func NewWorkflow(
	store interfaces.ExchangeStore,
	dir interfaces.Directory,
	ledger TokenLedger,
	reputation ReputationRecomputer,
	notifier interfaces.Notifier,
	events interfaces.EventPublisher,
	log logrus.FieldLogger,
) *Workflow {
	return &Workflow{
		store:             store,
		dir:               dir,
		ledger:            ledger,
		reputation:        reputation,
		notifier:          notifier,
		events:            events,
		log:               log.WithField("component", "exchange"),
		now:               time.Now,
		sideEffectTimeout: defaultSideEffectTimeout,
	}
}

// sideEffect runs fn after a transition has committed. It gets its own
// deadline, detached from the request, and a failure is logged and counted
// but never returned.
func (w *Workflow) sideEffect(ctx context.Context, effect string, fields logrus.Fields, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.sideEffectTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		metrics.SideEffectFailures.WithLabelValues(effect).Inc()
		w.log.WithFields(fields).WithError(err).WithField("effect", effect).Warn("side effect failed after commit")
	}
}

func (w *Workflow) notify(ctx context.Context, n models.Notification) {
	if n.Recipient == "" {
		return
	}
	n.CreatedAt = w.now().UTC()
	w.sideEffect(ctx, "notify", logrus.Fields{"recipient": n.Recipient, "category": n.Category}, func(ctx context.Context) error {
		return w.notifier.Notify(ctx, n)
	})
}

func (w *Workflow) publishTransition(ctx context.Context, kind, id, actor, from, to string) {
	ev := events.ExchangeTransitioned{
		Kind:       kind,
		ExchangeID: id,
		ActorID:    actor,
		From:       from,
		To:         to,
		OccurredAt: w.now().UTC(),
	}
	w.sideEffect(ctx, "publish", logrus.Fields{"kind": kind, "exchange": id}, func(ctx context.Context) error {
		return w.events.Publish(ctx, notify.TransitionsTopic, ev)
	})
}

func shortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}
