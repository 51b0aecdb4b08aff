// Package authstate streams sign-in/sign-out changes per account. A new
// subscription always receives the account's current state first.
package authstate

import (
	"context"
	"sync"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/google/uuid"
)

// User merges the identity record with the member's profile.
type User struct {
	UID         string          `json:"uid"`
	Email       string          `json:"email"`
	DisplayName string          `json:"displayName"`
	Profile     *models.Profile `json:"profile"`
}

type State struct {
	IsAuthenticated bool  `json:"isAuthenticated"`
	User            *User `json:"user"`
}

func SignedOut() State {
	return State{IsAuthenticated: false, User: nil}
}

func SignedIn(account *models.Account, profile *models.Profile) State {
	return State{
		IsAuthenticated: true,
		User: &User{
			UID:         account.ID.String(),
			Email:       account.Email,
			DisplayName: account.DisplayName,
			Profile:     profile,
		},
	}
}

// Resolver computes the current state of an account.
type Resolver func(ctx context.Context, uid uuid.UUID) (State, error)

type Broker struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]map[*Subscription]struct{}
	resolve Resolver
}

func NewBroker(resolve Resolver) *Broker {
	return &Broker{
		subs:    make(map[uuid.UUID]map[*Subscription]struct{}),
		resolve: resolve,
	}
}

// Subscription delivers states on C until Unsubscribe is called. Only the
// most recent undelivered state is kept when the reader falls behind.
type Subscription struct {
	C      <-chan State
	ch     chan State
	uid    uuid.UUID
	broker *Broker
	once   sync.Once
}

// Subscribe registers a listener for uid and queues the current state
// before any later change.
func (b *Broker) Subscribe(ctx context.Context, uid uuid.UUID) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := b.resolve(ctx, uid)
	if err != nil {
		return nil, err
	}

	ch := make(chan State, 1)
	ch <- current
	sub := &Subscription{C: ch, ch: ch, uid: uid, broker: b}

	if b.subs[uid] == nil {
		b.subs[uid] = make(map[*Subscription]struct{})
	}
	b.subs[uid][sub] = struct{}{}
	return sub, nil
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		b := s.broker
		b.mu.Lock()
		defer b.mu.Unlock()

		if set, ok := b.subs[s.uid]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(b.subs, s.uid)
			}
		}
		close(s.ch)
	})
}

// Publish delivers state to every subscriber of uid without blocking.
func (b *Broker) Publish(uid uuid.UUID, state State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[uid] {
		select {
		case sub.ch <- state:
		default:
			// replace the stale state the reader has not consumed yet
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- state
		}
	}
}

func (b *Broker) SubscriberCount(uid uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[uid])
}
