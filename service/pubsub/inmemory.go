package pubsub

import (
	"context"
	"errors"
	"sync"

	"github.com/khaledhikmat/ws-go/model"
)

type inMemoryService struct {
	mu     sync.Mutex
	subs   map[string]map[chan model.StatsUpdate]struct{}
	closed bool
}

func NewInMemory() IService {
	return &inMemoryService{
		subs: make(map[string]map[chan model.StatsUpdate]struct{}),
	}
}

// PublishStats never blocks; a subscriber whose buffer is full misses the update.
func (svc *inMemoryService) PublishStats(_ context.Context, update model.StatsUpdate) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.closed {
		return errors.New("pubsub closed")
	}

	for ch := range svc.subs[channelName(update.User)] {
		select {
		case ch <- update:
		default:
		}
	}
	return nil
}

func (svc *inMemoryService) Subscribe(ctx context.Context, user model.UserIdentity) (<-chan model.StatsUpdate, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.closed {
		return nil, errors.New("pubsub closed")
	}

	name := channelName(user)
	ch := make(chan model.StatsUpdate, subscriberBuffer)
	if svc.subs[name] == nil {
		svc.subs[name] = make(map[chan model.StatsUpdate]struct{})
	}
	svc.subs[name][ch] = struct{}{}

	go func() {
		<-ctx.Done()
		svc.remove(name, ch)
	}()

	return ch, nil
}

func (svc *inMemoryService) remove(name string, ch chan model.StatsUpdate) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if _, ok := svc.subs[name][ch]; !ok {
		return
	}
	delete(svc.subs[name], ch)
	if len(svc.subs[name]) == 0 {
		delete(svc.subs, name)
	}
	close(ch)
}

func (svc *inMemoryService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.closed = true
	for name, chans := range svc.subs {
		for ch := range chans {
			close(ch)
		}
		delete(svc.subs, name)
	}
	return nil
}
