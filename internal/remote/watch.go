package remote

import (
	"context"
	"errors"
	"sync"
	"time"

	"treinos/api/internal/plan"
)

// Watch polls the ficha revision and delivers a freshly rebuilt full plan
// snapshot whenever it changes. Delivery is always a whole snapshot;
// consumers never observe a partially applied plan.
//
// The returned cancel function stops the watcher and waits for any
// in-flight callback to finish, so no snapshot arrives after cancel
// returns.
func (s *DocumentStore) Watch(ctx context.Context, userID, fichaID string, interval time.Duration,
	onSnapshot func(plan.Plan, int64), onError func(error)) (func(), error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	watchCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastRevision int64 = -1
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
			}

			revision, err := s.Revision(watchCtx, userID, fichaID)
			if err != nil {
				if errors.Is(err, context.Canceled) || watchCtx.Err() != nil {
					return
				}
				if onError != nil {
					onError(err)
				}
				continue
			}
			if revision == lastRevision {
				continue
			}

			snapshot, err := s.LoadFicha(watchCtx, userID, fichaID)
			if err != nil {
				if errors.Is(err, context.Canceled) || watchCtx.Err() != nil {
					return
				}
				if onError != nil {
					onError(err)
				}
				continue
			}
			lastRevision = revision
			if watchCtx.Err() != nil {
				return
			}
			onSnapshot(snapshot, revision)
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}, nil
}
