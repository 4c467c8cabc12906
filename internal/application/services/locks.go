package services

import (
	"context"
	"sync"
)

type pairKey struct {
	taskID     int
	employeeID int
}

// pairLocks serialises timer operations per task and employee inside one
// process. Entries are dropped once nobody holds or waits on them.
type pairLocks struct {
	mu    sync.Mutex
	locks map[pairKey]*pairLock
}

type pairLock struct {
	sync.Mutex
	refs int
}

func (p *pairLocks) Lock(ctx context.Context, taskID, employeeID int) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := pairKey{taskID: taskID, employeeID: employeeID}

	p.mu.Lock()
	if p.locks == nil {
		p.locks = make(map[pairKey]*pairLock)
	}
	l, ok := p.locks[key]
	if !ok {
		l = &pairLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}, nil
}
