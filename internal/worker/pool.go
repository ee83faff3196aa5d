package worker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// slot tracks one worker goroutine.
type slot struct {
	id       int
	inbox    chan Job
	idleFrom time.Time
	parked   bool // waiting in pool.parked
	retired  bool
}

// pool grows from min to max workers on demand and shrinks back to min once
// workers sit idle for idleTTL. Idle workers are reused oldest first.
type pool struct {
	mu         sync.Mutex
	freed      *sync.Cond
	parked     []*slot
	slots      map[chan Job]*slot
	min        int
	max        int
	live       int
	lastID     int
	idleTTL    time.Duration
	closed     bool
	stopReaper chan struct{}
	exited     sync.WaitGroup
	log        *zap.Logger
}

const defaultIdleTTL = 30 * time.Second

func newPool(minWorkers, maxWorkers int, idleTTL time.Duration, log *zap.Logger) *pool {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	minWorkers = max(minWorkers, 0)
	maxWorkers = max(maxWorkers, minWorkers, 1)
	p := &pool{
		slots:      make(map[chan Job]*slot),
		min:        minWorkers,
		max:        maxWorkers,
		idleTTL:    idleTTL,
		stopReaper: make(chan struct{}),
		log:        log,
	}
	p.freed = sync.NewCond(&p.mu)
	go p.reapLoop()
	return p
}

// addLocked registers a new worker. The caller starts it.
func (p *pool) addLocked() *Worker {
	p.lastID++
	w := newWorker(p.lastID, p)
	p.slots[w.inbox] = &slot{id: w.id, inbox: w.inbox}
	p.live++
	p.exited.Add(1)
	return w
}

// warm starts one parked worker if the pool has room.
func (p *pool) warm() {
	p.mu.Lock()
	if p.closed || p.live >= p.max {
		p.mu.Unlock()
		return
	}
	w := p.addLocked()
	s := p.slots[w.inbox]
	s.parked = true
	s.idleFrom = time.Now()
	p.parked = append(p.parked, s)
	p.mu.Unlock()
	w.Start()
}

// checkout returns the inbox of a free worker, starting one when below max
// and otherwise waiting for a checkin. A nil inbox means the pool closed.
func (p *pool) checkout() (chan Job, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.closed {
			return nil, 0
		}
		if s := p.unparkLocked(); s != nil {
			return s.inbox, s.id
		}
		if p.live < p.max {
			w := p.addLocked()
			w.Start()
			return w.inbox, w.id
		}
		p.freed.Wait()
	}
}

// checkin parks a worker after a job. False tells the worker to exit.
func (p *pool) checkin(inbox chan Job) bool {
	p.mu.Lock()
	s, ok := p.slots[inbox]
	if !ok || s.retired || p.closed {
		p.mu.Unlock()
		return false
	}
	if !s.parked {
		s.parked = true
		s.idleFrom = time.Now()
		p.parked = append(p.parked, s)
	}
	p.mu.Unlock()
	p.freed.Signal()
	return true
}

func (p *pool) remove(inbox chan Job) {
	p.mu.Lock()
	if s, ok := p.slots[inbox]; ok {
		delete(p.slots, inbox)
		s.retired = true
		if p.live > 0 {
			p.live--
		}
	}
	p.mu.Unlock()
	p.freed.Broadcast()
}

func (p *pool) unparkLocked() *slot {
	for len(p.parked) > 0 {
		s := p.parked[0]
		p.parked = p.parked[1:]
		if s.retired {
			continue
		}
		s.parked = false
		return s
	}
	return nil
}

func (p *pool) reapLoop() {
	ticker := time.NewTicker(p.idleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.reapIdle(time.Now())
		case <-p.stopReaper:
			return
		}
	}
}

// reapIdle stops parked workers idle for idleTTL while more than min are live.
func (p *pool) reapIdle(now time.Time) {
	var expired []*slot

	p.mu.Lock()
	if len(p.parked) == 0 || p.live <= p.min {
		p.mu.Unlock()
		return
	}
	kept := p.parked[:0]
	for _, s := range p.parked {
		if s.retired {
			continue
		}
		if now.Sub(s.idleFrom) >= p.idleTTL && p.live-len(expired) > p.min {
			s.retired = true
			s.parked = false
			expired = append(expired, s)
			continue
		}
		kept = append(kept, s)
	}
	p.parked = kept
	p.mu.Unlock()

	if len(expired) > 0 {
		p.log.Debug("retiring idle workers", zap.Int("count", len(expired)))
	}
	for _, s := range expired {
		s.inbox <- Job{Type: Stop}
	}
}

// close stops parked workers. Busy workers exit after their current job.
func (p *pool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	parked := p.parked
	p.parked = nil
	for _, s := range parked {
		s.retired = true
		s.parked = false
	}
	p.mu.Unlock()
	close(p.stopReaper)
	p.freed.Broadcast()

	for _, s := range parked {
		s.inbox <- Job{Type: Stop}
	}
}

func (p *pool) stats() (live, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.parked {
		if !s.retired {
			idle++
		}
	}
	return p.live, idle
}
