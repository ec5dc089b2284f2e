package scanner

import "sync"

// dispatcher runs posted tasks one at a time on its own goroutine, in post
// order. It plays the part of the host thread: everything that talks to the
// observer or the frame source runs here.
type dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closing bool
	exited  bool
	done    chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// post enqueues fn. It never blocks and reports false once the dispatcher
// has exited.
func (d *dispatcher) post(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.exited {
		return false
	}
	d.queue = append(d.queue, fn)
	d.cond.Signal()
	return true
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closing {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.exited = true
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		fn()
	}
}

// close runs everything still queued, including tasks posted while
// draining, then stops the goroutine. It must not be called from a task.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closing = true
	d.cond.Broadcast()
	d.mu.Unlock()
	<-d.done
}
