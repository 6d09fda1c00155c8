package dispatch

import "context"

// claim marks t's contact busy and reports whether t can start now. When the
// contact is already busy, t joins the end of its backlog instead.
func (d *Dispatcher) claim(t Task) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := t.Msg.ContactID
	if waiting, busy := d.backlog[id]; busy {
		d.backlog[id] = append(waiting, t)
		return false
	}
	d.backlog[id] = nil
	return true
}

// next pops the oldest backlogged task of contact. When the backlog is empty
// or ctx is done, the contact is released and ok is false; a backlog left
// behind on shutdown is dropped.
func (d *Dispatcher) next(ctx context.Context, contact string) (t Task, ok bool) {
	d.mu.Lock()
	waiting := d.backlog[contact]
	if len(waiting) == 0 || ctx.Err() != nil {
		delete(d.backlog, contact)
		d.mu.Unlock()
		d.discard(len(waiting))
		return Task{}, false
	}
	t = waiting[0]
	waiting[0] = Task{}
	d.backlog[contact] = waiting[1:]
	d.mu.Unlock()
	return t, true
}

// release frees contact and drops its backlog.
func (d *Dispatcher) release(contact string) {
	d.mu.Lock()
	n := len(d.backlog[contact])
	delete(d.backlog, contact)
	d.mu.Unlock()
	d.discard(n)
}

func (d *Dispatcher) discard(n int) {
	if n == 0 {
		return
	}
	d.pending.Add(-int64(n))
	d.metrics.QueueDepth.Add(context.Background(), -int64(n))
	d.dropped.Add(int64(n))
}

func (d *Dispatcher) busyContacts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.backlog)
}
