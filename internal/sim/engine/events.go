package engine

const subscriberBuffer = 64

// OnReady registers fn to run once when the initial terrain is in place. If the
// engine is already ready, fn runs immediately.
func (e *Engine) OnReady(fn func()) {
	if fn == nil {
		return
	}
	e.eventMu.Lock()
	if e.ready {
		e.eventMu.Unlock()
		fn()
		return
	}
	e.readyFns = append(e.readyFns, fn)
	e.eventMu.Unlock()
}

func (e *Engine) fireReady() {
	e.eventMu.Lock()
	if e.ready {
		e.eventMu.Unlock()
		return
	}
	e.ready = true
	fns := e.readyFns
	e.readyFns = nil
	e.eventMu.Unlock()

	for _, fn := range fns {
		fn()
	}
	e.publish(Event{Kind: EventReady, Tick: e.tick})
}

// Subscribe returns a stream of engine events. Slow readers miss events rather
// than stall the engine. The channel is closed by cancel or Shutdown.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	e.eventMu.Lock()
	defer e.eventMu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if e.subs == nil {
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	cancel := func() {
		e.eventMu.Lock()
		defer e.eventMu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (e *Engine) publish(ev Event) {
	e.eventMu.Lock()
	defer e.eventMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (e *Engine) closeSubscribers() {
	e.eventMu.Lock()
	defer e.eventMu.Unlock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.subs = nil
}
