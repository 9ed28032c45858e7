package wallet

// EventKind tags a session event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventAccountChanged
	EventBalanceUpdated
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventAccountChanged:
		return "account_changed"
	case EventBalanceUpdated:
		return "balance_updated"
	default:
		return "error"
	}
}

// Event is a session state change fanned out to subscribers.
type Event struct {
	Kind     EventKind
	Accounts []string
	Account  string
	Balance  uint64
	Err      error
}

// Subscription delivers session events until cancelled. C is closed on
// Cancel and on manager shutdown.
type Subscription struct {
	C  <-chan Event
	id int
	m  *Manager
}

// Cancel detaches the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if ch, ok := s.m.subs[s.id]; ok {
		close(ch)
		delete(s.m.subs, s.id)
	}
}

// Subscribe registers a session event listener. Delivery is best effort: a
// subscriber that stops draining its channel loses events rather than
// blocking the manager.
func (m *Manager) Subscribe() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSubID++
	id := m.nextSubID
	ch := make(chan Event, 16)
	m.subs[id] = ch
	return &Subscription{C: ch, id: id, m: m}
}

func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.Errorf("dropping %s event for slow subscriber %d", ev.Kind, id)
		}
	}
}
