package entity

// Scope owns the side-effect lists of the actions dispatched during some
// lifetime (a battle, a card being in play). Closing the scope drains them.
type Scope struct {
	Name    string
	actions []*Action
	closed  bool
}

// NewScope creates an open scope.
func NewScope(name string) *Scope {
	return &Scope{Name: name}
}

// Adopt makes the scope responsible for a's side effects. Adopting into a
// closed scope drains immediately.
func (s *Scope) Adopt(a *Action) {
	if s.closed {
		a.DrainSideEffects()
		return
	}
	s.actions = append(s.actions, a)
}

// Pending counts side effects not yet drained.
func (s *Scope) Pending() int {
	n := 0
	for _, a := range s.actions {
		n += a.PendingSideEffects()
	}
	return n
}

// Close drains every adopted action in adoption order and returns the number
// of cleanups run. Closing twice runs nothing the second time.
func (s *Scope) Close() int {
	n := 0
	for _, a := range s.actions {
		n += a.DrainSideEffects()
	}
	s.actions = nil
	s.closed = true
	return n
}

// Closed reports whether Close has run.
func (s *Scope) Closed() bool { return s.closed }
