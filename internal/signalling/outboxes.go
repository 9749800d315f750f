package signalling

import "sync"

// Outboxes maps endpoint ids to the connection loop that writes to them.
// A reconnecting endpoint gets a new id, so an entry is only ever replaced
// by its own connection.
type Outboxes struct {
	m sync.Map
}

func NewOutboxes() *Outboxes {
	return &Outboxes{}
}

func (o *Outboxes) Attach(id string, loop *EndpointConnectionLoop) {
	o.m.Store(id, loop)
}

func (o *Outboxes) Lookup(id string) (*EndpointConnectionLoop, bool) {
	v, ok := o.m.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*EndpointConnectionLoop), true
}

// Detach removes id only while it still belongs to loop.
func (o *Outboxes) Detach(id string, loop *EndpointConnectionLoop) bool {
	return o.m.CompareAndDelete(id, loop)
}

func (o *Outboxes) Len() int {
	n := 0
	o.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
