package sockets

import (
	"sync"
)

// SocketPool tracks the open sockets of one role so they can be closed
// together on shutdown.
type SocketPool struct {
	mutex   sync.Mutex
	sockets map[SocketID]Socket
}

func NewSocketPool() *SocketPool {
	return &SocketPool{
		sockets: make(map[SocketID]Socket),
	}
}

// Add stores socket under id. A different socket already stored there is
// closed.
func (p *SocketPool) Add(id SocketID, socket Socket) Socket {
	p.mutex.Lock()
	old, replaced := p.sockets[id]
	p.sockets[id] = socket
	p.mutex.Unlock()

	if replaced && old != socket {
		_ = old.Close()
	}
	return socket
}

// Release closes socket and forgets it, unless id has since been taken
// over by another socket; then only socket itself is closed.
func (p *SocketPool) Release(id SocketID, socket Socket) {
	p.mutex.Lock()
	if p.sockets[id] == socket {
		delete(p.sockets, id)
	}
	p.mutex.Unlock()

	_ = socket.Close()
}

func (p *SocketPool) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.sockets)
}

func (p *SocketPool) Close() {
	p.mutex.Lock()
	all := p.sockets
	p.sockets = make(map[SocketID]Socket)
	p.mutex.Unlock()

	for _, socket := range all {
		_ = socket.Close()
	}
}
