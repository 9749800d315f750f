package signalling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/irdkwmnsb/remotecam/internal/api"
	"github.com/irdkwmnsb/remotecam/internal/metrics"
	"github.com/irdkwmnsb/remotecam/internal/sockets"
)

// EndpointConnectionLoop owns the write side of one endpoint connection.
// Messages are queued into a bounded mailbox and written in order by a
// single goroutine, so a slow endpoint never blocks the broker.
type EndpointConnectionLoop struct {
	socket       sockets.Socket
	socketID     sockets.SocketID
	messages     chan any
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	pingInterval time.Duration
	stopOnce     sync.Once
}

func NewEndpointConnectionLoop(socket sockets.Socket, socketID sockets.SocketID, outboxSize int, pingInterval time.Duration) *EndpointConnectionLoop {
	if outboxSize <= 0 {
		outboxSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EndpointConnectionLoop{
		socket:       socket,
		socketID:     socketID,
		messages:     make(chan any, outboxSize),
		ctx:          ctx,
		cancel:       cancel,
		pingInterval: pingInterval,
	}
}

func (l *EndpointConnectionLoop) Start() {
	l.wg.Add(1)
	go l.messageWriterLoop()

	if l.pingInterval > 0 {
		l.wg.Add(1)
		go l.pingLoop()
	}
}

// Stop ends both goroutines. Queued messages that were not written yet are
// discarded.
func (l *EndpointConnectionLoop) Stop() {
	l.stopOnce.Do(func() {
		l.cancel()
		l.wg.Wait()
	})
}

// SendMessage queues msg without blocking. It reports false when the loop is
// stopped or the mailbox is full, in which case msg is dropped.
func (l *EndpointConnectionLoop) SendMessage(msg any) bool {
	if l.ctx.Err() != nil {
		return false
	}
	select {
	case l.messages <- msg:
		return true
	default:
		metrics.OutboxOverflowTotal.Inc()
		slog.Warn("endpoint outbox full, dropping message", "socketID", l.socketID)
		return false
	}
}

func (l *EndpointConnectionLoop) messageWriterLoop() {
	defer l.wg.Done()

	for {
		select {
		case msg := <-l.messages:
			if err := l.socket.WriteJSON(msg); err != nil {
				slog.Debug("failed to send message to endpoint", "socketID", l.socketID, "error", err)
				l.cancel()
				return
			}
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *EndpointConnectionLoop) pingLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.SendMessage(api.EndpointMessage{
				Event: api.EndpointMessageEventPing,
				Ping:  &api.PingMessage{Timestamp: time.Now().UnixMilli()},
			})
		case <-l.ctx.Done():
			return
		}
	}
}
