package sockets

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

type SocketID string

// Socket is a websocket connection that is safe for one reader and many
// concurrent writers.
type Socket interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	ReadMessage() ([]byte, error)
	RemoteAddr() string
	Close() error
}

type socketImpl struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func NewSocket(conn *websocket.Conn) Socket {
	return &socketImpl{ws: conn}
}

func (s *socketImpl) WriteJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteJSON(v)
}

func (s *socketImpl) ReadJSON(v any) error {
	data, err := s.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *socketImpl) ReadMessage() ([]byte, error) {
	_, data, err := s.ws.ReadMessage()
	return data, err
}

func (s *socketImpl) RemoteAddr() string {
	return s.ws.NetConn().RemoteAddr().String()
}

func (s *socketImpl) Close() error {
	return s.ws.Close()
}
