// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/transport"
)

// AcceptHandler is invoked once per inbound connection, in the
// Dialing state, for the caller to run the responder side of the
// handshake and hand the result to a transport.Pool.
type AcceptHandler func(conn *transport.Connection)

// Server upgrades incoming HTTP requests to mesh WebSocket connections.
type Server struct {
	handler      AcceptHandler
	upgrader     websocket.Upgrader
	readTimeout  time.Duration
	writeTimeout time.Duration
	sendQueue    int
}

// NewServer builds a Server that invokes handler for every accepted peer link.
func NewServer(handler AcceptHandler) *Server {
	return &Server{
		handler: handler,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		readTimeout:  transport.DefaultIdleTimeout,
		writeTimeout: transport.DefaultHandshakeTimeout,
		sendQueue:    256,
	}
}

// Handler returns the http.Handler to mount at the mesh's listen path.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", logger.Error(err))
			return
		}
		wire := newWireConn(conn, s.readTimeout, s.writeTimeout)
		s.handler(transport.NewConnection(wire, s.sendQueue))
	})
}
