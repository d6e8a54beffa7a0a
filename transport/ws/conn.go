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

// Package ws adapts gorilla/websocket connections to transport.Wire, the
// byte-stream interface transport.Connection drives its state machine
// over. Frames cross the wire as binary messages, not JSON: the mesh's
// wire format is transport.Frame's fixed binary header, sealed by
// transport.Session, and the envelope carries no application semantics
// websocket needs to inspect.
package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

// wireConn wraps a *websocket.Conn to satisfy transport.Wire.
type wireConn struct {
	conn         *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newWireConn(conn *websocket.Conn, readTimeout, writeTimeout time.Duration) *wireConn {
	return &wireConn{conn: conn, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

func (w *wireConn) WriteMessage(data []byte) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (w *wireConn) ReadMessage() ([]byte, error) {
	if err := w.conn.SetReadDeadline(time.Now().Add(w.readTimeout)); err != nil {
		return nil, err
	}
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *wireConn) Close() error {
	_ = w.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return w.conn.Close()
}
