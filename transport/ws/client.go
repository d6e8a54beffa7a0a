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
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/genesis-mesh/node/transport"
)

// Dialer opens outbound mesh connections over WebSocket.
type Dialer struct {
	dialTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewDialer builds a Dialer using the transport package's default timeouts.
func NewDialer() *Dialer {
	return &Dialer{
		dialTimeout:  transport.DefaultHandshakeTimeout,
		readTimeout:  transport.DefaultIdleTimeout,
		writeTimeout: transport.DefaultHandshakeTimeout,
	}
}

// Dial connects to url and returns a Connection in the Dialing state,
// ready for the caller to run the handshake and drive SetHandshaking/
// Establish.
func (d *Dialer) Dial(ctx context.Context, url string, sendQueueSize int) (*transport.Connection, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: d.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws: dial %s failed (HTTP %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("ws: dial %s failed: %w", url, err)
	}
	wire := newWireConn(conn, d.readTimeout, d.writeTimeout)
	return transport.NewConnection(wire, sendQueueSize), nil
}
