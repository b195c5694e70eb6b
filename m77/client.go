// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// Client sends control requests to a Server.
type Client struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// Dial connects to the control server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("m77: could not dial %q: %w", addr, err)
	}
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}, nil
}

// Close closes the connection to the server.
func (cli *Client) Close() error {
	return cli.conn.Close()
}

// Send sends the named request and waits for its reply.
// A reply carrying data is decoded into v when v is not nil.
func (cli *Client) Send(name string, args Args, v any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("m77: could not encode %q arguments: %w", name, err)
	}

	err = cli.enc.Encode(Request{Name: name, Args: raw})
	if err != nil {
		return fmt.Errorf("m77: could not send %q request: %w", name, err)
	}

	var rep Reply
	err = cli.dec.Decode(&rep)
	if err != nil {
		return fmt.Errorf("m77: could not decode %q reply: %w", name, err)
	}
	if rep.Msg != "ok" {
		return fmt.Errorf("m77: %q request failed: %w", name, errors.New(rep.Msg))
	}

	if v != nil && len(rep.Data) > 0 {
		err = json.Unmarshal(rep.Data, v)
		if err != nil {
			return fmt.Errorf("m77: could not decode %q reply data: %w", name, err)
		}
	}
	return nil
}
