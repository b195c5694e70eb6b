// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
)

// Request is a control request sent to a Server.
type Request struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Args are the arguments of a control request.
// Channels are addressed by their flat index.
type Args struct {
	Line    int      `json:"line"`
	Mode    string   `json:"mode,omitempty"`
	On      bool     `json:"on,omitempty"`
	Data    []byte   `json:"data,omitempty"`
	N       int      `json:"n,omitempty"`
	Termios *Termios `json:"termios,omitempty"`
}

// Reply is the reply of a Server to a control request.
type Reply struct {
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Server exposes a Driver over a JSON/TCP control connection.
type Server struct {
	ctl net.Listener
	msg *log.Logger
	drv *Driver

	mu   sync.Mutex
	ttys map[int]*Queue // line discipline of each opened channel
}

// NewServer creates a control server for drv, listening on addr.
// The server logs with the logger of drv.
func NewServer(addr string, drv *Driver) (*Server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("m77: could not create control server on %q: %w", addr, err)
	}

	return &Server{
		ctl:  ctl,
		msg:  drv.msg,
		drv:  drv,
		ttys: make(map[int]*Queue),
	}, nil
}

// Addr returns the address the server listens on.
func (srv *Server) Addr() net.Addr { return srv.ctl.Addr() }

// Serve accepts control connections until the server is closed.
func (srv *Server) Serve() error {
	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("m77: could not accept connection: %w", err)
		}
		go srv.handle(conn)
	}
}

// Close stops accepting connections and closes every channel opened
// through the server.
func (srv *Server) Close() error {
	err := srv.ctl.Close()

	srv.mu.Lock()
	defer srv.mu.Unlock()
	for line := range srv.ttys {
		if e := srv.drv.CloseChannel(line); e != nil && err == nil {
			err = e
		}
		delete(srv.ttys, line)
	}
	return err
}

func (srv *Server) handle(conn net.Conn) {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	var (
		dec = json.NewDecoder(conn)
		enc = json.NewEncoder(conn)
	)
	for {
		var req Request
		err := dec.Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			srv.msg.Printf("could not decode request: %+v", err)
			srv.reply(enc, nil, err)
			return
		}
		srv.msg.Printf("received request: name=%q", req.Name)

		v, err := srv.dispatch(req)
		if err != nil {
			srv.msg.Printf("could not run %q: %+v", req.Name, err)
		}
		srv.reply(enc, v, err)
	}
}

func (srv *Server) dispatch(req Request) (any, error) {
	var args Args
	if len(req.Args) > 0 {
		err := json.Unmarshal(req.Args, &args)
		if err != nil {
			return nil, fmt.Errorf("m77: could not decode %q payload: %w", req.Name, err)
		}
	}

	switch strings.ToLower(req.Name) {
	case "phys":
		m, err := ParseMode(args.Mode)
		if err != nil {
			return nil, err
		}
		return nil, srv.drv.SetMode(args.Line, m)

	case "echo":
		return nil, srv.drv.SetEcho(args.Line, args.On)

	case "tristate":
		return nil, srv.drv.SetTristate(args.Line, args.On)

	case "open":
		return nil, srv.open(args)

	case "close":
		srv.mu.Lock()
		delete(srv.ttys, args.Line)
		srv.mu.Unlock()
		return nil, srv.drv.CloseChannel(args.Line)

	case "termios":
		if args.Termios == nil {
			return nil, fmt.Errorf("m77: missing line settings: %w", ErrInvalidArgument)
		}
		return nil, srv.drv.SetTermios(args.Line, *args.Termios)

	case "write":
		tty, err := srv.tty(args.Line)
		if err != nil {
			return nil, err
		}
		n, _ := tty.Write(args.Data)
		err = srv.drv.StartTx(args.Line)
		return n, err

	case "read":
		tty, err := srv.tty(args.Line)
		if err != nil {
			return nil, err
		}
		n := args.N
		if n <= 0 {
			n = fifoSize
		}
		buf := make([]byte, n)
		n, _ = tty.Read(buf)
		return buf[:n], nil

	case "break":
		return nil, srv.drv.Break(args.Line, args.On)

	case "modem":
		return srv.drv.ModemStatus(args.Line)

	case "stats":
		return srv.drv.Stats(args.Line)

	case "channels":
		return srv.drv.Channels(), nil
	}

	return nil, fmt.Errorf("m77: unknown command %q: %w", req.Name, ErrInvalidArgument)
}

func (srv *Server) open(args Args) error {
	tty := NewQueue(0)
	err := srv.drv.OpenChannel(args.Line, tty)
	if err != nil {
		return err
	}
	if args.Termios != nil {
		err = srv.drv.SetTermios(args.Line, *args.Termios)
		if err != nil {
			_ = srv.drv.CloseChannel(args.Line)
			return err
		}
	}

	srv.mu.Lock()
	srv.ttys[args.Line] = tty
	srv.mu.Unlock()
	return nil
}

func (srv *Server) tty(line int) (*Queue, error) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	tty, ok := srv.ttys[line]
	if !ok {
		return nil, fmt.Errorf("m77: line %d is not open: %w", line, ErrInvalidArgument)
	}
	return tty, nil
}

func (srv *Server) reply(enc *json.Encoder, v any, err error) {
	rep := Reply{Msg: "ok"}
	if err != nil {
		rep.Msg = fmt.Sprintf("%+v", err)
	}
	if err == nil && v != nil {
		raw, e := json.Marshal(v)
		if e != nil {
			rep.Msg = fmt.Sprintf("could not encode reply: %+v", e)
		} else {
			rep.Data = raw
		}
	}
	_ = enc.Encode(rep)
}
