// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package m77

import (
	"bytes"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/go-lpc/mmod/m77/internal/regs"
	"github.com/google/go-cmp/cmp"
)

func newTestServer(t *testing.T, drv *Driver) *Client {
	t.Helper()
	srv, err := NewServer("localhost:0", drv)
	if err != nil {
		t.Fatalf("could not create server: %+v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		err := srv.Close()
		if err != nil {
			t.Errorf("could not close server: %+v", err)
		}
		if err := <-done; err != nil {
			t.Errorf("could not serve: %+v", err)
		}
	})

	cli, err := Dial(srv.Addr().String())
	if err != nil {
		t.Fatalf("could not dial server: %+v", err)
	}
	t.Cleanup(func() { _ = cli.Close() })
	return cli
}

func TestServer(t *testing.T) {
	drv := newTestDriver(t)
	dev := newFakeModule(M77)
	mustRegister(t, drv, M77, dev, BoardConfig{})
	cli := newTestServer(t, drv)

	err := cli.Send("phys", Args{Line: 1, Mode: "rs485-hd"}, nil)
	if err != nil {
		t.Fatalf("could not set mode: %+v", err)
	}
	err = cli.Send("echo", Args{Line: 1, On: true}, nil)
	if err != nil {
		t.Fatalf("could not set echo: %+v", err)
	}
	if got, want := dev.dcr(1), byte(regs.DCR_RX_EN)|byte(RS485HD); got != want {
		t.Fatalf("invalid DCR: got=0x%02x, want=0x%02x", got, want)
	}

	err = cli.Send("open", Args{Line: 1, Termios: &Termios{Baud: 115200, Local: true}}, nil)
	if err != nil {
		t.Fatalf("could not open line: %+v", err)
	}

	var n int
	err = cli.Send("write", Args{Line: 1, Data: []byte("hello")}, &n)
	if err != nil {
		t.Fatalf("could not write: %+v", err)
	}
	if n != 5 {
		t.Fatalf("invalid number of queued bytes: got=%d, want=5", n)
	}

	dev.inject(1, 0, []byte("world")...)
	dev.setReg(regs.REG_IR, regs.IR_IMASK|regs.IR_DRVEN|regs.IR_IRQ)
	if !drv.Interrupt() {
		t.Fatalf("interrupt not handled")
	}
	if got, want := string(dev.sent(1)), "hello"; got != want {
		t.Fatalf("invalid tx: got=%q, want=%q", got, want)
	}

	var data []byte
	err = cli.Send("read", Args{Line: 1}, &data)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := string(data), "world"; got != want {
		t.Fatalf("invalid rx: got=%q, want=%q", got, want)
	}

	var stats Stats
	err = cli.Send("stats", Args{Line: 1}, &stats)
	if err != nil {
		t.Fatalf("could not get stats: %+v", err)
	}
	if diff := cmp.Diff(Stats{RX: 5, TX: 5}, stats); diff != "" {
		t.Fatalf("invalid stats (-want +got):\n%s", diff)
	}

	var infos []ChannelInfo
	err = cli.Send("channels", Args{}, &infos)
	if err != nil {
		t.Fatalf("could not list channels: %+v", err)
	}
	want := ChannelInfo{Line: 1, Board: "M77", Kind: "M77", Channel: 1, Mode: "rs485-hd", Echo: true, Open: true}
	if diff := cmp.Diff(want, infos[1]); diff != "" {
		t.Fatalf("invalid channel info (-want +got):\n%s", diff)
	}

	err = cli.Send("close", Args{Line: 1}, nil)
	if err != nil {
		t.Fatalf("could not close line: %+v", err)
	}
	err = cli.Send("read", Args{Line: 1}, &data)
	if err == nil || !strings.Contains(err.Error(), "not open") {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestServerErrors(t *testing.T) {
	drv := newTestDriver(t)
	dev := newFakeModule(M69)
	mustRegister(t, drv, M69, dev, BoardConfig{})
	cli := newTestServer(t, drv)

	for _, tc := range []struct {
		name string
		args Args
		err  string
	}{
		{name: "reboot", err: `unknown command "reboot"`},
		{name: "phys", args: Args{Line: 0, Mode: "rs232"}, err: "unsupported"},
		{name: "phys", args: Args{Line: 0, Mode: "rs999"}, err: "invalid argument"},
		{name: "tristate", args: Args{Line: 0, On: true}, err: "unsupported"},
		{name: "echo", args: Args{Line: 7}, err: "invalid argument"},
		{name: "termios", args: Args{Line: 0}, err: "missing line settings"},
		{name: "write", args: Args{Line: 0, Data: []byte("x")}, err: "not open"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := cli.Send(tc.name, tc.args, nil)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tc.err) {
				t.Fatalf("invalid error: got=%q, want=%q", err, tc.err)
			}
		})
	}

	// the connection survives failed requests.
	var modem uint
	err := cli.Send("modem", Args{Line: 0}, &modem)
	if err != nil {
		t.Fatalf("could not get modem status: %+v", err)
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServerLogger(t *testing.T) {
	out := new(syncBuffer)
	drv := New(WithLogger(log.New(out, "m77: ", 0)))
	t.Cleanup(func() { _ = drv.Close() })
	cli := newTestServer(t, drv)

	err := cli.Send("channels", Args{}, nil)
	if err != nil {
		t.Fatalf("could not list channels: %+v", err)
	}
	if got, want := out.String(), `m77: received request: name="channels"`; !strings.Contains(got, want) {
		t.Fatalf("invalid server log:\ngot:\n%s\nwant:\n%s", got, want)
	}
}
