// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command m77-srv drives the serial M-modules described in a configuration
// file and serves control requests over TCP.
//
// Usage: m77-srv [OPTIONS]
//
// Example:
//
//	$> m77-srv -cfg /etc/m77.yaml -addr :8877
//	m77-srv: version: v0.1.0
//	m77: registered M77 board "m77_0" (board-0.1), channels [0 1 2 3]
//	m77-srv: serving interrupts from "/dev/uio0"...
//	m77-srv: listening on [::]:8877...
package main // import "github.com/go-lpc/mmod/cmd/m77-srv"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-lpc/mmod"
	"github.com/go-lpc/mmod/internal/mmap"
	"github.com/go-lpc/mmod/internal/uio"
	"github.com/go-lpc/mmod/m77"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetPrefix("m77-srv: ")
	log.SetFlags(0)

	var (
		cfg    = flag.String("cfg", "/etc/m77.yaml", "path to the board configuration file")
		addr   = flag.String("addr", ":8877", "[ip]:port to listen on for control requests")
		rxMax  = flag.Int("rx-max", 0, "maximum number of characters drained per interrupt (0: default)")
		doMon  = flag.String("pmon", "", "path to a process monitoring log file (disabled if empty)")
		doFreq = flag.Duration("freq", 1*time.Second, "process monitoring frequency")
	)

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := xmain(ctx, *cfg, *addr, *rxMax, *doMon, *doFreq)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func xmain(ctx context.Context, fname, addr string, rxMax int, mon string, freq time.Duration) error {
	if v, _ := mmod.Version(); v != "" {
		log.Printf("version: %s", v)
	}

	cfg, err := m77.LoadConfig(fname)
	if err != nil {
		return err
	}

	if mon != "" {
		err := monitor(mon, freq)
		if err != nil {
			return err
		}
	}

	drv := m77.New(m77.WithRxLimit(rxMax))
	defer func() {
		err := drv.Close()
		if err != nil {
			log.Printf("could not close driver: %+v", err)
		}
	}()

	for i, descr := range cfg.Boards {
		err := register(drv, descr, cfg.Board(i))
		if err != nil {
			return err
		}
	}

	srv, err := m77.NewServer(addr, drv)
	if err != nil {
		return err
	}

	grp, ctx := errgroup.WithContext(ctx)
	if cfg.IRQ != "" {
		irq, err := uio.Open(cfg.IRQ)
		if err != nil {
			_ = srv.Close()
			return err
		}
		defer irq.Close()

		grp.Go(func() error {
			log.Printf("serving interrupts from %q...", cfg.IRQ)
			return irq.Serve(ctx, drv)
		})
	} else {
		log.Printf("no interrupt device configured")
	}

	grp.Go(func() error {
		log.Printf("listening on %v...", srv.Addr())
		return srv.Serve()
	})

	grp.Go(func() error {
		<-ctx.Done()
		return srv.Close()
	})

	err = grp.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("could not run m77 server: %w", err)
	}
	return nil
}

// register maps the window of a board and registers it with the driver.
// The mapping lives as long as the process.
func register(drv *m77.Driver, descr m77.BoardDescr, cfg m77.BoardConfig) error {
	kind, err := m77.ParseKind(descr.Kind)
	if err != nil {
		return err
	}

	win, err := mmap.Open(descr.Device, descr.Offset, descr.Size)
	if err != nil {
		return fmt.Errorf("could not map board %q: %w", descr.Name, err)
	}

	_, err = drv.RegisterBoard(kind, descr.Name, win, cfg)
	if err != nil {
		_ = win.Close()
		return fmt.Errorf("could not register board %q (slot %d): %w", descr.Name, descr.Slot, err)
	}
	return nil
}

// monitor records the CPU and memory usage of the server into fname,
// until the process exits.
func monitor(fname string, freq time.Duration) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("could not create pmon log file: %w", err)
	}

	p, err := pmon.Monitor(os.Getpid())
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("could not start monitoring: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		log.Printf("run pmon (freq=%v)...", freq)
		err := p.Run()
		if err != nil {
			log.Printf("could not run pmon: %+v", err)
		}
	}()
	return nil
}
