// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command m77-ioctl configures the channels of a running m77-srv.
//
// Usage: m77-ioctl [OPTIONS]
//
// Example:
//
//	$> m77-ioctl -d 2 -p rs485-hd -e 1
//	$> m77-ioctl -d 9 -t 1
//	$> m77-ioctl -l
//	line  board   kind  chan  mode      echo  open
//	0     m77_0   M77   0     rs232     false false
//	[...]
//	$> m77-ioctl -i
//	m77> phys 2 rs422-fd
//	m77> stats 2
package main // import "github.com/go-lpc/mmod/cmd/m77-ioctl"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-lpc/mmod/m77"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("m77-ioctl: ")
	log.SetFlags(0)

	var (
		addr  = flag.String("addr", ":8877", "[ip]:port of the m77-srv control server")
		line  = flag.Int("d", -1, "flat index of the channel to configure")
		phys  = flag.String("p", "", "physical mode (rs232, rs422-hd, rs422-fd, rs485-hd, rs485-fd or 1-4,7)")
		echo  = flag.Int("e", -1, "echo (0: off, 1: on)")
		tri   = flag.Int("t", -1, "tristate (0: off, 1: on)")
		list  = flag.Bool("l", false, "list channels")
		stats = flag.Bool("s", false, "display channel statistics")
		shell = flag.Bool("i", false, "run an interactive shell")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `m77-ioctl configures the channels of a running m77-srv.

Usage: m77-ioctl [OPTIONS]

Example:

 $> m77-ioctl -d 2 -p rs485-hd -e 1
 $> m77-ioctl -l
 $> m77-ioctl -i

Options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	cli, err := m77.Dial(*addr)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	defer cli.Close()

	if *shell {
		err = interactive(cli, os.Stdout)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		return
	}

	if *list {
		err = listChannels(cli, os.Stdout)
		if err != nil {
			log.Fatalf("%+v", err)
		}
	}

	if *line < 0 {
		if !*list {
			flag.Usage()
			log.Fatalf("missing channel index")
		}
		return
	}

	err = configure(cli, *line, *phys, *echo, *tri)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	if *stats {
		err = printStats(cli, os.Stdout, *line)
		if err != nil {
			log.Fatalf("%+v", err)
		}
	}
}

// configure applies the mode first: echo only matters in half-duplex.
func configure(cli *m77.Client, line int, phys string, echo, tri int) error {
	if phys != "" {
		err := cli.Send("phys", m77.Args{Line: line, Mode: phys}, nil)
		if err != nil {
			return err
		}
	}
	if echo >= 0 {
		err := cli.Send("echo", m77.Args{Line: line, On: echo != 0}, nil)
		if err != nil {
			return err
		}
	}
	if tri >= 0 {
		err := cli.Send("tristate", m77.Args{Line: line, On: tri != 0}, nil)
		if err != nil {
			return err
		}
	}
	return nil
}

func listChannels(cli *m77.Client, w io.Writer) error {
	var infos []m77.ChannelInfo
	err := cli.Send("channels", m77.Args{}, &infos)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "line\tboard\tkind\tchan\tmode\techo\topen\n")
	for _, c := range infos {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%v\t%v\n",
			c.Line, c.Board, c.Kind, c.Channel, c.Mode, c.Echo, c.Open,
		)
	}
	return tw.Flush()
}

func printStats(cli *m77.Client, w io.Writer, line int) error {
	var st m77.Stats
	err := cli.Send("stats", m77.Args{Line: line}, &st)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "line %d: rx=%d tx=%d brk=%d parity=%d frame=%d overrun=%d rng=%d dsr=%d dcd=%d cts=%d\n",
		line, st.RX, st.TX, st.Break, st.Parity, st.Frame, st.Overrun,
		st.Ring, st.DSR, st.DCD, st.CTS,
	)
	return nil
}

var commands = []string{
	"phys", "echo", "tristate", "stats", "modem", "channels", "help", "quit",
}

func interactive(cli *m77.Client, w io.Writer) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(func(line string) []string {
		var out []string
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, line) {
				out = append(out, cmd)
			}
		}
		return out
	})

	for {
		input, err := term.Prompt("m77> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(w)
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		term.AppendHistory(input)

		quit, err := run(cli, w, strings.Fields(input))
		if err != nil {
			fmt.Fprintf(w, "error: %+v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// run executes one shell command. It reports whether the shell should exit.
func run(cli *m77.Client, w io.Writer, args []string) (bool, error) {
	switch args[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintf(w, `commands:
  phys <line> <mode>    set the physical mode of a M77 channel
  echo <line> on|off    enable or disable echo of a M77 channel
  tristate <line> on|off  switch a M45N channel to tristate
  stats <line>          display channel statistics
  modem <line>          display modem status lines
  channels              list channels
  quit                  exit the shell
`)
		return false, nil
	case "channels":
		return false, listChannels(cli, w)
	}

	if len(args) < 2 {
		return false, fmt.Errorf("missing channel index for %q", args[0])
	}
	line, err := strconv.Atoi(args[1])
	if err != nil {
		return false, fmt.Errorf("invalid channel index %q: %w", args[1], err)
	}

	switch args[0] {
	case "phys":
		if len(args) != 3 {
			return false, fmt.Errorf("usage: phys <line> <mode>")
		}
		return false, cli.Send("phys", m77.Args{Line: line, Mode: args[2]}, nil)

	case "echo", "tristate":
		if len(args) != 3 {
			return false, fmt.Errorf("usage: %s <line> on|off", args[0])
		}
		on, err := parseOnOff(args[2])
		if err != nil {
			return false, err
		}
		return false, cli.Send(args[0], m77.Args{Line: line, On: on}, nil)

	case "stats":
		return false, printStats(cli, w, line)

	case "modem":
		var v uint
		err := cli.Send("modem", m77.Args{Line: line}, &v)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(w, "line %d: cts=%v dsr=%v car=%v rng=%v\n", line,
			v&m77.LineCTS != 0, v&m77.LineDSR != 0,
			v&m77.LineCAR != 0, v&m77.LineRNG != 0,
		)
		return false, nil
	}
	return false, fmt.Errorf("unknown command %q", args[0])
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch value %q (want on or off)", s)
}
