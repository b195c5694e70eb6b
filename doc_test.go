// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmod

import (
	"runtime/debug"
	"testing"
)

func TestVersionOf(t *testing.T) {
	for _, tc := range []struct {
		name string
		main debug.Module
		deps []*debug.Module
		vers string
		sum  string
	}{
		{
			name: "no-deps",
		},
		{
			name: "main",
			main: debug.Module{Path: "github.com/go-lpc/mmod", Version: "v0.3.0", Sum: "h1:yyy"},
			deps: []*debug.Module{{Path: "github.com/go-lpc/mmod", Version: "v0.2.0"}},
			vers: "v0.3.0",
			sum:  "h1:yyy",
		},
		{
			name: "main-devel",
			main: debug.Module{Path: "github.com/go-lpc/mmod", Version: "(devel)"},
			vers: "(devel)",
		},
		{
			name: "other",
			deps: []*debug.Module{{Path: "github.com/go-lpc/mim", Version: "v0.1.0"}},
		},
		{
			name: "release",
			deps: []*debug.Module{{Path: "github.com/go-lpc/mmod", Version: "v0.2.0", Sum: "h1:xxx"}},
			vers: "v0.2.0",
			sum:  "h1:xxx",
		},
		{
			name: "replace-version",
			deps: []*debug.Module{{
				Path:    "github.com/go-lpc/mmod",
				Version: "v0.2.0",
				Replace: &debug.Module{Path: "github.com/sbinet/mmod", Version: "v0.2.1", Sum: "h1:zzz"},
			}},
			vers: "github.com/sbinet/mmod v0.2.1",
			sum:  "h1:zzz",
		},
		{
			name: "replace-path",
			deps: []*debug.Module{{
				Path:    "github.com/go-lpc/mmod",
				Version: "v0.2.0",
				Replace: &debug.Module{Path: "../mmod"},
			}},
			vers: "../mmod",
		},
		{
			name: "replace-none",
			deps: []*debug.Module{{
				Path:    "github.com/go-lpc/mmod",
				Version: "v0.2.0",
				Replace: &debug.Module{},
			}},
			vers: "v0.2.0*",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			vers, sum := versionOf(&debug.BuildInfo{Main: tc.main, Deps: tc.deps})
			if vers != tc.vers || sum != tc.sum {
				t.Fatalf("invalid version: got=(%q, %q), want=(%q, %q)", vers, sum, tc.vers, tc.sum)
			}
		})
	}

	if vers, sum := versionOf(nil); vers != "" || sum != "" {
		t.Fatalf("invalid version for nil build info: (%q, %q)", vers, sum)
	}
}
