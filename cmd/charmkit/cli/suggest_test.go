// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "kv", 2},
		{"port", "", 4},
		{"kitten", "sitting", 3},
		{"container", "container", 0},
		{"contaner", "container", 1},
		{"relaton", "relation", 1},
		{"leader", "header", 1},
		{"status", "kv", 6},
	}

	for _, c := range cases {
		if got := levenshtein(c.a, c.b); got != c.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestLevenshteinSymmetric(t *testing.T) {
	pairs := []struct{ a, b string }{
		{"container", "contaner"},
		{"kv", "relation"},
		{"port", "status"},
	}

	for _, pair := range pairs {
		forward := levenshtein(pair.a, pair.b)
		backward := levenshtein(pair.b, pair.a)
		if forward != backward {
			t.Errorf("levenshtein(%q, %q) = %d but reversed = %d",
				pair.a, pair.b, forward, backward)
		}
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []*Command{
		{Name: "kv"},
		{Name: "container"},
		{Name: "relation"},
		{Name: "leader"},
	}

	cases := []struct {
		input string
		want  string
	}{
		{"contaner", "container"},
		{"relatoin", "relation"},
		{"leadr", "leader"},
		{"completely-unrelated", ""},
	}

	for _, c := range cases {
		if got := suggestCommand(c.input, commands); got != c.want {
			t.Errorf("suggestCommand(%q) = %q, want %q", c.input, got, c.want)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	flags := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flagSet.String("socket", "", "")
		flagSet.Bool("delete-data", false, "")
		flagSet.BoolP("buffered", "b", false, "")
		return flagSet
	}

	cases := []struct {
		args []string
		want string
	}{
		{[]string{"--sokcet", "/tmp/x"}, "--socket"},
		{[]string{"--delete-dta"}, "--delete-data"},
		{[]string{"--socket=/tmp/x", "--bufferd"}, "--buffered"},
		{[]string{"--nothing-close"}, ""},
		{[]string{"positional"}, ""},
	}

	for _, c := range cases {
		if got := suggestFlag(c.args, flags()); got != c.want {
			t.Errorf("suggestFlag(%v) = %q, want %q", c.args, got, c.want)
		}
	}
}
