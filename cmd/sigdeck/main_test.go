package main

import (
	"testing"
)

func TestRootCmdHasSubcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"serve", "config", "doctor", "version", "users"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}
