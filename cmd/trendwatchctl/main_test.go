package main

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"
)

func newTestConsole() (*console, *bytes.Buffer) {
	var buf bytes.Buffer
	c := &console{
		base:   "http://127.0.0.1:0",
		client: &http.Client{Timeout: time.Second},
		out:    &buf,
	}
	return c, &buf
}

func TestExitEndsSessionWithoutKillingProcess(t *testing.T) {
	for _, cmd := range []string{"exit", "quit"} {
		c, _ := newTestConsole()
		c.execute(cmd)
		if !c.done {
			t.Errorf("%q did not end the session", cmd)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	c, buf := newTestConsole()
	c.execute("frobnicate")
	if !strings.Contains(buf.String(), "unknown command") {
		t.Errorf("unexpected output: %q", buf.String())
	}
	if c.done {
		t.Error("unknown command ended the session")
	}
}

func TestUsageOnMissingArguments(t *testing.T) {
	c, buf := newTestConsole()
	c.execute("trend prod")
	if !strings.Contains(buf.String(), "usage: trend") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
