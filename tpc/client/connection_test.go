package client

import (
	"math"
	"net"
	"testing"

	"github.com/tpcware/memgrid/tpc/engine"
)

func newTestConnection(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return NewConnection(client), server
}

func TestConnectionTpcChannelFallsBackWithoutChannels(t *testing.T) {
	conn, _ := newTestConnection(t)

	if got := conn.TpcChannel(42); got != nil {
		t.Errorf("expected nil channel before installation, got %v", got)
	}
	if got := conn.TpcChannels(); got != nil {
		t.Errorf("expected nil channel slice before installation, got %v", got)
	}
}

func TestConnectionTpcChannelRouting(t *testing.T) {
	conn, _ := newTestConnection(t)

	channels := []engine.Channel{
		newFakeChannel(11001),
		newFakeChannel(11002),
		newFakeChannel(11003),
	}
	conn.SetTpcChannels(channels)

	tests := []struct {
		name string
		hash int
		want engine.Channel
	}{
		{name: "zero", hash: 0, want: channels[0]},
		{name: "in range", hash: 2, want: channels[2]},
		{name: "wraps", hash: 7, want: channels[1]},
		{name: "negative masks sign bit", hash: -4, want: channels[1]},
		{name: "minimum int masks to zero", hash: math.MinInt, want: channels[0]},
		{name: "maximum int", hash: math.MaxInt, want: channels[math.MaxInt%3]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := conn.TpcChannel(tt.hash); got != tt.want {
				t.Errorf("TpcChannel(%d) routed to the wrong channel", tt.hash)
			}
		})
	}
}

func TestConnectionCloseClosesInstalledChannels(t *testing.T) {
	conn, _ := newTestConnection(t)

	channels := []*fakeChannel{newFakeChannel(11001), newFakeChannel(11002)}
	conn.SetTpcChannels([]engine.Channel{channels[0], channels[1]})

	if !conn.IsAlive() {
		t.Fatal("connection must be alive before Close")
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if conn.IsAlive() {
		t.Error("connection still alive after Close")
	}
	for _, ch := range channels {
		if ch.closeCount() != 1 {
			t.Errorf("channel %s closed %d times, expected once", ch.RemoteAddr(), ch.closeCount())
		}
	}

	// second Close is a no-op
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	for _, ch := range channels {
		if ch.closeCount() != 1 {
			t.Errorf("channel %s closed again by the second Close", ch.RemoteAddr())
		}
	}
}

func TestConnectionCloseWithoutChannels(t *testing.T) {
	conn, _ := newTestConnection(t)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if conn.IsAlive() {
		t.Error("connection still alive after Close")
	}
}
