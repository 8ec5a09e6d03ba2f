package socks4

import (
	"bufio"
	"bytes"
	"net"
	"testing"

	"github.com/tunelo-project/tunelo/internal/addr"
)

func TestRequestRoundTripIPv4(t *testing.T) {
	req := Request{
		Command: CmdConnect,
		Target:  addr.Endpoint{Host: addr.NewIP(net.IPv4(93, 184, 216, 34)), Port: 80},
		UserID:  []byte("alice"),
	}
	wire, err := EncodeRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	// wire starts with ver/cmd; ReadRequest expects the version byte
	// already consumed.
	r := bufio.NewReader(bytes.NewReader(wire[1:]))
	got, err := ReadRequest(r)
	if err != nil {
		t.Fatal(err)
	}
	if got.Command != req.Command || got.Target.Port != req.Target.Port {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, req)
	}
	if got.Target.Host.String() != "93.184.216.34" {
		t.Fatalf("unexpected host: %s", got.Target.Host.String())
	}
	if string(got.UserID) != "alice" {
		t.Fatalf("unexpected userid: %q", got.UserID)
	}
	if got.IsSocks4a() {
		t.Fatalf("expected non-4a request")
	}
}

func TestRequestRoundTripSocks4aDomain(t *testing.T) {
	d, err := addr.NewDomain("localhost")
	if err != nil {
		t.Fatal(err)
	}
	req := Request{
		Command: CmdConnect,
		Target:  addr.Endpoint{Host: d, Port: 22},
		UserID:  []byte(""),
	}
	wire, err := EncodeRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	r := bufio.NewReader(bytes.NewReader(wire[1:]))
	got, err := ReadRequest(r)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsSocks4a() {
		t.Fatalf("expected 4a request")
	}
	if got.Domain != "localhost" {
		t.Fatalf("unexpected domain: %q", got.Domain)
	}
	if got.Target.Port != 22 {
		t.Fatalf("unexpected port: %d", got.Target.Port)
	}
}

func TestReplyRoundTrip(t *testing.T) {
	rep := Reply{Code: Granted, Bind: addr.Endpoint{Host: addr.NewIP(net.IPv4(127, 0, 0, 1)), Port: 1080}}
	wire := EncodeReply(rep)
	if len(wire) != 8 {
		t.Fatalf("expected 8-byte reply, got %d", len(wire))
	}
	got, err := ReadReply(bytes.NewReader(wire))
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != rep.Code || got.Bind.Port != rep.Bind.Port {
		t.Fatalf("reply round trip mismatch: %+v vs %+v", got, rep)
	}
}

func TestReadRequestRejectsOversizeUserID(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{CmdConnect, 0, 80, 93, 184, 216, 34})
	buf.Write(bytes.Repeat([]byte{'a'}, maxUserIDLen+1))
	buf.WriteByte(0x00)
	_, err := ReadRequest(bufio.NewReader(&buf))
	if err == nil {
		t.Fatalf("expected oversize userid to be rejected")
	}
}

func TestReadRequestRejectsUnsupportedCommand(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x09, 0, 80, 93, 184, 216, 34, 0x00})
	_, err := ReadRequest(bufio.NewReader(&buf))
	if err == nil {
		t.Fatalf("expected unsupported command to be rejected")
	}
}
