package socks5

import (
	"bufio"
	"bytes"
	"net"
	"testing"

	"github.com/tunelo-project/tunelo/internal/addr"
)

func TestGreetingRoundTrip(t *testing.T) {
	g := Greeting{Methods: []byte{MethodNoAuth, MethodUserPassword}}
	wire := EncodeGreeting(g)
	r := bufio.NewReader(bytes.NewReader(wire[1:]))
	got, err := ReadGreeting(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Methods) != 2 || got.Methods[0] != MethodNoAuth {
		t.Fatalf("unexpected methods: %v", got.Methods)
	}
}

func TestSelectMethodNoAuthOnly(t *testing.T) {
	if m := SelectMethod([]byte{MethodUserPassword, MethodGSSAPI}); m != MethodNoneAcceptable {
		t.Fatalf("expected 0xFF when no-auth not offered, got 0x%02x", m)
	}
	if m := SelectMethod([]byte{MethodUserPassword, MethodNoAuth}); m != MethodNoAuth {
		t.Fatalf("expected no-auth selected, got 0x%02x", m)
	}
}

func TestRequestRoundTripIPv4(t *testing.T) {
	req := Request{Command: CmdConnect, Target: addr.Endpoint{Host: addr.NewIP(net.IPv4(8, 8, 8, 8)), Port: 53}}
	wire := EncodeRequest(req)
	r := bufio.NewReader(bytes.NewReader(wire[1:]))
	got, err := ReadRequest(r)
	if err != nil {
		t.Fatal(err)
	}
	if got.Command != req.Command || got.Target.Port != req.Target.Port {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, req)
	}
}

func TestRequestRoundTripDomain(t *testing.T) {
	d, err := addr.NewDomain("example.test")
	if err != nil {
		t.Fatal(err)
	}
	req := Request{Command: CmdConnect, Target: addr.Endpoint{Host: d, Port: 443}}
	wire := EncodeRequest(req)
	r := bufio.NewReader(bytes.NewReader(wire[1:]))
	got, err := ReadRequest(r)
	if err != nil {
		t.Fatal(err)
	}
	if got.Target.Host.Domain != "example.test" {
		t.Fatalf("unexpected domain: %q", got.Target.Host.Domain)
	}
}

func TestRequestRoundTripIPv6(t *testing.T) {
	ip := net.ParseIP("::1")
	req := Request{Command: CmdConnect, Target: addr.Endpoint{Host: addr.NewIP(ip), Port: 8080}}
	wire := EncodeRequest(req)
	r := bufio.NewReader(bytes.NewReader(wire[1:]))
	got, err := ReadRequest(r)
	if err != nil {
		t.Fatal(err)
	}
	if got.Target.Host.Kind != addr.IPv6 {
		t.Fatalf("expected ipv6, got %v", got.Target.Host.Kind)
	}
}

func TestReplyRoundTrip(t *testing.T) {
	rep := Reply{Code: Success, Bind: addr.Endpoint{Host: addr.NewIP(net.IPv4(127, 0, 0, 1)), Port: 1080}}
	wire := EncodeReply(rep)
	r := bufio.NewReader(bytes.NewReader(wire))
	got, err := ReadReply(r)
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != rep.Code || got.Bind.Port != rep.Bind.Port {
		t.Fatalf("reply round trip mismatch: %+v vs %+v", got, rep)
	}
}

func TestUDPDatagramRoundTrip(t *testing.T) {
	target := addr.Endpoint{Host: addr.NewIP(net.IPv4(1, 2, 3, 4)), Port: 9000}
	payload := []byte("hello udp")
	wire := EncodeUDPDatagram(target, payload)
	hdr, got, err := DecodeUDPDatagram(wire)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Frag != 0 {
		t.Fatalf("expected frag=0, got %d", hdr.Frag)
	}
	if hdr.Target.Port != 9000 {
		t.Fatalf("unexpected port: %d", hdr.Target.Port)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: %q vs %q", got, payload)
	}
}

func TestUDPDatagramFragmentedIsFlaggedNotError(t *testing.T) {
	target := addr.Endpoint{Host: addr.NewIP(net.IPv4(1, 2, 3, 4)), Port: 9000}
	wire := EncodeUDPDatagram(target, []byte("x"))
	wire[2] = 1 // frag != 0
	hdr, _, err := DecodeUDPDatagram(wire)
	if err != nil {
		t.Fatalf("fragmented datagram should still decode: %v", err)
	}
	if hdr.Frag == 0 {
		t.Fatalf("expected frag to be nonzero")
	}
}
