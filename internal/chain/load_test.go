package chain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tunelo-project/tunelo/internal/upstream"
)

func TestParseInline(t *testing.T) {
	c, err := ParseInline("socks5://127.0.0.1:1080, http://127.0.0.1:8080", Toggles{})
	if err != nil {
		t.Fatalf("ParseInline: %v", err)
	}
	hops := c.Hops()
	if len(hops) != 2 {
		t.Fatalf("len(hops) = %d, want 2", len(hops))
	}
	if hops[0].Kind != upstream.Socks5 || hops[1].Kind != upstream.HTTP {
		t.Fatalf("unexpected kinds: %v, %v", hops[0].Kind, hops[1].Kind)
	}
}

func TestLoadFileLineFormatSkipsCommentsAndBlanks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chain.txt")
	content := "# comment\n\nsocks4a://10.0.0.1:1080\nhttp://10.0.0.2:8080\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path, Toggles{})
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(c.Hops()) != 2 {
		t.Fatalf("len(hops) = %d, want 2", len(c.Hops()))
	}
}

func TestLoadFileRejectsDisabledKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chain.txt")
	os.WriteFile(path, []byte("socks4a://10.0.0.1:1080\n"), 0o644)
	if _, err := LoadFile(path, Toggles{DisableSocks4a: true}); err == nil {
		t.Fatal("expected error for disabled socks4a hop")
	}
}

func TestLoadJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chain.json")
	content := `{"proxyChain":[{"type":"socks5","host":"127.99.0.1","port":3128},{"type":"httpTunnel","host":"127.99.0.3","port":1080}]}`
	os.WriteFile(path, []byte(content), 0o644)
	c, err := LoadFile(path, Toggles{})
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	hops := c.Hops()
	if len(hops) != 2 || hops[1].Kind != upstream.HTTP {
		t.Fatalf("unexpected hops: %+v", hops)
	}
}
