package httpproxy

import "net/http"

// hopByHopHeaders are stripped from a forwarded request.
// Transfer-Encoding is deliberately not listed: chunked bodies are
// streamed through unmodified rather than buffered and re-framed.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authorization",
}

// PrepareForward mutates req in place for the absolute-form forward
// path: strips hop-by-hop headers, ensures Host is set from the request
// URI's authority when absent, and asserts Connection: close on the
// outbound request.
func PrepareForward(req *http.Request) {
	for _, h := range hopByHopHeaders {
		req.Header.Del(h)
	}
	if req.Host == "" {
		req.Host = req.URL.Host
	}
	req.Header.Set("Connection", "close")
	req.Close = true
	// Request.Write derives the request line from req.URL.RequestURI(),
	// which already omits scheme/host (origin-form); RequestURI and the
	// URL's scheme/host are cleared anyway so a caller holding this
	// *http.Request cannot accidentally re-derive an absolute-form line.
	req.RequestURI = ""
	req.URL.Scheme = ""
	req.URL.Host = ""
}
