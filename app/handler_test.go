package main

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
)

func newTestMux(dir string) *Mux {
	m := NewMux()
	registerRoutes(m, dir)
	return m
}

func newTestRequest(method, path string, headers Header, body string) *Request {
	if headers == nil {
		headers = Header{}
	}
	req := &Request{
		Method:  method,
		Path:    path,
		Version: "HTTP/1.1",
		Headers: headers,
		Logger:  zerolog.Nop(),
	}
	if body != "" {
		req.Body = []byte(body)
	}
	return req
}

func expectStatus(t *testing.T, res *Response, code int) {
	t.Helper()
	if res.StatusCode != code {
		t.Errorf("status = %d, want %d", res.StatusCode, code)
	}
}

func expectHeader(t *testing.T, res *Response, name, value string) {
	t.Helper()
	got, ok := res.Get(name)
	if !ok {
		t.Errorf("missing header %s", name)
		return
	}
	expectEqual(t, value, got)
}

func TestUnmatchedRoutes(t *testing.T) {
	m := newTestMux(t.TempDir())
	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/unknown"},
		{"GET", "/echo"},
		{"GET", "/user-agent/extra"},
		{"POST", "/"},
		{"POST", "/echo/abc"},
		{"PUT", "/files/a.txt"},
		{"DELETE", "/files/a.txt"},
		{"HEAD", "/"},
	}
	for _, tt := range tests {
		res := m.Serve(newTestRequest(tt.method, tt.path, nil, ""))
		if res.StatusCode != StatusNotFound || len(res.Body) != 0 || len(res.Headers) != 0 {
			t.Errorf("%s %s: got %d %v %q, want bare 404", tt.method, tt.path, res.StatusCode, res.Headers, res.Body)
		}
	}
}

func TestRoot(t *testing.T) {
	res := newTestMux("").Serve(newTestRequest("GET", "/", nil, ""))
	expectEqual(t, "HTTP/1.1 200 OK\r\n\r\n", string(res.Bytes()))
}

func TestEcho(t *testing.T) {
	m := newTestMux("")
	for _, s := range []string{"abc", "hello%20world", "a/b/c", ""} {
		res := m.Serve(newTestRequest("GET", "/echo/"+s, nil, ""))
		expectStatus(t, res, StatusOK)
		expectHeader(t, res, "Content-Type", "text/plain")
		expectHeader(t, res, "Content-Length", strconv.Itoa(len(s)))
		expectEqual(t, s, string(res.Body))
		if _, ok := res.Get("Content-Encoding"); ok {
			t.Errorf("echo %q: unexpected Content-Encoding", s)
		}
	}
}

func TestEchoGzip(t *testing.T) {
	m := newTestMux("")
	for _, enc := range []string{"gzip", "deflate, gzip", "br,gzip;q=0.5"} {
		res := m.Serve(newTestRequest("GET", "/echo/raspberry", Header{"Accept-Encoding": enc}, ""))
		expectStatus(t, res, StatusOK)
		expectHeader(t, res, "Content-Encoding", "gzip")
		expectHeader(t, res, "Content-Length", strconv.Itoa(len(res.Body)))

		zr, err := gzip.NewReader(bytes.NewReader(res.Body))
		if err != nil {
			t.Fatalf("Accept-Encoding %q: body is not gzip: %v", enc, err)
		}
		plain, err := io.ReadAll(zr)
		if err != nil {
			t.Fatalf("decompress: %v", err)
		}
		expectEqual(t, "raspberry", string(plain))
	}
}

func TestEchoUnsupportedEncoding(t *testing.T) {
	res := newTestMux("").Serve(newTestRequest("GET", "/echo/abc", Header{"Accept-Encoding": "deflate, br"}, ""))
	if _, ok := res.Get("Content-Encoding"); ok {
		t.Error("unexpected Content-Encoding")
	}
	expectEqual(t, "abc", string(res.Body))
}

func TestUserAgent(t *testing.T) {
	m := newTestMux("")
	res := m.Serve(newTestRequest("GET", "/user-agent", Header{"User-Agent": "foo/1.0"}, ""))
	expect := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 7\r\n\r\nfoo/1.0"
	expectEqual(t, expect, string(res.Bytes()))

	res = m.Serve(newTestRequest("GET", "/user-agent", nil, ""))
	expectStatus(t, res, StatusOK)
	expectHeader(t, res, "Content-Length", "0")
	expectEqual(t, "", string(res.Body))
}

func TestFilesWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	m := newTestMux(dir)

	res := m.Serve(newTestRequest("POST", "/files/report.txt", Header{"Content-Length": "5"}, "hello"))
	expectEqual(t, "HTTP/1.1 201 Created\r\n\r\n", string(res.Bytes()))

	var first []byte
	for i := 0; i < 3; i++ {
		res = m.Serve(newTestRequest("GET", "/files/report.txt", nil, ""))
		expectStatus(t, res, StatusOK)
		expectHeader(t, res, "Content-Type", "application/octet-stream")
		expectHeader(t, res, "Content-Length", "5")
		expectEqual(t, "hello", string(res.Body))
		if first == nil {
			first = res.Bytes()
		} else if !bytes.Equal(first, res.Bytes()) {
			t.Errorf("repeated GET changed response")
		}
	}
}

func TestFilesPostOverwritesAndCreatesDirs(t *testing.T) {
	dir := t.TempDir()
	m := newTestMux(dir)

	m.Serve(newTestRequest("POST", "/files/sub/dir/a.bin", nil, "first version"))
	res := m.Serve(newTestRequest("POST", "/files/sub/dir/a.bin", nil, "v2"))
	expectStatus(t, res, StatusCreated)

	got, err := os.ReadFile(filepath.Join(dir, "sub", "dir", "a.bin"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	expectEqual(t, "v2", string(got))
}

func TestFilesBinaryRead(t *testing.T) {
	dir := t.TempDir()
	content := []byte{0x00, 0x01, 0xfe, 0xff, '\r', '\n'}
	if err := os.WriteFile(filepath.Join(dir, "blob"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	res := newTestMux(dir).Serve(newTestRequest("GET", "/files/blob", nil, ""))
	expectStatus(t, res, StatusOK)
	if !bytes.Equal(content, res.Body) {
		t.Errorf("got %v, want %v", res.Body, content)
	}
}

func TestFilesNotFound(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	m := newTestMux(dir)
	for _, p := range []string{"/files/missing.txt", "/files/subdir", "/files/", "/files/../secret"} {
		res := m.Serve(newTestRequest("GET", p, nil, ""))
		expectEqual(t, "HTTP/1.1 404 Not Found\r\n\r\n", string(res.Bytes()))
	}
}

func TestFilesTraversalRejected(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "data")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	res := newTestMux(dir).Serve(newTestRequest("POST", "/files/../escaped.txt", nil, "x"))
	expectStatus(t, res, StatusNotFound)
	if _, err := os.Stat(filepath.Join(root, "escaped.txt")); err == nil {
		t.Error("file written outside of directory")
	}
}

func TestFilesWithoutDirectory(t *testing.T) {
	m := newTestMux("")
	expectStatus(t, m.Serve(newTestRequest("GET", "/files/a.txt", nil, "")), StatusNotFound)
	expectStatus(t, m.Serve(newTestRequest("POST", "/files/a.txt", nil, "x")), StatusNotFound)
}

func TestFilesWriteError(t *testing.T) {
	dir := t.TempDir()
	// 父路径是普通文件，MkdirAll 必然失败
	if err := os.WriteFile(filepath.Join(dir, "blocker"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	res := newTestMux(dir).Serve(newTestRequest("POST", "/files/blocker/a.txt", nil, "x"))
	expectEqual(t, "HTTP/1.1 500 Internal Server Error\r\n\r\n", string(res.Bytes()))
}

func TestMuxFirstMatchWins(t *testing.T) {
	m := NewMux()
	m.HandlePrefix("GET", "/a/", func(*Request) *Response { return NewResponse(StatusCreated) })
	m.Handle("GET", "/a/b", func(*Request) *Response { return NewResponse(StatusOK) })
	expectStatus(t, m.Serve(newTestRequest("GET", "/a/b", nil, "")), StatusCreated)
	expectStatus(t, m.Serve(newTestRequest("GET", "/a", nil, "")), StatusNotFound)
}
