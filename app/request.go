package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// 单次读取的缓冲区大小，超过的部分会被截断
const defaultReadBufferSize = 1024

var (
	errMalformedRequestLine = errors.New("invalid request line")
	errMalformedHeader      = errors.New("invalid header line")
)

// Header 保存请求头，键保持收到时的原样（区分大小写）
type Header map[string]string

// Get 按原样的名字查找请求头，不存在时返回空串
func (h Header) Get(name string) string {
	return h[name]
}

// Request 表示一个简单的 HTTP 请求（不依赖 net/http）
type Request struct {
	Method  string
	Path    string
	Version string
	Headers Header
	Body    []byte

	// 连接级别的日志器，带 conn_id
	Logger zerolog.Logger
}

// ParseRequest 把一次读取得到的原始字节解析成 Request。
//
// 请求行必须恰好是三个以单个空格分隔的字段，路径必须以 '/' 开头；
// 每个请求头必须包含 ':'。空行之后的内容原样作为 body。
// 如果缓冲区里没有空行（请求头被截断），最后一个不完整的行会被丢弃，body 为空。
func ParseRequest(buf []byte) (*Request, error) {
	head, body, found := bytes.Cut(buf, []byte(CRLF+CRLF))
	lines := strings.Split(string(head), CRLF)

	parts := strings.Split(lines[0], " ")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: %q", errMalformedRequestLine, lines[0])
	}
	if !strings.HasPrefix(parts[1], "/") {
		return nil, fmt.Errorf("%w: target %q", errMalformedRequestLine, parts[1])
	}
	req := &Request{
		Method:  parts[0],
		Path:    parts[1],
		Version: parts[2],
		Headers: make(Header),
		Logger:  zerolog.Nop(),
	}

	headerLines := lines[1:]
	for i, line := range headerLines {
		if line == "" {
			continue
		}
		// 按第一个 ':' 分成两部分：key 和 value
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			if !found && i == len(headerLines)-1 {
				break // 被单次读取截断的行
			}
			return nil, fmt.Errorf("%w: %q", errMalformedHeader, line)
		}
		req.Headers[name] = strings.TrimSpace(value)
	}

	if found && len(body) > 0 {
		req.Body = bytes.Clone(body)
	}
	return req, nil
}

// ContentLength 返回声明的 Content-Length，缺失或非法时 ok 为 false
func (r *Request) ContentLength() (n int, ok bool) {
	v, exists := r.Headers["Content-Length"]
	if !exists {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// readRequest 从连接上读一次（至多 size 字节）并解析。
// 不会根据 Content-Length 继续读取，超出缓冲区的 body 被截断；
// 读到的 body 比声明的长时按 Content-Length 裁剪。
func readRequest(r io.Reader, size int) (*Request, error) {
	if size <= 0 {
		size = defaultReadBufferSize
	}
	buf := make([]byte, size)
	n, err := r.Read(buf)
	if n == 0 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	req, err := ParseRequest(buf[:n])
	if err != nil {
		return nil, err
	}
	if cl, ok := req.ContentLength(); ok && cl < len(req.Body) {
		req.Body = req.Body[:cl]
	}
	return req, nil
}
