package main

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strconv"
)

const (
	StatusOK                  = 200
	StatusCreated             = 201
	StatusBadRequest          = 400
	StatusNotFound            = 404
	StatusInternalServerError = 500
)

// 状态码 -> 原因短语
var statusText = map[int]string{
	StatusOK:                  "OK",
	StatusCreated:             "Created",
	StatusBadRequest:          "Bad Request",
	StatusNotFound:            "Not Found",
	StatusInternalServerError: "Internal Server Error",
}

// StatusText 返回状态码对应的原因短语，未知状态码返回空串
func StatusText(code int) string {
	return statusText[code]
}

// HeaderField 是一个响应头，按写入顺序输出
type HeaderField struct {
	Name  string
	Value string
}

// Response 表示一个待发送的 HTTP 响应
type Response struct {
	StatusCode int
	Headers    []HeaderField
	Body       []byte
}

// NewResponse 创建一个只有状态码的响应（无头部、无 body）
func NewResponse(code int) *Response {
	return &Response{StatusCode: code}
}

// Header 追加一个响应头，返回 r 以便链式调用
func (r *Response) Header(name, value string) *Response {
	r.Headers = append(r.Headers, HeaderField{Name: name, Value: value})
	return r
}

// Get 返回第一个同名响应头的值
func (r *Response) Get(name string) (string, bool) {
	for _, h := range r.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// setBody 设置 body 并追加与之一致的 Content-Length。
// 压缩必须在调用之前完成。
func (r *Response) setBody(body []byte) *Response {
	r.Body = body
	return r.Header("Content-Length", strconv.Itoa(len(body)))
}

// WriteTo 把响应按 HTTP/1.1 报文格式写入 w
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s%s", r.StatusCode, StatusText(r.StatusCode), CRLF)
	for _, h := range r.Headers {
		buf.WriteString(h.Name + ": " + h.Value + CRLF)
	}
	buf.WriteString(CRLF)
	buf.Write(r.Body)
	return buf.WriteTo(w)
}

// Bytes 返回完整的响应报文
func (r *Response) Bytes() []byte {
	var buf bytes.Buffer
	r.WriteTo(&buf)
	return buf.Bytes()
}

func gzipBytes(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(p); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}
