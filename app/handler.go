package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	echoPrefix  = "/echo/"
	filesPrefix = "/files/"
)

// registerRoutes 注册所有路由到 Mux，顺序即匹配优先级
func registerRoutes(m *Mux, directory string) {
	files := &fileHandler{dir: directory}

	// /echo/*
	m.HandlePrefix("GET", echoPrefix, echoHandler)
	// /user-agent
	m.Handle("GET", "/user-agent", userAgentHandler)
	// /files/*
	m.HandlePrefix("GET", filesPrefix, files.get)
	m.HandlePrefix("POST", filesPrefix, files.post)
	// 根路径 "/"
	m.Handle("GET", "/", rootHandler)
}

// 根路径 Handler：返回 200 OK，无 body
func rootHandler(req *Request) *Response {
	return NewResponse(StatusOK)
}

// acceptsGzip 只做子串匹配，不解析 q 值
func acceptsGzip(h Header) bool {
	return strings.Contains(h.Get("Accept-Encoding"), "gzip")
}

// /echo/<text> Handler，text 原样返回（不做 URL 解码）
func echoHandler(req *Request) *Response {
	body := []byte(strings.TrimPrefix(req.Path, echoPrefix))

	res := NewResponse(StatusOK).Header("Content-Type", "text/plain")
	if acceptsGzip(req.Headers) {
		compressed, err := gzipBytes(body)
		if err != nil {
			req.Logger.Error().Err(err).Msg("压缩响应失败")
			return NewResponse(StatusInternalServerError)
		}
		res.Header("Content-Encoding", "gzip")
		body = compressed
	}
	return res.setBody(body)
}

// /user-agent Handler
func userAgentHandler(req *Request) *Response {
	return NewResponse(StatusOK).
		Header("Content-Type", "text/plain").
		setBody([]byte(req.Headers.Get("User-Agent")))
}

// fileHandler 处理 /files/*，根目录来自 --directory
type fileHandler struct {
	dir string
}

// resolve 把请求路径映射到根目录下的文件，越界或未配置目录时 ok 为 false
func (f *fileHandler) resolve(path string) (string, bool) {
	if f.dir == "" {
		return "", false
	}
	name := strings.TrimPrefix(path, filesPrefix)
	full := filepath.Join(f.dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(f.dir, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

// 读文件
func (f *fileHandler) get(req *Request) *Response {
	full, ok := f.resolve(req.Path)
	if !ok {
		return NewResponse(StatusNotFound)
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return NewResponse(StatusNotFound)
	}
	content, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewResponse(StatusNotFound)
		}
		req.Logger.Error().Err(err).Str("file", full).Msg("读取文件失败")
		return NewResponse(StatusInternalServerError)
	}
	return NewResponse(StatusOK).
		Header("Content-Type", "application/octet-stream").
		setBody(content)
}

// 写文件：自动创建父目录，已存在则覆盖。
// 并发写同一个文件时不做同步，后写者生效。
func (f *fileHandler) post(req *Request) *Response {
	full, ok := f.resolve(req.Path)
	if !ok {
		return NewResponse(StatusNotFound)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		req.Logger.Error().Err(err).Str("file", full).Msg("创建目录失败")
		return NewResponse(StatusInternalServerError)
	}
	if err := os.WriteFile(full, req.Body, 0o644); err != nil {
		req.Logger.Error().Err(err).Str("file", full).Msg("写入文件失败")
		return NewResponse(StatusInternalServerError)
	}
	req.Logger.Debug().Str("file", full).Int("bytes", len(req.Body)).Msg("文件已写入")
	return NewResponse(StatusCreated)
}
