package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// 关闭时等待进行中连接的最长时间，超时后直接返回
const shutdownGrace = 5 * time.Second

// Server 接受 TCP 连接，每个连接只处理一个请求
type Server struct {
	cfg *Config
	mux *Mux
	log zerolog.Logger

	wg sync.WaitGroup
}

// NewServer 创建服务器并注册内置路由
func NewServer(cfg *Config, logger zerolog.Logger) *Server {
	mux := NewMux()
	registerRoutes(mux, cfg.Directory)
	return &Server{cfg: cfg, mux: mux, log: logger}
}

// ListenAndServe 绑定 cfg.Addr 并开始服务，直到 ctx 被取消
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("绑定端口失败: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve 在已有的 listener 上循环 Accept，每个连接一个 goroutine。
// ctx 取消后关闭 listener 并返回 nil。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()
	defer ln.Close()

	s.log.Info().Str("addr", ln.Addr().String()).Str("directory", s.cfg.Directory).Msg("服务器已启动")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info().Msg("监听器已关闭，停止接受新连接")
				s.waitConnections()
				return nil
			}
			s.log.Warn().Err(err).Msg("接受连接时出错")
			time.Sleep(10 * time.Millisecond)
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) waitConnections() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		s.log.Warn().Msg("仍有连接未处理完，放弃等待")
	}
}

// conn 保存单个连接的处理状态
type conn struct {
	srv *Server
	rwc net.Conn
	log zerolog.Logger
	req *Request
	res *Response
}

// 状态转移：accepted -> reading -> dispatching -> writing -> closed，不回退
type stateFunc func(*conn) stateFunc

func (s *Server) handleConnection(rwc net.Conn) {
	defer s.wg.Done()
	c := &conn{
		srv: s,
		rwc: rwc,
		log: s.log.With().
			Str("conn_id", xid.New().String()).
			Str("remote", rwc.RemoteAddr().String()).
			Logger(),
	}
	defer func() {
		// 单个连接的 panic 不能影响监听循环
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("连接处理崩溃")
			rwc.Close()
		}
	}()

	for state := accepted; state != nil; {
		state = state(c)
	}
}

func accepted(c *conn) stateFunc {
	c.log.Debug().Msg("连接已建立")
	return reading
}

func reading(c *conn) stateFunc {
	if d := c.srv.cfg.ReadTimeout; d > 0 {
		c.rwc.SetReadDeadline(time.Now().Add(d))
	}
	req, err := readRequest(c.rwc, c.srv.cfg.ReadBufferSize)
	if err != nil {
		if errors.Is(err, errMalformedRequestLine) || errors.Is(err, errMalformedHeader) {
			c.log.Warn().Err(err).Msg("请求格式错误")
			c.res = NewResponse(StatusBadRequest)
			return writing
		}
		c.log.Debug().Err(err).Msg("读取请求失败")
		return closed
	}
	req.Logger = c.log
	c.req = req
	return dispatching
}

func dispatching(c *conn) stateFunc {
	c.res = c.serve()
	c.log.Info().
		Str("method", c.req.Method).
		Str("path", c.req.Path).
		Int("status", c.res.StatusCode).
		Int("bytes", len(c.res.Body)).
		Msg("请求已处理")
	return writing
}

// serve 调用路由，handler panic 时返回 500
func (c *conn) serve() (res *Response) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("handler 崩溃")
			res = NewResponse(StatusInternalServerError)
		}
	}()
	return c.srv.mux.Serve(c.req)
}

func writing(c *conn) stateFunc {
	if d := c.srv.cfg.WriteTimeout; d > 0 {
		c.rwc.SetWriteDeadline(time.Now().Add(d))
	}
	if _, err := c.res.WriteTo(c.rwc); err != nil {
		// 写失败一般意味着客户端断开
		c.log.Debug().Err(err).Msg("发送响应失败")
	}
	return closed
}

func closed(c *conn) stateFunc {
	if err := c.rwc.Close(); err != nil {
		c.log.Debug().Err(err).Msg("关闭连接时出错")
	}
	return nil
}
