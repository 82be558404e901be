package main

// HandlerFunc 路由处理函数类型
type HandlerFunc func(req *Request) *Response

type route struct {
	method  string
	pattern string
	prefix  bool // true: 前缀匹配；false: 精确匹配
	handler HandlerFunc
}

func (rt *route) match(req *Request) bool {
	if rt.method != req.Method {
		return false
	}
	if rt.prefix {
		return len(req.Path) >= len(rt.pattern) && req.Path[:len(rt.pattern)] == rt.pattern
	}
	return req.Path == rt.pattern
}

// Mux 非 net/http 版本的极简路由器。
// 路由按注册顺序匹配，第一个命中的生效。
type Mux struct {
	routes []route
}

// NewMux 创建一个新的路由器
func NewMux() *Mux {
	return &Mux{}
}

// Handle 注册精确匹配的路由
func (m *Mux) Handle(method, path string, handler HandlerFunc) {
	m.routes = append(m.routes, route{method: method, pattern: path, handler: handler})
}

// HandlePrefix 注册前缀匹配的路由，例如 "/echo/"
func (m *Mux) HandlePrefix(method, prefix string, handler HandlerFunc) {
	m.routes = append(m.routes, route{method: method, pattern: prefix, prefix: true, handler: handler})
}

// Serve 按顺序查找路由并分发到对应的 Handler。
// 如果没有匹配的路由，则返回 404
func (m *Mux) Serve(req *Request) *Response {
	for i := range m.routes {
		if m.routes[i].match(req) {
			return m.routes[i].handler(req)
		}
	}
	return NewResponse(StatusNotFound)
}
