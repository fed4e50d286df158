// 包 fetch 封装访问 Polar Flow 的 HTTP 会话：
// - 每个请求按主机限速、附带固定 User-Agent
// - 通过 cookie jar 在请求之间保持登录态
// - 负责登录流程；不做重试，失败统一返回 *RequestError
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"polar-flow-export/internal/logx"
)

const (
	DefaultBaseURL   = "https://flow.polar.com"
	DefaultUserAgent = "https://github.com/gabrielreid/polar-flow-export"
)

// Options 为客户端构造参数。
type Options struct {
	BaseURL    string
	UserAgent  string
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
}

// Client 是唯一的出站 HTTP 通道，独占一个 Session。
type Client struct {
	http    *http.Client
	base    string
	ua      string
	session *Session
	log     logx.Reporter
}

// New 创建客户端，sess 的 cookie jar 与限速器会被挂到底层 http.Client 上。
func New(opts Options, sess *Session, log logx.Reporter) (*Client, error) {
	if sess == nil {
		return nil, fmt.Errorf("fetch: nil session")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse base url %s: %w", base, err)
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && opts.ProxyHTTPS != "" {
				return url.Parse(opts.ProxyHTTPS)
			}
			if req.URL.Scheme == "http" && opts.ProxyHTTP != "" {
				return url.Parse(opts.ProxyHTTP)
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		http:    &http.Client{Transport: transport, Jar: sess.Jar, Timeout: opts.Timeout},
		base:    base,
		ua:      ua,
		session: sess,
		log:     logx.OrStd(log),
	}, nil
}

// BaseURL 返回服务根地址（不带结尾斜杠）。
func (c *Client) BaseURL() string { return c.base }

// Session 返回客户端持有的会话。
func (c *Client) Session() *Session { return c.session }

// LoggedIn 报告是否已完成登录流程。
func (c *Client) LoggedIn() bool { return c.session.LoggedIn }

// Execute 请求 base+path 并返回完整响应体。
// form 非 nil 时以表单编码 POST，否则 GET。
func (c *Client) Execute(ctx context.Context, path string, form url.Values) ([]byte, error) {
	target := c.base + path
	method := http.MethodGet
	var body io.Reader
	if form != nil {
		method = http.MethodPost
		body = strings.NewReader(form.Encode())
	}
	c.log.Debugf("Requesting '%s'", target)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, c.fail(method, target, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("User-Agent", c.ua)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if err := c.session.Throttle.Wait(ctx, req.URL.Host); err != nil {
		return nil, c.fail(method, target, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(method, target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.fail(method, target, fmt.Errorf("http status: %s", resp.Status))
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, c.fail(method, target, fmt.Errorf("read body: %w", err))
	}
	return buf.Bytes(), nil
}

func (c *Client) fail(method, target string, err error) error {
	c.log.Errorf("Error fetching %s: %v", target, err)
	return &RequestError{Method: method, URL: target, Err: err}
}

// RequestError 表示一次请求在传输层或 HTTP 状态上失败。
type RequestError struct {
	Method string
	URL    string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
