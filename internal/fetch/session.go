package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"polar-flow-export/internal/throttle"
)

// Session 保存一次导出过程中的全部会话状态：凭据、登录标记、cookie 与按主机的请求时间。
// 只由一个 Client 持有，不在 goroutine 之间共享。
type Session struct {
	Username string
	Password string
	LoggedIn bool
	Jar      http.CookieJar
	Throttle *throttle.Limiter
}

// NewSession 创建未登录的会话。
func NewSession(username, password string, interval time.Duration) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Session{
		Username: username,
		Password: password,
		Jar:      jar,
		Throttle: throttle.New(interval),
	}, nil
}

const (
	rootPath  = "/"
	loginPath = "/login"
)

// Login 先访问首页建立会话，再提交凭据。
// 登录响应内容不做检查：凭据错误时由后续请求自然失败。
func (c *Client) Login(ctx context.Context) error {
	c.log.Infof("Logging in user %s", c.session.Username)
	page, err := c.Execute(ctx, rootPath, nil)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	form := url.Values{}
	for k, v := range hiddenLoginFields(page) {
		form.Set(k, v)
	}
	form.Set("returnUrl", c.base+"/")
	form.Set("email", c.session.Username)
	form.Set("password", c.session.Password)
	if _, err := c.Execute(ctx, loginPath, form); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.session.LoggedIn = true
	c.log.Infof("Successfully logged in")
	return nil
}

// EnsureLogin 仅在尚未登录时执行 Login。
func (c *Client) EnsureLogin(ctx context.Context) error {
	if c.session.LoggedIn {
		return nil
	}
	return c.Login(ctx)
}

// hiddenLoginFields 从首页中 action 指向 /login 的表单里收集隐藏字段（如 CSRF token）。
// 页面无法解析或没有此类表单时返回空。
func hiddenLoginFields(page []byte) map[string]string {
	out := map[string]string{}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page)))
	if err != nil {
		return out
	}
	doc.Find(`form[action*="login"] input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return
		}
		val, _ := s.Attr("value")
		out[name] = val
	})
	return out
}
