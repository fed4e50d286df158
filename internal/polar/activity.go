package polar

import (
	"context"
	"fmt"

	"polar-flow-export/internal/fetch"
	"polar-flow-export/internal/logx"
)

// Activity 是通过过滤的日历条目。构造时不发生网络请求，只有 Fetch 才会下载。
type Activity struct {
	ID       string
	Datetime string
	Type     string

	path string
	cl   *fetch.Client
	log  logx.Reporter
}

// Path 返回训练资源路径（日历记录中的 url 字段）。
func (a Activity) Path() string { return a.path }

// Fetch 下载该训练的 TCX 原始内容。
func (a Activity) Fetch(ctx context.Context) ([]byte, error) {
	if a.cl == nil {
		return nil, fmt.Errorf("activity %s: no client", a.ID)
	}
	if err := a.cl.EnsureLogin(ctx); err != nil {
		return nil, err
	}
	logx.OrStd(a.log).Infof("Retrieving workout %s", a.ID)
	body, err := a.cl.Execute(ctx, a.path+"/export/tcx/false", nil)
	if err != nil {
		return nil, fmt.Errorf("export workout %s: %w", a.ID, err)
	}
	return body, nil
}
