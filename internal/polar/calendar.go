// 包 polar 负责把日期区间翻译成可导出的训练列表：
// 查询日历接口、过滤非训练条目，并为每条训练提供延迟下载 TCX 的能力。
package polar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	jsoniter "github.com/json-iterator/go"

	"polar-flow-export/internal/fetch"
	"polar-flow-export/internal/logx"
	"polar-flow-export/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// 日历中这些类型不是训练，没有 TCX 可导出。
var excludedTypes = map[string]bool{
	"TRAININGTARGET": true,
	"FITNESSDATA":    true,
}

// Excluded 报告该类型的日历条目是否会被过滤。
func Excluded(typ string) bool { return excludedTypes[typ] }

// Enumerator 查询日历并生成 Activity 列表。
type Enumerator struct {
	cl  *fetch.Client
	log logx.Reporter
}

func NewEnumerator(cl *fetch.Client, log logx.Reporter) *Enumerator {
	return &Enumerator{cl: cl, log: logx.OrStd(log)}
}

// Activities 解析日期、按需登录，并只发起一次日历请求。
// 返回的 Activity 尚未下载任何内容。
func (e *Enumerator) Activities(ctx context.Context, from, to string) ([]Activity, error) {
	e.log.Infof("Fetching TCX files from %s to %s", from, to)
	fromDate, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	toDate, err := ParseDate(to)
	if err != nil {
		return nil, err
	}
	if err := e.cl.EnsureLogin(ctx); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/training/getCalendarEvents?start=%s&end=%s", CalendarDate(fromDate), CalendarDate(toDate))
	body, err := e.cl.Execute(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("calendar events: %w", err)
	}
	var refs []model.ActivityRef
	if err := json.Unmarshal(body, &refs); err != nil {
		return nil, &ParseError{Input: "calendar events", Err: err}
	}

	out := make([]Activity, 0, len(refs))
	for i, ref := range refs {
		if ref.Type == "" {
			return nil, &ParseError{Input: "calendar events", Err: fmt.Errorf("entry %d: missing type", i)}
		}
		if Excluded(ref.Type) {
			continue
		}
		if err := checkRef(ref); err != nil {
			return nil, &ParseError{Input: "calendar events", Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		out = append(out, Activity{
			ID:       string(ref.ListItemID),
			Datetime: ref.Datetime,
			Type:     ref.Type,
			path:     ref.URL,
			cl:       e.cl,
			log:      e.log,
		})
	}
	e.log.Debugf("calendar returned %d entries, %d exportable", len(refs), len(out))
	return out, nil
}

// checkRef 校验待导出条目的字段；ID 与时间会拼进文件名，不能带路径分隔符。
func checkRef(ref model.ActivityRef) error {
	var missing []string
	if ref.ListItemID == "" {
		missing = append(missing, "listItemId")
	}
	if ref.Datetime == "" {
		missing = append(missing, "datetime")
	}
	if ref.URL == "" {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	id := string(ref.ListItemID)
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid listItemId %q", id)
	}
	if strings.ContainsAny(ref.Datetime, `/\`) {
		return fmt.Errorf("invalid datetime %q", ref.Datetime)
	}
	if !strings.HasPrefix(ref.URL, "/") {
		return errors.New("url must be a path")
	}
	return nil
}

// ParseDate 宽松解析日期（推荐 YYYY-MM-DD），失败返回 *ParseError。
func ParseDate(s string) (time.Time, error) {
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, &ParseError{Input: s, Err: err}
	}
	return t, nil
}

// CalendarDate 按日历接口要求格式化为 day.month.year，不补零。
func CalendarDate(t time.Time) string {
	return fmt.Sprintf("%d.%d.%d", t.Day(), int(t.Month()), t.Year())
}

// ParseError 表示日期或响应结构无法解析。
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %q: %v", e.Input, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }
