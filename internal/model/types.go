// 包 model 定义日历记录、导出记录与运行统计等数据结构。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ActivityRef 为 getCalendarEvents 返回数组中的单条记录，未列出的字段忽略。
type ActivityRef struct {
	ListItemID ID     `json:"listItemId"`
	Datetime   string `json:"datetime"`
	Type       string `json:"type"`
	URL        string `json:"url"`
}

// ID 为不透明标识，JSON 中既可能是字符串也可能是数字，统一保存为文本。
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("listItemId must not be null")
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("listItemId must be string or number, got %s", b)
	}
	*id = ID(n.String())
	return nil
}

// ExportRecord 为一次成功写盘的记录（导出历史）。
type ExportRecord struct {
	ActivityID string    `json:"activity_id"`
	Datetime   string    `json:"datetime"`
	Type       string    `json:"type"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	RunID      string    `json:"run_id"`
	ExportedAt time.Time `json:"exported_at"`
}

// Run 描述一次导出运行。
type Run struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OutputDir  string    `json:"output_dir"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Written    int       `json:"written"`
	Skipped    int       `json:"skipped"`
}

// Summary 为运行结束后的汇总，可写成 JSON。
type Summary struct {
	Run   Run      `json:"run"`
	Files []string `json:"files"`
}

// Stats 为导出历史的统计。
type Stats struct {
	Runs      int       `json:"runs"`
	Exports   int       `json:"exports"`
	Bytes     int64     `json:"bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}
