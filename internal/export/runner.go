// 包 export 负责主流程编排：
// - 从日历列举训练
// - 已存在的文件直接跳过，不发起下载
// - 其余逐条下载并写入输出目录，记录导出历史
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"polar-flow-export/internal/logx"
	"polar-flow-export/internal/model"
	"polar-flow-export/internal/polar"
)

// Source 提供日期区间内可导出的训练。
type Source interface {
	Activities(ctx context.Context, from, to string) ([]polar.Activity, error)
}

// History 记录运行与写盘文件，可为空。
type History interface {
	StartRun(ctx context.Context, r model.Run) error
	FinishRun(ctx context.Context, r model.Run) error
	RecordExport(ctx context.Context, rec model.ExportRecord) error
}

// Runner 导出执行器。
type Runner struct {
	src  Source
	dir  string
	out  io.Writer
	log  logx.Reporter
	hist History
}

type Option func(*Runner)

// WithOutput 设置进度行（Wrote file / Export complete）的输出目标，默认 stdout。
func WithOutput(w io.Writer) Option { return func(r *Runner) { r.out = w } }

func WithReporter(l logx.Reporter) Option { return func(r *Runner) { r.log = l } }

func WithHistory(h History) Option { return func(r *Runner) { r.hist = h } }

func NewRunner(src Source, dir string, opts ...Option) *Runner {
	r := &Runner{src: src, dir: dir, out: os.Stdout}
	for _, o := range opts {
		o(r)
	}
	r.log = logx.OrStd(r.log)
	return r
}

// Filename 由训练时间与 ID 生成文件名，时间中的冒号替换为下划线。
func Filename(datetime, id string) string {
	return strings.ReplaceAll(datetime, ":", "_") + "_" + id + ".tcx"
}

// EnsureDir 创建输出目录（含中间目录）。
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return nil
}

// Run 按日历顺序导出。任何错误立即返回，之前写好的文件保留，
// 再次运行同一区间时会被跳过。
func (r *Runner) Run(ctx context.Context, from, to string) (model.Summary, error) {
	run := model.Run{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		OutputDir: r.dir,
		StartedAt: time.Now(),
	}
	sum := model.Summary{Run: run}
	if r.hist != nil {
		if err := r.hist.StartRun(ctx, run); err != nil {
			return sum, err
		}
	}

	acts, err := r.src.Activities(ctx, from, to)
	if err != nil {
		return sum, err
	}
	for _, a := range acts {
		name := Filename(a.Datetime, a.ID)
		if a.ID == "" || name != filepath.Base(name) {
			return sum, fmt.Errorf("activity %q: unusable filename %q", a.ID, name)
		}
		path := filepath.Join(r.dir, name)
		if _, err := os.Stat(path); err == nil {
			r.log.Infof("skipping %s", name)
			sum.Run.Skipped++
			continue
		}

		data, err := a.Fetch(ctx)
		if err != nil {
			return sum, err
		}
		if err := writeNew(path, data); err != nil {
			return sum, err
		}
		fmt.Fprintf(r.out, "Wrote file %s\n", name)
		r.log.Debugf("%s: %s", name, humanize.Bytes(uint64(len(data))))
		sum.Run.Written++
		sum.Files = append(sum.Files, name)

		if r.hist != nil {
			rec := model.ExportRecord{
				ActivityID: a.ID,
				Datetime:   a.Datetime,
				Type:       a.Type,
				Filename:   name,
				Size:       int64(len(data)),
				RunID:      run.ID,
				ExportedAt: time.Now(),
			}
			if err := r.hist.RecordExport(ctx, rec); err != nil {
				return sum, err
			}
		}
	}

	sum.Run.FinishedAt = time.Now()
	if r.hist != nil {
		if err := r.hist.FinishRun(ctx, sum.Run); err != nil {
			return sum, err
		}
	}
	fmt.Fprintln(r.out, "Export complete")
	return sum, nil
}

// writeNew 只创建新文件，绝不覆盖已有文件；写入失败时删除半成品，
// 否则下次运行会把残缺文件当作已导出而跳过。
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
