// 命令行入口：
// - 解析 5 个位置参数与可选 -config/-history，支持 -- 分隔
// - 初始化日志、会话客户端与可选的导出历史库
// - 导出日期区间内的全部训练 TCX，已存在的文件跳过
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"polar-flow-export/internal/config"
	"polar-flow-export/internal/export"
	"polar-flow-export/internal/fetch"
	"polar-flow-export/internal/logx"
	"polar-flow-export/internal/polar"
	"polar-flow-export/internal/store"
)

const progName = "polar-flow-export"

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// params 为位置参数。
type params struct {
	Username  string
	Password  string
	From      string
	To        string
	OutputDir string
}

// usageError 表示位置参数个数不对。
type usageError struct{ got int }

func (e usageError) Error() string {
	return fmt.Sprintf("expected 5 arguments, got %d", e.got)
}

func parseParams(args []string) (params, error) {
	if len(args) != 5 {
		return params{}, usageError{got: len(args)}
	}
	return params{Username: args[0], Password: args[1], From: args[2], To: args[3], OutputDir: args[4]}, nil
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s [-config settings.yaml] [-history] [--] <username> <password> <from_date> <to_date> <output_dir>\n", progName)
	fmt.Fprintln(w, "Use -- before the positional arguments when the username starts with '-'.")
}

// cliFlags 为可选开关。
type cliFlags struct {
	Config  string
	History bool
}

// parseFlags 解析开关，遇到第一个非开关参数或 -- 即停止，余下的原样作为位置参数。
func parseFlags(args []string, stderr io.Writer) (cliFlags, []string, error) {
	var f cliFlags
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr); fs.PrintDefaults() }
	fs.StringVar(&f.Config, "config", "", "path to settings.yaml (optional)")
	fs.BoolVar(&f.History, "history", false, "print recorded export history and exit (needs DATABASE.dsn)")
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}
	return f, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags, rest, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	// 1) 配置与日志
	cfg := config.Default()
	if flags.Config != "" {
		c, err := config.Load(flags.Config)
		if err != nil {
			fmt.Fprintf(stderr, "load config: %v\n", err)
			return 1
		}
		cfg = c
	}
	logx.Init(logx.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Locale: cfg.LogLocale,
		Color:  cfg.LogColor,
		Writer: stderr,
	})

	if flags.History {
		if err := printHistory(ctx, cfg, stdout); err != nil {
			logx.Errorf("history: %v", err)
			return 1
		}
		return 0
	}

	p, err := parseParams(rest)
	if err != nil {
		usage(stderr)
		return 1
	}

	// 2) 输出目录、会话与导出
	if err := export.EnsureDir(p.OutputDir); err != nil {
		logx.Errorf("%v", err)
		return 1
	}
	if err := exportRange(ctx, cfg, p, stdout); err != nil {
		logx.Errorf("export failed: %v", err)
		return 1
	}
	return 0
}

func exportRange(ctx context.Context, cfg *config.Config, p params, stdout io.Writer) error {
	sess, err := fetch.NewSession(p.Username, p.Password, cfg.Throttle)
	if err != nil {
		return err
	}
	cl, err := fetch.New(cfg.FetchOptions(), sess, logx.Std())
	if err != nil {
		return fmt.Errorf("http client: %w", err)
	}
	opts := []export.Option{export.WithOutput(stdout), export.WithReporter(logx.Std())}
	if cfg.Database.DSN != "" {
		st, err := store.OpenSQLite(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer st.Close()
		opts = append(opts, export.WithHistory(st))
	}

	runner := export.NewRunner(polar.NewEnumerator(cl, logx.Std()), p.OutputDir, opts...)
	sum, err := runner.Run(ctx, p.From, p.To)
	if err != nil {
		return err
	}
	logx.Infof("written=%d skipped=%d", sum.Run.Written, sum.Run.Skipped)
	if cfg.Summary != "" {
		if err := export.WriteSummary(cfg.Summary, sum); err != nil {
			return err
		}
		logx.Infof("summary written to %s", cfg.Summary)
	}
	return nil
}

func printHistory(ctx context.Context, cfg *config.Config, w io.Writer) error {
	if cfg.Database.DSN == "" {
		return errors.New("no DATABASE.dsn configured")
	}
	st, err := store.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer st.Close()
	recs, err := st.ListExports(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Filename, rec.Type, humanize.Bytes(uint64(rec.Size)), humanize.Time(rec.ExportedAt))
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "runs=%d exports=%d total=%s\n", stats.Runs, stats.Exports, humanize.Bytes(uint64(stats.Bytes)))
	return nil
}
