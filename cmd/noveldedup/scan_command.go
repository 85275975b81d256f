package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/NovelDedup/internal/app/run"
	"github.com/John-Robertt/NovelDedup/internal/config"
	"github.com/John-Robertt/NovelDedup/internal/domain"
	"github.com/John-Robertt/NovelDedup/internal/infra/fsx"
	"github.com/John-Robertt/NovelDedup/internal/logging"
	"github.com/John-Robertt/NovelDedup/internal/scan"
)

// reportName 是 --report 写入的文件名（位于 <path>/.noveldedup/ 下）。
const reportName = "report.json"

// reportWriteTimeout 限制等待报告锁的时间；运行被中断后仍会尝试写入部分结果。
const reportWriteTimeout = 10 * time.Second

type scanFlags struct {
	threshold   float64
	sensitivity string
	keep        string
	concurrency int
	report      bool
	json        bool
}

func newScanCommand(gf *globalFlags) *cobra.Command {
	sf := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "扫描目录，输出系列组、重复组与移动建议",
		Long: `扫描 path（未指定时读取当前目录的 noveldedup.toml 中的 path）下的 .txt/.epub 文件，
识别同一系列的不同卷，并把内容或文件名相似的文件归为重复组。

本命令只读：重复组只附带“保留哪个、其余移到哪里”的建议，不会移动或删除任何文件。`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runScan(cmd, gf, sf, path)
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&sf.threshold, "threshold", 0, "相似度阈值 [0,1]（优先于 --sensitivity）")
	fl.StringVar(&sf.sensitivity, "sensitivity", "", "灵敏度：low(0.75)|medium(0.80)|high(0.85)")
	fl.StringVar(&sf.keep, "keep", "", "保留策略：first|largest|newest（默认 first）")
	fl.IntVar(&sf.concurrency, "concurrency", 0, "指纹计算并发数 [1,32]（默认 4）")
	fl.BoolVar(&sf.report, "report", false, "把 RunReport 写入 <path>/.noveldedup/report.json")
	fl.BoolVar(&sf.json, "json", false, "即使 stdout 是终端也输出 JSON")

	return cmd
}

func runScan(cmd *cobra.Command, gf *globalFlags, sf *scanFlags, path string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	fl := cmd.Flags()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("读取当前目录失败：%w", err)
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Path:           path,
		Threshold:      sf.threshold,
		ThresholdSet:   fl.Changed("threshold"),
		Sensitivity:    sf.sensitivity,
		SensitivitySet: fl.Changed("sensitivity"),
		Keep:           sf.keep,
		KeepSet:        fl.Changed("keep"),
		Concurrency:    sf.concurrency,
		ConcurrencySet: fl.Changed("concurrency"),
		LogLevel:       gf.logLevel,
		LogFormat:      gf.logFormat,
	})
	if err != nil {
		rr := reportForConfigError(cwdAbs, path, err)
		emitReport(stdout, stderr, rr, sf.json)
		return &fatalError{Err: err, Reported: true}
	}

	logger, err := logging.New(logging.Options{Level: eff.LogLevel, Format: eff.LogFormat, Writer: stderr})
	if err != nil {
		return fmt.Errorf("初始化日志失败：%w", err)
	}
	if eff.ConfigFile != "" {
		logger.Debug("已读取配置文件", "component", "config", "path", eff.ConfigFile)
	}

	progressW, interactive := pickProgressWriter(stdout, stderr)
	runner := run.Runner{Logger: logger}
	var ui *progressUI
	if interactive {
		ui = newProgressUI(progressW)
		runner.Observer = ui
	}

	rr := runner.Execute(ctx, eff)
	if ui != nil {
		ui.Close()
	}

	if sf.report {
		if err := writeReportFile(ctx, eff.Path, rr); err != nil {
			fmt.Fprintf(stderr, "写入 %s 失败：%v\n", reportName, err)
			emitReport(stdout, stderr, rr, sf.json)
			return &fatalError{Err: err, Reported: true}
		}
	}

	emitReport(stdout, stderr, rr, sf.json)
	if interactive && sf.report {
		fmt.Fprintf(progressW, "report: %s\n", reportPath(eff.Path))
	}

	if rr.Canceled {
		return &fatalError{Err: context.Canceled, Reported: true}
	}
	// 扫描根目录不可读时没有任何结果可言。
	if len(rr.Files) == 0 && hasIssue(rr, domain.ErrCodeIOFailed) {
		return &fatalError{Err: fmt.Errorf("扫描 %s 失败", eff.Path), Reported: true}
	}
	return nil
}

// emitReport 遵守输出契约：stdout 是终端时输出表格；否则 stdout 只输出一个 RunReport JSON。
// 摘要与问题列表总是写 stderr。
func emitReport(stdout, stderr io.Writer, rr domain.RunReport, forceJSON bool) {
	if !forceJSON && isTerminal(stdout) {
		fmt.Fprint(stdout, renderReport(rr))
	} else {
		enc := json.NewEncoder(stdout)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(rr)
	}
	for _, is := range rr.Issues {
		fmt.Fprintln(stderr, formatIssue(is))
	}
	fmt.Fprintln(stderr, summaryLine(rr))
}

func reportForConfigError(cwdAbs, path string, err error) domain.RunReport {
	now := time.Now().UTC()
	p := cwdAbs
	if path != "" {
		p = path
		if !filepath.IsAbs(p) {
			p = filepath.Join(cwdAbs, p)
		}
	}
	rr := domain.RunReport{
		Path:       p,
		StartedAt:  now,
		FinishedAt: now,
		Issues: []domain.Issue{{
			Code: config.Code(err),
			Msg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func reportPath(root string) string {
	return filepath.Join(root, scan.StateDirName, reportName)
}

func writeReportFile(ctx context.Context, root string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	// 中断后仍要落盘已有的结果，所以不继承 ctx 的取消，只限制等锁时间。
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportWriteTimeout)
	defer cancel()
	return fsx.WriteFileLocked(wctx, filepath.Join(root, scan.StateDirName), reportName, b)
}

func hasIssue(rr domain.RunReport, code string) bool {
	for _, is := range rr.Issues {
		if is.Code == code {
			return true
		}
	}
	return false
}
