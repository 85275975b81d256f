package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/John-Robertt/NovelDedup/internal/app/run"
	"github.com/John-Robertt/NovelDedup/internal/config"
	"github.com/John-Robertt/NovelDedup/internal/fingerprint"
	"github.com/John-Robertt/NovelDedup/internal/scan"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出。
//
// 所有过程信息写到 stderr（或 fallback 到 stdout 的终端），不影响 stdout 的 JSON 契约；
// run 层只发事件，这里决定如何展示。
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time

	bar   *progressbar.ProgressBar
	bytes int64
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] noveldedup scan (只读，不移动文件)\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintf(p.w, "  threshold: %.2f\n", eff.Threshold)
	fmt.Fprintf(p.w, "  keep: %s\n", eff.Keep)
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  max_hash_size: %s\n", formatSize(eff.MaxHashSize))
	fmt.Fprintf(p.w, "  extensions: %s\n", formatStringListJSON(eff.Extensions))
	fmt.Fprintf(p.w, "  exclude_dirs: %s + 固定排除 %s/, %s/\n",
		formatStringListJSON(eff.ExcludeDirs), scan.StateDirName, eff.DuplicatesDir,
	)
	fmt.Fprintf(p.w, "  duplicates_dir: %s\n", filepath.Join(eff.Path, eff.DuplicatesDir))
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d oversize=%d (%s)\n",
			intField(fields, "files"), intField(fields, "oversize"), formatShortDuration(dur),
		)
	case "fingerprint":
		p.finishBarLocked()
		fmt.Fprintf(p.w, "指纹: hashed=%d skipped=%d failed=%d read=%s workers=%d (%s)\n",
			intField(fields, "hashed"),
			intField(fields, "skipped"),
			intField(fields, "failed"),
			humanize.IBytes(uint64(p.bytes)),
			intField(fields, "workers"),
			formatShortDuration(dur),
		)
	case "group":
		fmt.Fprintf(p.w, "分组: series=%d duplicates=%d excluded=%d (%s)\n",
			intField(fields, "series"), intField(fields, "duplicates"), intField(fields, "excluded"), formatShortDuration(dur),
		)
	case "plan":
		fmt.Fprintf(p.w, "规划: groups=%d moves=%d keep=%v (%s)\n\n",
			intField(fields, "groups"), intField(fields, "moves"), fields["keep"], formatShortDuration(dur),
		)
	default:
		// 未知阶段也不要静默。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnFileHashed(done, total int, src string, res fingerprint.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("指纹"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	if res.Err == nil {
		p.bytes += res.Fingerprint.Size
	}
	p.bar.Describe(fmt.Sprintf("指纹 %s", humanize.IBytes(uint64(p.bytes))))
	_ = p.bar.Set(done)
}

// Close 结束尚未完成的进度条（例如运行被中断时）。
func (p *progressUI) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishBarLocked()
}

func (p *progressUI) finishBarLocked() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}
