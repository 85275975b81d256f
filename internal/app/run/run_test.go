package run

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/NovelDedup/internal/config"
	"github.com/John-Robertt/NovelDedup/internal/domain"
	"github.com/John-Robertt/NovelDedup/internal/fingerprint"
)

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	phases     []string
	hashed     []string
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnFileHashed(done, total int, src string, res fingerprint.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hashed = append(o.hashed, src)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func effFor(root string) config.EffectiveConfig {
	return config.EffectiveConfig{
		Path:          root,
		Threshold:     0.8,
		MaxHashSize:   fingerprint.DefaultMaxSize,
		Concurrency:   2,
		Extensions:    []string{".txt", ".epub"},
		DuplicatesDir: "duplicates",
		Keep:          "first",
	}
}

// library 构建一个包含系列、重复与无法处理文件名的目录。
func library(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "MyBook 1권.txt"), "volume one")
	writeFile(t, filepath.Join(root, "MyBook 2권.txt"), "volume two")
	writeFile(t, filepath.Join(root, "MyBook 3권.txt"), "volume three")
	writeFile(t, filepath.Join(root, "Report(final).txt"), "same bytes")
	writeFile(t, filepath.Join(root, "Report (final) [v2].txt"), "same bytes")
	writeFile(t, filepath.Join(root, "[tag].txt"), "metadata only")
	writeFile(t, filepath.Join(root, "notes.pdf"), "ignored")
	writeFile(t, filepath.Join(root, "duplicates", "old.txt"), "excluded")
	return root
}

func TestExecute_EndToEnd(t *testing.T) {
	root := library(t)

	rr := Execute(context.Background(), effFor(root))

	if _, err := uuid.Parse(rr.RunID); err != nil {
		t.Fatalf("run_id 应为 UUID：%q", rr.RunID)
	}
	if rr.Canceled {
		t.Fatalf("不应标记为中断")
	}
	if len(rr.Files) != 6 {
		t.Fatalf("期望 6 个文件（排除 pdf 与重复目录），实际 %d：%+v", len(rr.Files), rr.Files)
	}

	if len(rr.Series) != 1 || len(rr.Series[0].Files) != 3 || rr.Series[0].Name != "mybook" {
		t.Fatalf("期望 1 个 3 卷的系列：%+v", rr.Series)
	}

	if len(rr.Groups) != 1 {
		t.Fatalf("期望 1 个重复组，实际 %+v", rr.Groups)
	}
	g := rr.Groups[0]
	if len(g.Members) != 2 || g.Keep != 0 || !g.Members[0].Keep {
		t.Fatalf("重复组不符合预期：%+v", g)
	}
	// 扫描结果按 RelPath 排序：空格排在 '(' 之前，所以带 [v2] 的文件是组长。
	if g.Members[0].Src != "Report (final) [v2].txt" || g.Members[0].Dst != "" {
		t.Fatalf("组长不符合预期：%+v", g.Members[0])
	}
	if g.Members[1].Dst != filepath.Join("duplicates", "Report(final).txt") {
		t.Fatalf("移动建议不符合预期：%+v", g.Members[1])
	}
	if g.Members[0].Hash == "" || g.Members[0].Hash != g.Members[1].Hash {
		t.Fatalf("相同内容应有相同哈希：%+v", g.Members)
	}
	for _, m := range g.Members {
		if filepath.Base(m.Src) == "[tag].txt" {
			t.Fatalf("无法处理的文件名不应出现在组中")
		}
	}

	want := domain.ReportSummary{
		Files: 6, Hashed: 5, Unprocessable: 1,
		SeriesGroups: 1, SeriesFiles: 3,
		DuplicateGroups: 1, DuplicateFiles: 2, ProposedMoves: 1,
	}
	if rr.Summary != want {
		t.Fatalf("summary 不符合预期：got=%+v want=%+v", rr.Summary, want)
	}

	foundIssue := false
	for _, is := range rr.Issues {
		if is.Src == "[tag].txt" && is.Code == domain.ErrCodeUnprocessableName {
			foundIssue = true
		}
	}
	if !foundIssue {
		t.Fatalf("期望 [tag].txt 的 unprocessable_name issue：%+v", rr.Issues)
	}

	// 只生成建议，不移动任何文件。
	if _, err := os.Stat(filepath.Join(root, "Report(final).txt")); err != nil {
		t.Fatalf("源文件不应被移动：%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "duplicates", "Report(final).txt")); !os.IsNotExist(err) {
		t.Fatalf("不应写入重复目录：%v", err)
	}
}

func TestExecuteWithObserver_EmitsPhaseAndFileEvents(t *testing.T) {
	root := library(t)

	obs := &recordObserver{}
	_ = ExecuteWithObserver(context.Background(), effFor(root), obs)

	if obs.startCalls != 1 {
		t.Fatalf("期望 OnStart 调用 1 次，实际 %d", obs.startCalls)
	}
	wantPhases := []string{"scan", "fingerprint", "group", "plan"}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	if len(obs.hashed) != 6 {
		t.Fatalf("期望 6 次文件事件，实际 %v", obs.hashed)
	}
}

func TestExecuteWithObserver_NilObserver_SameResultAsExecute(t *testing.T) {
	root := library(t)
	cfg := effFor(root)

	a := Execute(context.Background(), cfg)
	b := ExecuteWithObserver(context.Background(), cfg, nil)

	// 时间与 run_id 本身允许不同；对比时归零。
	a.StartedAt, a.FinishedAt, a.RunID = time.Time{}, time.Time{}, ""
	b.StartedAt, b.FinishedAt, b.RunID = time.Time{}, time.Time{}, ""

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("nil observer 不应改变结果：\nExecute=%+v\nWithObs=%+v", a, b)
	}
}

func TestExecute_CanceledKeepsPartialState(t *testing.T) {
	root := library(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rr := Execute(ctx, effFor(root))

	if !rr.Canceled {
		t.Fatalf("期望 canceled=true")
	}
	if len(rr.Groups) != 0 || len(rr.Series) != 0 {
		t.Fatalf("中断后不应分组：%+v", rr)
	}
	if len(rr.Files) != 6 {
		t.Fatalf("中断后仍应列出已发现的文件：%+v", rr.Files)
	}
	for _, f := range rr.Files {
		if f.Status != domain.FileStatusPending {
			t.Fatalf("未处理的文件应为 pending：%+v", f)
		}
	}
	last := rr.Issues[len(rr.Issues)-1]
	if last.Code != domain.ErrCodeCanceled || last.Src != "" {
		t.Fatalf("期望最后一条 issue 为 canceled：%+v", rr.Issues)
	}
}

func TestExecute_OversizeFilesStillGroupedByName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Great Novel.txt"), "0123456789")
	writeFile(t, filepath.Join(root, "Great Novel (1).txt"), "0123456789ab")

	cfg := effFor(root)
	cfg.MaxHashSize = 4
	rr := Execute(context.Background(), cfg)

	if rr.Summary.HashSkipped != 2 {
		t.Fatalf("期望 2 个文件跳过哈希：%+v", rr.Summary)
	}
	if len(rr.Groups) != 1 || len(rr.Groups[0].Members) != 2 {
		t.Fatalf("跳过哈希的文件仍应按文件名分组：%+v", rr.Groups)
	}
	if rr.Groups[0].Members[0].Hash != "" {
		t.Fatalf("跳过哈希的文件不应输出 hash：%+v", rr.Groups[0].Members[0])
	}
}

func TestExecute_ScanFailure(t *testing.T) {
	rr := Execute(context.Background(), effFor(filepath.Join(t.TempDir(), "missing")))
	if len(rr.Files) != 0 || len(rr.Issues) != 1 || rr.Issues[0].Code != domain.ErrCodeIOFailed {
		t.Fatalf("扫描失败应只输出一条 io_failed：%+v", rr)
	}
}

func TestExecute_DuplicatesPathIsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Report(final).txt"), "same bytes")
	writeFile(t, filepath.Join(root, "Report (final) [v2].txt"), "same bytes")
	writeFile(t, filepath.Join(root, "duplicates"), "not a dir")

	rr := Execute(context.Background(), effFor(root))
	if len(rr.Groups) != 1 {
		t.Fatalf("规划失败时仍应输出重复组：%+v", rr.Groups)
	}
	for _, m := range rr.Groups[0].Members {
		if m.Dst != "" {
			t.Fatalf("规划失败时不应有目标路径：%+v", m)
		}
	}
	if rr.Summary.ProposedMoves != 0 {
		t.Fatalf("期望 0 个移动建议：%+v", rr.Summary)
	}
	found := false
	for _, is := range rr.Issues {
		if is.Code == domain.ErrCodeTargetConflict {
			found = true
		}
	}
	if !found {
		t.Fatalf("期望 target_conflict issue：%+v", rr.Issues)
	}
}
