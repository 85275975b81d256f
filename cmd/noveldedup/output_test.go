package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/NovelDedup/internal/domain"
)

func TestRenderReport_GroupsAndSeries(t *testing.T) {
	rr := domain.RunReport{
		Path:      "/books",
		Threshold: 0.8,
		Groups: []domain.GroupReport{{
			Key:  "report",
			Keep: 0,
			Members: []domain.MemberReport{
				{Src: "Report (final) [v2].txt", Size: 2048, Hash: "00000000000000aa", Keep: true},
				{Src: "Report(final).txt", Dst: filepath.Join("duplicates", "Report(final).txt"), Size: 2048, Hash: "00000000000000aa"},
			},
		}},
		Series: []domain.SeriesReport{{
			Name:  "mybook",
			Files: []domain.SeriesFile{{Src: "MyBook 1권.txt", Ordinal: 1}, {Src: "MyBook 2권.txt", Ordinal: 2}},
		}},
	}

	out := renderReport(rr)
	for _, want := range []string{
		"重复组 1/1: report",
		"保留",
		"移动到 " + filepath.Join("duplicates", "Report(final).txt"),
		"2.0 KiB",
		"txt",
		"系列（1 组",
		"MyBook 2권.txt",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if strings.Contains(out, "未发现重复文件") {
		t.Fatalf("有重复组时不应提示未发现：\n%s", out)
	}
}

func TestRenderReport_Empty(t *testing.T) {
	out := renderReport(domain.RunReport{Path: "/books", Threshold: 0.8})
	if !strings.Contains(out, "未发现重复文件") {
		t.Fatalf("期望提示未发现重复文件：\n%s", out)
	}
	if strings.Contains(out, "系列") {
		t.Fatalf("没有系列时不应输出系列表：\n%s", out)
	}
}

func TestSuggestion(t *testing.T) {
	cases := []struct {
		m    domain.MemberReport
		want string
	}{
		{domain.MemberReport{Keep: true}, "保留"},
		{domain.MemberReport{Dst: "duplicates/a.txt"}, "移动到 duplicates/a.txt"},
		{domain.MemberReport{}, "-"},
	}
	for _, c := range cases {
		if got := suggestion(c.m); got != c.want {
			t.Fatalf("期望 %q，实际 %q", c.want, got)
		}
	}
}

func TestFormatIssueAndSummary(t *testing.T) {
	if got := formatIssue(domain.Issue{Code: domain.ErrCodeCanceled, Msg: "中断"}); got != "<run> canceled: 中断" {
		t.Fatalf("合成 issue 格式不符合预期：%q", got)
	}
	if got := formatIssue(domain.Issue{Src: "a.txt", Code: domain.ErrCodeHashFailed, Msg: "x"}); got != "a.txt hash_failed: x" {
		t.Fatalf("文件 issue 格式不符合预期：%q", got)
	}

	rr := domain.RunReport{Canceled: true, Summary: domain.ReportSummary{Files: 3, Hashed: 1}}
	line := summaryLine(rr)
	if !strings.HasPrefix(line, "完成：files=3 hashed=1") || !strings.HasSuffix(line, "(已中断)") {
		t.Fatalf("摘要不符合预期：%q", line)
	}
}

func TestFormatSize(t *testing.T) {
	if got := formatSize(-1); got != "0 B" {
		t.Fatalf("负数应按 0 处理，实际 %q", got)
	}
	if got := formatSize(50 << 20); got != "50 MiB" {
		t.Fatalf("期望 50 MiB，实际 %q", got)
	}
}
