package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/John-Robertt/NovelDedup/internal/domain"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// pickProgressWriter 选择进度输出位置：只在交互终端启用，默认 stderr（不污染 stdout JSON）。
func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	if isTerminal(stderr) {
		return stderr, true
	}
	// 只重定向了 stderr 时 stdout 仍是终端：退化输出到 stdout。
	if isTerminal(stdout) {
		return stdout, true
	}
	return nil, false
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderReport 把 RunReport 渲染为终端表格：先重复组，再系列组。
func renderReport(rr domain.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "扫描目录: %s\n", rr.Path)
	fmt.Fprintf(&b, "相似度阈值: %.2f\n\n", rr.Threshold)

	if len(rr.Groups) == 0 {
		b.WriteString("未发现重复文件。\n")
	}
	for i, g := range rr.Groups {
		fmt.Fprintf(&b, "重复组 %d/%d: %s（%d 个文件）\n", i+1, len(rr.Groups), g.Key, len(g.Members))
		rows := make([][]string, 0, len(g.Members))
		for j, m := range g.Members {
			rows = append(rows, []string{
				strconv.Itoa(j + 1),
				m.Src,
				formatSize(m.Size),
				extOf(m.Src),
				orDash(m.Hash),
				suggestion(m),
			})
		}
		b.WriteString(renderTable(
			[]string{"#", "文件", "大小", "类型", "哈希", "建议"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
		))
		b.WriteString("\n\n")
	}

	if len(rr.Series) > 0 {
		rows := make([][]string, 0)
		for _, s := range rr.Series {
			for _, f := range s.Files {
				rows = append(rows, []string{s.Name, strconv.Itoa(f.Ordinal), f.Src})
			}
		}
		fmt.Fprintf(&b, "系列（%d 组，不视为重复）\n", len(rr.Series))
		b.WriteString(renderTable(
			[]string{"系列", "卷", "文件"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft},
		))
		b.WriteString("\n")
	}

	return b.String()
}

func suggestion(m domain.MemberReport) string {
	switch {
	case m.Keep:
		return "保留"
	case m.Dst != "":
		return "移动到 " + m.Dst
	default:
		return "-"
	}
}

func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func extOf(p string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(p)), ".")
	return orDash(ext)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatIssue(is domain.Issue) string {
	src := is.Src
	if src == "" {
		src = "<run>"
	}
	return fmt.Sprintf("%s %s: %s", src, is.Code, is.Msg)
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	line := fmt.Sprintf("完成：files=%d hashed=%d series=%d duplicate_groups=%d duplicate_files=%d proposed_moves=%d issues=%d",
		s.Files, s.Hashed, s.SeriesGroups, s.DuplicateGroups, s.DuplicateFiles, s.ProposedMoves, len(rr.Issues),
	)
	if rr.Canceled {
		line += " (已中断)"
	}
	return line
}
