package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	FileStatusHashed        = "hashed"
	FileStatusHashSkipped   = "hash_skipped"
	FileStatusHashFailed    = "hash_failed"
	FileStatusUnprocessable = "unprocessable"
	FileStatusPending       = "pending"
)

const (
	ErrCodeIOFailed          = "io_failed"
	ErrCodeHashFailed        = "hash_failed"
	ErrCodeHashSkipped       = "hash_skipped"
	ErrCodeUnprocessableName = "unprocessable_name"
	ErrCodeCanceled          = "canceled"
	ErrCodeTargetConflict    = "target_conflict"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissingPath = "config_missing_path"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	RunID     string  `json:"run_id"`
	Path      string  `json:"path"`
	Threshold float64 `json:"threshold"`
	Canceled  bool    `json:"canceled"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary  `json:"summary"`
	Groups  []GroupReport  `json:"groups"`
	Series  []SeriesReport `json:"series"`
	Files   []FileReport   `json:"files"`
	Issues  []Issue        `json:"issues"`
}

type ReportSummary struct {
	Files           int `json:"files"`
	Hashed          int `json:"hashed"`
	HashSkipped     int `json:"hash_skipped"`
	HashFailed      int `json:"hash_failed"`
	Unprocessable   int `json:"unprocessable"`
	SeriesGroups    int `json:"series_groups"`
	SeriesFiles     int `json:"series_files"`
	DuplicateGroups int `json:"duplicate_groups"`
	DuplicateFiles  int `json:"duplicate_files"`
	ProposedMoves   int `json:"proposed_moves"`
}

// GroupReport 是一个重复组及其建议处理。
type GroupReport struct {
	Key     string         `json:"key"`
	Keep    int            `json:"keep"`
	Members []MemberReport `json:"members"`
}

type MemberReport struct {
	Src  string `json:"src"`
	Dst  string `json:"dst"` // 保留的文件为空
	Size int64  `json:"size"`
	Hash string `json:"hash"`
	Keep bool   `json:"keep"`
}

type SeriesReport struct {
	Name  string       `json:"name"`
	Files []SeriesFile `json:"files"`
}

type SeriesFile struct {
	Src     string `json:"src"`
	Ordinal int    `json:"ordinal"`
}

// FileReport 记录每个文件的指纹结果；中断时用于保留已计算的部分。
type FileReport struct {
	Src        string `json:"src"`
	Size       int64  `json:"size"`
	Hash       string `json:"hash"`
	Normalized string `json:"normalized"`
	Status     string `json:"status"`
}

// Issue 是非致命问题（单文件失败、被排除、运行被中断等）。
type Issue struct {
	Src  string `json:"src"`
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) files/issues 稳定排序：按 src 字典序（groups/series 保持聚类顺序，不排序）
// 3) summary 由明细计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Groups == nil {
		r.Groups = []GroupReport{}
	}
	if r.Series == nil {
		r.Series = []SeriesReport{}
	}
	if r.Files == nil {
		r.Files = []FileReport{}
	}
	if r.Issues == nil {
		r.Issues = []Issue{}
	}

	sort.SliceStable(r.Files, func(i, j int) bool { return r.Files[i].Src < r.Files[j].Src })
	sort.SliceStable(r.Issues, func(i, j int) bool {
		a, b := r.Issues[i].Src, r.Issues[j].Src
		// src=="" 的合成条目（例如 canceled）排在最后。
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return a < b
	})

	var s ReportSummary
	s.Files = len(r.Files)
	for _, f := range r.Files {
		switch f.Status {
		case FileStatusHashed:
			s.Hashed++
		case FileStatusHashSkipped:
			s.HashSkipped++
		case FileStatusHashFailed:
			s.HashFailed++
		case FileStatusUnprocessable:
			s.Unprocessable++
		}
	}
	s.SeriesGroups = len(r.Series)
	for _, sr := range r.Series {
		s.SeriesFiles += len(sr.Files)
	}
	s.DuplicateGroups = len(r.Groups)
	for _, g := range r.Groups {
		s.DuplicateFiles += len(g.Members)
		for _, m := range g.Members {
			if !m.Keep && m.Dst != "" {
				s.ProposedMoves++
			}
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
