// Package planner 为每个重复组生成“保留一个、其余移入重复目录”的建议。
// 只生成计划，不做任何写入或移动。
package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/John-Robertt/NovelDedup/internal/domain"
	"github.com/John-Robertt/NovelDedup/internal/infra/fsx"
)

// 保留策略。
const (
	KeepFirst   = "first"   // 组长（最先出现的文件）
	KeepLargest = "largest" // 最大的文件；相同大小取靠前者
	KeepNewest  = "newest"  // 修改时间最新的文件；相同取靠前者
)

// DefaultDuplicatesDir 是默认的重复文件目录名（相对扫描根目录）。
const DefaultDuplicatesDir = "duplicates"

func ValidKeep(policy string) bool {
	switch policy {
	case KeepFirst, KeepLargest, KeepNewest:
		return true
	}
	return false
}

// DupState 是重复目录的现状。
type DupState struct {
	Dir           string
	ExistingNames map[string]struct{}
}

// ReadDupState 读取 <root>/<dupDir>/ 的现状（只做 ReadDir，不读文件内容）。
// 目录不存在时返回空状态且不报错；路径存在但不是目录时返回 PathTypeConflictError。
func ReadDupState(fsys afero.Fs, root, dupDir string) (DupState, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if strings.TrimSpace(dupDir) == "" {
		dupDir = DefaultDuplicatesDir
	}
	dir := dupDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dupDir)
	}
	st := DupState{
		Dir:           filepath.Clean(dir),
		ExistingNames: map[string]struct{}{},
	}

	fi, err := fsys.Stat(st.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return DupState{}, err
	}
	if !fi.IsDir() {
		return DupState{}, &fsx.PathTypeConflictError{Path: st.Dir, Want: "dir", Got: "file"}
	}

	entries, err := afero.ReadDir(fsys, st.Dir)
	if err != nil {
		return DupState{}, err
	}
	for _, e := range entries {
		st.ExistingNames[e.Name()] = struct{}{}
	}
	return st, nil
}

// KeepIndex 按策略选出组内保留的成员下标。
func KeepIndex(g domain.DuplicateGroup, policy string) int {
	keep := 0
	for i := 1; i < len(g.Members); i++ {
		m, k := g.Members[i], g.Members[keep]
		switch policy {
		case KeepLargest:
			if m.Size() > k.Size() {
				keep = i
			}
		case KeepNewest:
			if m.File.ModUnix > k.File.ModUnix {
				keep = i
			}
		}
	}
	return keep
}

// Plan 为 groups 生成确定性的建议（不做任何写入/移动）。
//
// 目标文件名尽量保留原名；与重复目录中已存在的文件、或与本次计划中更早的目标冲突时，
// 追加 __N（N 从 2 开始）。groups 的顺序决定冲突时谁拿到原名。
func Plan(groups []domain.DuplicateGroup, policy string, st DupState) ([]domain.GroupPlan, error) {
	if policy == "" {
		policy = KeepFirst
	}
	if !ValidKeep(policy) {
		return nil, fmt.Errorf("未知的保留策略：%q", policy)
	}

	used := make(map[string]struct{}, len(st.ExistingNames))
	for n := range st.ExistingNames {
		used[n] = struct{}{}
	}

	plans := make([]domain.GroupPlan, 0, len(groups))
	for _, g := range groups {
		keep := KeepIndex(g, policy)
		p := domain.GroupPlan{
			Key:   g.Key,
			Keep:  keep,
			Moves: make([]domain.MovePlan, 0, len(g.Members)-1),
		}
		for i, m := range g.Members {
			if i == keep {
				continue
			}
			srcAbs := m.File.AbsPath
			name := filepath.Base(srcAbs) // 尽量保留原文件名（含扩展名大小写）
			dstName := allocName(name, used)
			used[dstName] = struct{}{}
			p.Moves = append(p.Moves, domain.MovePlan{
				SrcAbs: srcAbs,
				DstAbs: filepath.Join(st.Dir, dstName),
			})
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func allocName(name string, used map[string]struct{}) string {
	if _, ok := used[name]; !ok {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s__%d%s", base, n, ext)
		if _, ok := used[cand]; !ok {
			return cand
		}
	}
}
