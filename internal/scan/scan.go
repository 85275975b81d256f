package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/John-Robertt/NovelDedup/internal/domain"
	"github.com/John-Robertt/NovelDedup/internal/textnorm"
)

// StateDirName 是程序自身的状态目录（report.json、锁文件），永远不参与扫描。
const StateDirName = ".noveldedup"

// DefaultExtensions 是默认的扩展名白名单。
var DefaultExtensions = []string{".txt", ".epub"}

type Options struct {
	ExcludeDirs   []string // 相对 root（绝对路径按绝对路径处理）
	Extensions    []string // 为空时使用 DefaultExtensions；大小写不敏感
	DuplicatesDir string   // 重复文件目录（相对 root），永久排除
	MaxHashSize   int64    // >0 时把超过该大小的文件记入 Oversize
}

type Result struct {
	Files    []domain.BookFile
	Oversize []domain.BookFile // Files 的子集：哈希会被跳过，但仍参与分组
}

// Books 扫描 root 下的电子书/文本文件，并应用目录排除规则。
//
// 规则（硬约束）：
// - 永久排除：<root>/.noveldedup/ 与 <root>/<DuplicatesDir>/
// - ExcludeDirs：来自配置文件，均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）
// - 只收录普通文件；符号链接不跟随
//
// 注意：扫描阶段只做 stat，不读文件内容。
func Books(fsys afero.Fs, root string, opts Options) (Result, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	root = filepath.Clean(root)
	excluded := buildExcluded(root, opts.DuplicatesDir, opts.ExcludeDirs)
	allow := extSet(opts.Extensions)

	var res Result
	res.Files = make([]domain.BookFile, 0, 128)
	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		// 统一的排除判断：目录用 SkipDir，文件则直接跳过。
		if isExcluded(path, excluded) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		name := info.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := allow[ext]; !ok {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		res.Files = append(res.Files, domain.BookFile{
			AbsPath: path,
			RelPath: rel,
			Stem:    textnorm.Canonical(strings.TrimSuffix(name, filepath.Ext(name))),
			Ext:     ext,
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].RelPath < res.Files[j].RelPath })

	if opts.MaxHashSize > 0 {
		for _, f := range res.Files {
			if f.Size > opts.MaxHashSize {
				res.Oversize = append(res.Oversize, f)
			}
		}
	}
	return res, nil
}

func extSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = struct{}{}
	}
	return m
}

func buildExcluded(root, duplicatesDir string, excludeDirs []string) []string {
	excluded := make([]string, 0, 2+len(excludeDirs))
	excluded = append(excluded, filepath.Join(root, StateDirName))
	if d := strings.TrimSpace(duplicatesDir); d != "" {
		excluded = append(excluded, resolve(root, d))
	}

	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		excluded = append(excluded, resolve(root, x))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(root, p))
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
