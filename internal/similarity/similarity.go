// Package similarity 计算两个文件名 stem 的相似度。
//
// 相似度首先是一道闸门：结构信号表明两者不可能重复时直接返回 0；
// 只有通过闸门的组合才进入通用的字符序列相似度（最长匹配块比率）。
package similarity

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/John-Robertt/NovelDedup/internal/infra/cache"
	"github.com/John-Robertt/NovelDedup/internal/textnorm"
	"github.com/John-Robertt/NovelDedup/internal/volume"
)

var (
	residualDropRE = regexp.MustCompile(`\d+`)
	spaceRunRE     = regexp.MustCompile(`\s+`)
)

// ResidualIdentity 返回 stem 去掉括号片段、数字与非字母数字字符后的“残余标题”，
// 空白折叠为单个空格。两个 stem 的残余标题不同即视为不同作品。
func ResidualIdentity(stem string) string {
	s := textnorm.StripBrackets(textnorm.Canonical(stem))
	s = residualDropRE.ReplaceAllString(s, "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) || textnorm.IsHangulSyllable(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(spaceRunRE.ReplaceAllString(b.String(), " "))
}

// SameSeriesVolumes 判断 a、b 是否都带卷信息且规范化系列名相同（即同一系列的不同卷）。
func SameSeriesVolumes(a, b string) bool {
	ia, ok := volume.Extract(a)
	if !ok {
		return false
	}
	ib, ok := volume.Extract(b)
	if !ok {
		return false
	}
	return volume.NormalizeSeriesName(ia.SeriesName) == volume.NormalizeSeriesName(ib.SeriesName)
}

// Ratio 是 2*M/T 形式的最长匹配块比率，按 rune（而非字节）比较。
// 两个空串的比率为 1。
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Score 计算 a、b 的相似度，结果落在 [0,1]，且与参数顺序无关。
//
// 判定顺序：
//  1. 同一系列的不同卷：0
//  2. 残余标题不同：0
//  3. 原始 stem 的最长匹配块比率
func Score(a, b string) float64 {
	a, b = canonicalPair(a, b)
	if SameSeriesVolumes(a, b) {
		return 0
	}
	if ResidualIdentity(a) != ResidualIdentity(b) {
		return 0
	}
	return Ratio(a, b)
}

// canonicalPair 把无序对固定为 (较小, 较大)，既用于缓存键，也保证 Score 的对称性。
func canonicalPair(a, b string) (string, string) {
	a, b = textnorm.Canonical(a), textnorm.Canonical(b)
	if b < a {
		return b, a
	}
	return a, b
}

type pairKey struct {
	a, b string
}

// Scorer 是带缓存的 Score。缓存键为无序对；并发写入同一个键是安全的。
// 零值不可用，请使用 New。
type Scorer struct {
	memo *cache.Memo[pairKey, float64]
}

func New() *Scorer {
	return &Scorer{memo: cache.New[pairKey, float64]()}
}

func (s *Scorer) Score(a, b string) float64 {
	a, b = canonicalPair(a, b)
	return s.memo.GetOrCompute(pairKey{a, b}, func() float64 { return Score(a, b) })
}

// Len 返回已缓存的组合数。
func (s *Scorer) Len() int { return s.memo.Len() }
