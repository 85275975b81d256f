package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/John-Robertt/NovelDedup/internal/infra/cache"
)

// KeyLen 是预分桶键的长度（按字符计，不按字节）。
const KeyLen = 5

// 每个开括号只在下一个同类型闭括号处闭合（非嵌套、最短匹配）。
var bracketRE = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\{[^}]*\}`)

// 分隔符整体删除，而不是替换成单个分隔符。
var separatorRE = regexp.MustCompile(`[_\-+\s\p{Z}]+`)

// 偶然出现的数字，以及末尾的完结标记（韩文“완”、汉字“完”）。
var incidentalRE = regexp.MustCompile(`\d+|완$|完$`)

// volumeMarkers 是“这个名字本身带有卷号”的标记；命中时保留数字。
// 匹配对象是已去分隔符、已小写化的文本。
var volumeMarkers = []*regexp.Regexp{
	regexp.MustCompile(`\d+권.*?완결`),
	regexp.MustCompile(`\d+권.*?完`),
	regexp.MustCompile(`\d+권`),
	regexp.MustCompile(`제\d+권`),
	regexp.MustCompile(`\d+부`),
	regexp.MustCompile(`[상중하]권`),
	regexp.MustCompile(`vol\.\d+`),
	regexp.MustCompile(`volume\d+`),
	regexp.MustCompile(`\d+-\d+권`),
	regexp.MustCompile(`시즌\d+`),
	regexp.MustCompile(`season\d+`),
}

// Canonical 把字符串折叠为 NFC。
// macOS 的文件系统返回 NFD 形式的韩文，不折叠的话同名文件会被当成不同标题。
func Canonical(s string) string {
	return norm.NFC.String(s)
}

// StripBrackets 删除所有 [...]、(...)、{...} 片段。
func StripBrackets(s string) string {
	return bracketRE.ReplaceAllString(s, "")
}

// HasVolumeMarker 判断 s 是否带有可识别的卷号标记（大小写不敏感）。
func HasVolumeMarker(s string) bool {
	low := strings.ToLower(s)
	for _, re := range volumeMarkers {
		if re.MatchString(low) {
			return true
		}
	}
	return false
}

// IsHangulSyllable 判断 r 是否落在韩文音节区（가-힣）。
func IsHangulSyllable(r rune) bool {
	return r >= '가' && r <= '힣'
}

// isWordRune 对应“字母/数字/下划线”，韩文音节显式保留。
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || IsHangulSyllable(r)
}

// Normalize 生成 stem 的规范化比较键。
//
// 步骤（顺序固定）：
//  1. 删除括号片段（元数据标签）
//  2. 删除分隔符与空白
//  3. 若不含卷号标记：删除所有数字与末尾完结标记
//  4. 小写化，删除非字母数字字符（保留韩文音节）
//
// 结果可能为空串（文件名全是元数据），调用方必须把空串视为“无法处理”。
func Normalize(stem string) string {
	s := StripBrackets(Canonical(stem))
	s = separatorRE.ReplaceAllString(s, "")
	if !HasVolumeMarker(s) {
		s = incidentalRE.ReplaceAllString(s, "")
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isWordRune(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// FilenameKey 返回 normalized 的前 KeyLen 个字符（不足则返回整体）。
// 只用于预分桶：键相同只代表“值得比较”，键不同的文件永远不会被比较。
func FilenameKey(normalized string) string {
	if utf8.RuneCountInString(normalized) <= KeyLen {
		return normalized
	}
	n := 0
	for i := range normalized {
		if n == KeyLen {
			return normalized[:i]
		}
		n++
	}
	return normalized
}

// Normalizer 是带缓存的规范化器。零值不可用，请使用 New。
type Normalizer struct {
	memo *cache.Memo[string, string]
}

func New() *Normalizer {
	return &Normalizer{memo: cache.New[string, string]()}
}

// Normalize 与包级 Normalize 相同，但按输入字符串缓存结果。
func (n *Normalizer) Normalize(stem string) string {
	return n.memo.GetOrCompute(stem, func() string { return Normalize(stem) })
}

// Key 等价于 FilenameKey(n.Normalize(stem))。
func (n *Normalizer) Key(stem string) string {
	return FilenameKey(n.Normalize(stem))
}
