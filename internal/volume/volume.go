// Package volume 识别“系列名 + 卷标记”，并判断一组文件是否构成连续的卷。
package volume

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/NovelDedup/internal/domain"
	"github.com/John-Robertt/NovelDedup/internal/textnorm"
)

// MinSeriesNameLen 是系列名（trim 后）的最少字符数；更短的匹配会被丢弃并尝试下一条规则。
const MinSeriesNameLen = 2

// pattern 的第 1 组是系列名（惰性匹配的前缀），第 2 组是卷标记。
type pattern struct {
	name string
	re   *regexp.Regexp
}

const sep = `[\s\p{Z}_-]*`

// patterns 的顺序就是优先级：先命中者胜出。
// 同一个文件名往往能同时满足多条规则（例如以数字结尾的名字也满足兜底规则），
// 更具体的“화/장/편”等规则必须排在兜底规则之前。
var patterns = []pattern{
	{"number_unit", regexp.MustCompile(`(?i)(.*?)` + sep + `(\d+)권`)},
	{"range_unit", regexp.MustCompile(`(?i)(.*?)` + sep + `(\d+)-\d+권`)},
	{"unit_number", regexp.MustCompile(`(?i)(.*?)` + sep + `[제권]\s*(\d+)`)},
	{"tier", regexp.MustCompile(`(?i)(.*?)` + sep + `(상|중|하)편?`)},
	{"english_ordinal", regexp.MustCompile(`(?i)(.*?)` + sep + `(first|second|third|fourth|fifth)`)},
	{"vol", regexp.MustCompile(`(?i)(.*?)` + sep + `vol\.?\s*(\d+)`)},
	{"part", regexp.MustCompile(`(?i)(.*?)` + sep + `part\.?\s*(\d+)`)},
	{"hash", regexp.MustCompile(`(?i)(.*?)` + sep + `#(\d+)`)},
	{"episode", regexp.MustCompile(`(?i)(.*?)` + sep + `(\d+)화`)},
	{"chapter", regexp.MustCompile(`(?i)(.*?)` + sep + `(\d+)장`)},
	{"section", regexp.MustCompile(`(?i)(.*?)` + sep + `(\d+)편`)},
	{"season_ko", regexp.MustCompile(`(?i)(.*?)` + sep + `시즌\s*(\d+)`)},
	{"season", regexp.MustCompile(`(?i)(.*?)` + sep + `season\s*(\d+)`)},
	{"trailing_number", regexp.MustCompile(`(?i)(.*?)` + sep + `(\d+)(?:\.(?:txt|epub))?$`)},
}

// Extract 按固定优先级尝试所有规则，返回第一个系列名足够长的匹配。
func Extract(stem string) (domain.VolumeInfo, bool) {
	info, _, ok := extract(stem)
	return info, ok
}

func extract(stem string) (domain.VolumeInfo, string, bool) {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if utf8.RuneCountInString(name) < MinSeriesNameLen {
			continue
		}
		return domain.VolumeInfo{SeriesName: name, VolumeToken: m[2]}, p.name, true
	}
	return domain.VolumeInfo{}, "", false
}

var (
	seriesSepRE  = regexp.MustCompile(`[\s\p{Z}\-_]+`)
	seriesWordRE = regexp.MustCompile(`(?i)시리즈|series`)
	unitWordRE   = regexp.MustCompile(`(?i)권|화|편|장|part|volume|vol`)
	digitsRE     = regexp.MustCompile(`\d+`)
)

// NormalizeSeriesName 把系列名规范化；两个文件属于同一系列当且仅当结果字符串相等。
func NormalizeSeriesName(name string) string {
	s := seriesSepRE.ReplaceAllString(textnorm.Canonical(name), "")
	s = textnorm.StripBrackets(s)
	s = seriesWordRE.ReplaceAllString(s, "")
	s = unitWordRE.ReplaceAllString(s, "")
	s = digitsRE.ReplaceAllString(s, "")
	return strings.ToLower(s)
}

var tierOrdinals = map[string]int{"상": 1, "중": 2, "하": 3}

var englishOrdinals = map[string]int{
	"first":  1,
	"second": 2,
	"third":  3,
	"fourth": 4,
	"fifth":  5,
}

// Ordinal 把卷标记转换为卷序号；无法识别的标记返回 false。
func Ordinal(token string) (int, bool) {
	if token == "" {
		return 0, false
	}
	if isASCIIDigits(token) {
		n, err := strconv.Atoi(token)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	if n, ok := tierOrdinals[token]; ok {
		return n, true
	}
	if n, ok := englishOrdinals[strings.ToLower(token)]; ok {
		return n, true
	}
	return 0, false
}

func isASCIIDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsSequential 判断卷序号集合是否“连续”。
//
// 至少需要 2 个不同序号。排序后相邻差值全为 1（严格连续），
// 或全部落在 {1, 9, 10} 中（十进制边界连续：容忍 1→10、10→20 这类跳号）。
// 后者是启发式规则，会把 {1,2,12} 这样的集合也判为连续。
func IsSequential(ordinals []int) bool {
	uniq := distinctSorted(ordinals)
	if len(uniq) < 2 {
		return false
	}

	strict, decimal := true, true
	for i := 1; i < len(uniq); i++ {
		gap := uniq[i] - uniq[i-1]
		if gap != 1 {
			strict = false
		}
		if gap != 1 && gap != 9 && gap != 10 {
			decimal = false
		}
	}
	return strict || decimal
}

func distinctSorted(xs []int) []int {
	out := append([]int(nil), xs...)
	sort.Ints(out)
	w := 0
	for i, x := range out {
		if i > 0 && x == out[w-1] {
			continue
		}
		out[w] = x
		w++
	}
	return out[:w]
}

// Analyze 判断 stems 是否是同一系列的不同卷。
// 成功时返回规范化系列名与每个 stem 对应的卷序号（与输入同序）。
//
// 任一条件不满足即失败：每个文件都必须能提取卷信息且序号可识别；
// 规范化系列名全部相同；序号两两不同；序号集合满足 IsSequential。
func Analyze(stems []string) (string, []int, bool) {
	if len(stems) < 2 {
		return "", nil, false
	}

	var base string
	ordinals := make([]int, 0, len(stems))
	seen := make(map[int]struct{}, len(stems))
	for i, stem := range stems {
		info, ok := Extract(stem)
		if !ok {
			return "", nil, false
		}
		name := NormalizeSeriesName(info.SeriesName)
		if i == 0 {
			base = name
		} else if name != base {
			return "", nil, false
		}

		n, ok := Ordinal(info.VolumeToken)
		if !ok {
			return "", nil, false
		}
		if _, dup := seen[n]; dup {
			return "", nil, false
		}
		seen[n] = struct{}{}
		ordinals = append(ordinals, n)
	}

	if !IsSequential(ordinals) {
		return "", nil, false
	}
	return base, ordinals, true
}

// IsSameSeries 是 Analyze 的布尔版本。
func IsSameSeries(stems []string) bool {
	_, _, ok := Analyze(stems)
	return ok
}
