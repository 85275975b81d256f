package volume

import (
	"reflect"
	"testing"
)

func TestExtract_PatternTable(t *testing.T) {
	tests := []struct {
		stem    string
		pattern string
		series  string
		token   string
	}{
		{"MyBook 1권", "number_unit", "MyBook", "1"},
		{"MyBook_02권", "number_unit", "MyBook", "02"},
		// number_unit 优先：区间写法会被解析为“MyBook 1”的第 3 卷。
		{"MyBook 1-3권", "number_unit", "MyBook 1", "3"},
		{"삼국지 권3", "unit_number", "삼국지", "3"},
		{"삼국지 상", "tier", "삼국지", "상"},
		{"삼국지 하편", "tier", "삼국지", "하"},
		{"The Hobbit Second", "english_ordinal", "The Hobbit", "Second"},
		{"Dune Vol.3", "vol", "Dune", "3"},
		{"Dune Part 2", "part", "Dune", "2"},
		{"Saga #4", "hash", "Saga", "4"},
		{"나 혼자만 레벨업 12화", "episode", "나 혼자만 레벨업", "12"},
		{"소설책 3장", "chapter", "소설책", "3"},
		{"소설책 2편", "section", "소설책", "2"},
		{"이야기 시즌2", "season_ko", "이야기", "2"},
		{"Story Season 3", "season", "Story", "3"},
		{"Story 12", "trailing_number", "Story", "12"},
		{"Story 12.txt", "trailing_number", "Story", "12"},
		// 更具体的“화”规则必须胜过兜底的末尾数字规则。
		{"작품명 3화 12", "episode", "작품명", "3"},
		// 系列名过短：放弃该规则，继续尝试后续规则。
		{"A 1권 Book 2", "trailing_number", "A 1권 Book", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.stem, func(t *testing.T) {
			info, name, ok := extract(tt.stem)
			if !ok {
				t.Fatalf("期望匹配，实际未匹配")
			}
			if name != tt.pattern {
				t.Fatalf("期望规则 %q，实际 %q", tt.pattern, name)
			}
			if info.SeriesName != tt.series || info.VolumeToken != tt.token {
				t.Fatalf("期望 (%q, %q)，实际 (%q, %q)", tt.series, tt.token, info.SeriesName, info.VolumeToken)
			}
		})
	}
}

func TestExtract_NoMatch(t *testing.T) {
	for _, stem := range []string{"", "Report(final)", "A 1", "제3권 나의 책", "hello world"} {
		if info, ok := Extract(stem); ok {
			t.Fatalf("Extract(%q) 不应匹配，实际 %+v", stem, info)
		}
	}
}

func TestPatterns_Priority(t *testing.T) {
	// 顺序是行为的一部分：兜底规则必须在最后。
	if patterns[0].name != "number_unit" {
		t.Fatalf("第一条规则应为 number_unit，实际 %q", patterns[0].name)
	}
	if last := patterns[len(patterns)-1].name; last != "trailing_number" {
		t.Fatalf("最后一条规则应为 trailing_number，实际 %q", last)
	}
	seen := map[string]bool{}
	for _, p := range patterns {
		if seen[p.name] {
			t.Fatalf("规则名重复：%q", p.name)
		}
		seen[p.name] = true
	}
}

func TestNormalizeSeriesName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My-Book", "mybook"},
		{"MyBook 1", "mybook"},
		{"[작가] 해리포터 시리즈", "해리포터"},
		{"Harry Potter Series", "harrypotter"},
		{"Dune Volume", "dune"},
		{"Dune vol", "dune"},
		{"삼국지 권", "삼국지"},
	}
	for _, tt := range tests {
		if got := NormalizeSeriesName(tt.in); got != tt.want {
			t.Fatalf("NormalizeSeriesName(%q) = %q，期望 %q", tt.in, got, tt.want)
		}
	}
}

func TestOrdinal(t *testing.T) {
	tests := []struct {
		token string
		want  int
		ok    bool
	}{
		{"1", 1, true},
		{"007", 7, true},
		{"상", 1, true},
		{"중", 2, true},
		{"하", 3, true},
		{"First", 1, true},
		{"fifth", 5, true},
		{"sixth", 0, false},
		{"", 0, false},
		{"1a", 0, false},
		{"99999999999999999999999", 0, false},
	}
	for _, tt := range tests {
		got, ok := Ordinal(tt.token)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("Ordinal(%q) = (%d, %v)，期望 (%d, %v)", tt.token, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsSequential(t *testing.T) {
	tests := []struct {
		in   []int
		want bool
	}{
		{[]int{1, 2, 3}, true},
		{[]int{3, 1, 2}, true},
		{[]int{1, 10, 20}, true}, // 差值 9 与 10：十进制边界规则允许
		{[]int{1, 2, 12}, true},  // 已知的误判：差值 1 与 10
		{[]int{1, 3}, false},
		{[]int{1, 2, 4}, false},
		{[]int{5}, false},
		{[]int{1, 1}, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsSequential(tt.in); got != tt.want {
			t.Fatalf("IsSequential(%v) = %v，期望 %v", tt.in, got, tt.want)
		}
	}
}

func TestAnalyze_SameSeries(t *testing.T) {
	name, ords, ok := Analyze([]string{"MyBook 2권", "MyBook 1권", "MyBook 3권"})
	if !ok {
		t.Fatalf("期望识别为同一系列")
	}
	if name != "mybook" {
		t.Fatalf("期望系列名 mybook，实际 %q", name)
	}
	if !reflect.DeepEqual(ords, []int{2, 1, 3}) {
		t.Fatalf("序号应与输入同序：%v", ords)
	}
}

func TestIsSameSeries_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		stems []string
	}{
		{"single file", []string{"MyBook 1권"}},
		{"duplicate ordinal", []string{"MyBook 1권", "MyBook 1권 (copy)"}},
		{"different series", []string{"가나다 1권", "라마바 2권"}},
		{"missing volume info", []string{"MyBook 1권", "Other"}},
		{"not sequential", []string{"MyBook 1권", "MyBook 3권"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IsSameSeries(tt.stems) {
				t.Fatalf("期望 false：%v", tt.stems)
			}
		})
	}
}

func TestIsSameSeries_TierAndOrdinalWords(t *testing.T) {
	if !IsSameSeries([]string{"삼국지 상", "삼국지 중", "삼국지 하"}) {
		t.Fatalf("상/중/하 应识别为同一系列")
	}
	if !IsSameSeries([]string{"The Hobbit First", "The Hobbit Second"}) {
		t.Fatalf("first/second 应识别为同一系列")
	}
}
