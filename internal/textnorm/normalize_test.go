package textnorm

import (
	"testing"

	"golang.org/x/text/unicode/norm"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"volume digits kept", "MyBook 1권", "mybook1권"},
		{"brackets removed", "Report(final)", "report"},
		{"mixed brackets and spaces", "Report (final) [v2]", "report"},
		{"braces removed", "{tag}Title", "title"},
		{"incidental digits removed", "Hello_World-2024+", "helloworld"},
		{"trailing complete marker removed", "[완결] 달빛 조각사 12 완", "달빛조각사"},
		{"trailing hanja complete marker removed", "射雕英雄传 完", "射雕英雄传"},
		{"complete word keeps volume digits", "달빛 조각사 3권 완결", "달빛조각사3권완결"},
		{"tier marker keeps text", "삼국지 상권", "삼국지상권"},
		{"vol marker keeps digits", "Dune vol.2", "dunevol2"},
		{"punctuation removed", "Book!@ Title.", "booktitle"},
		{"cjk kept", "三国志 (완)", "三国志"},
		{"pure metadata", "[tag](x){y}", ""},
		{"empty", "", ""},
		{"unmatched opener kept as text", "Title [draft", "titledraft"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q，期望 %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	in := "[작가] 전지적 독자 시점 (1-551) 完"
	a := Normalize(in)
	b := Normalize(in)
	if a != b {
		t.Fatalf("重复调用结果不一致：%q vs %q", a, b)
	}
}

func TestNormalize_NFDEqualsNFC(t *testing.T) {
	nfc := "달빛 조각사"
	nfd := norm.NFD.String(nfc)
	if nfd == nfc {
		t.Fatalf("测试前提不成立：NFD 与 NFC 相同")
	}
	if Normalize(nfd) != Normalize(nfc) {
		t.Fatalf("NFD 与 NFC 规范化后应相等：%q vs %q", Normalize(nfd), Normalize(nfc))
	}
}

func TestStripBrackets_MatchingTypeOnly(t *testing.T) {
	// '(' 只在下一个 ')' 处闭合，中间的 ']' 不会提前结束片段。
	if got := StripBrackets("a(b]c)d"); got != "ad" {
		t.Fatalf("期望 ad，实际 %q", got)
	}
	// 非嵌套：外层在第一个 ']' 处闭合，剩余的 ']' 保留。
	if got := StripBrackets("x[a[b]c]y"); got != "xc]y" {
		t.Fatalf("期望 xc]y，实际 %q", got)
	}
}

func TestHasVolumeMarker(t *testing.T) {
	yes := []string{"책1권", "제3권", "2부", "상권", "VOL.3", "volume12", "1-3권", "시즌2", "Season4", "1권완결"}
	for _, s := range yes {
		if !HasVolumeMarker(s) {
			t.Fatalf("期望 %q 含卷号标记", s)
		}
	}
	no := []string{"report", "book12", "vol3", "part2", "12화"}
	for _, s := range no {
		if HasVolumeMarker(s) {
			t.Fatalf("期望 %q 不含卷号标记", s)
		}
	}
}

func TestFilenameKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"abcde", "abcde"},
		{"abcdefg", "abcde"},
		{"달빛조각사전설", "달빛조각사"},
		{"ab달빛조각", "ab달빛조"},
	}
	for _, tt := range tests {
		if got := FilenameKey(tt.in); got != tt.want {
			t.Fatalf("FilenameKey(%q) = %q，期望 %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizer_Cached(t *testing.T) {
	n := New()
	a := n.Normalize("Report (final) [v2]")
	b := n.Normalize("Report (final) [v2]")
	if a != "report" || b != a {
		t.Fatalf("缓存结果不正确：%q %q", a, b)
	}
	if n.memo.Len() != 1 {
		t.Fatalf("期望 1 个缓存条目，实际 %d", n.memo.Len())
	}
	if got := n.Key("Report (final) [v2]"); got != "repor" {
		t.Fatalf("Key 不正确：%q", got)
	}
}
