package domain

// BookFile 描述一次扫描得到的电子书/文本文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - Stem 已做 NFC 规范化（macOS 上的 NFD 韩文文件名与 Windows 上的 NFC 文件名必须比较相等）
type BookFile struct {
	AbsPath string
	RelPath string
	Stem    string // filename without ext
	Ext     string // ".txt"
	Size    int64
	ModUnix int64
}
