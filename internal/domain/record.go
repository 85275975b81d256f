package domain

import "fmt"

// Fingerprint 是单个文件的 (size, content hash) 对。
//
// HasHash=false 表示“哈希不可用”（超过上限被跳过或读取失败），
// 绝不能当作“与另一个无哈希的文件相等”。
type Fingerprint struct {
	Size    int64
	Hash    uint64
	HasHash bool
}

// HashHex 返回 16 位十六进制的哈希；无哈希时返回空串。
func (f Fingerprint) HashHex() string {
	if !f.HasHash {
		return ""
	}
	return fmt.Sprintf("%016x", f.Hash)
}

// FileRecord 是分组引擎的输入单元：每个发现的文件创建一次，之后只读。
type FileRecord struct {
	File           BookFile
	NormalizedName string
	Fingerprint    Fingerprint
}

// Size 返回记录的字节数（以指纹阶段 stat 的结果为准）。
func (r FileRecord) Size() int64 { return r.Fingerprint.Size }

// SameContent 只在两边都有哈希且逐位相等时返回 true。
func (r FileRecord) SameContent(o FileRecord) bool {
	return r.Fingerprint.HasHash && o.Fingerprint.HasHash && r.Fingerprint.Hash == o.Fingerprint.Hash
}
