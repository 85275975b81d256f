package domain

// VolumeInfo 是从文件名中提取的“系列名 + 卷标记”。派生数据，不存储。
type VolumeInfo struct {
	SeriesName  string
	VolumeToken string
}

// SeriesMember 是系列组中的一个文件及其卷序号。
type SeriesMember struct {
	Record  FileRecord
	Ordinal int
}

// SeriesGroup 是一组被判定为“同一系列的不同卷”的文件。
// Members 按卷序号升序排列；序号两两不同且满足连续性判定。
type SeriesGroup struct {
	Name    string // 规范化后的系列名
	Members []SeriesMember
}

// DuplicateGroup 是一组疑似重复的文件（至少 2 个）。
//
// Members[0] 是组长（leader）；其余成员按聚类时的加入顺序排列。
// 注意：大小区间只以组长为锚点，成员之间不保证互相落在对方的区间内（非传递）。
type DuplicateGroup struct {
	Key     string // 组长的规范化名（冲突时带 #N 后缀）
	Members []FileRecord
}
