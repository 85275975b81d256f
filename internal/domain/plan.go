package domain

// MovePlan 规划一次文件移动（只描述 src/dst；本程序不执行移动）。
type MovePlan struct {
	SrcAbs string
	DstAbs string
}

// GroupPlan 是对某个重复组的建议处理：保留 Keep 下标的文件，其余移入重复目录。
type GroupPlan struct {
	Key   string
	Keep  int
	Moves []MovePlan
}
