package run

import (
	"time"

	"github.com/John-Robertt/NovelDedup/internal/config"
	"github.com/John-Robertt/NovelDedup/internal/fingerprint"
)

// Observer 用于把“运行进度/阶段”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - OnFileHashed 只在一个 goroutine 中被调用；其余事件同样来自调用 Execute 的 goroutine。
type Observer interface {
	// OnStart 在 Execute 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnFileHashed 在单个文件的指纹计算完成时调用（用于进度条）。
	OnFileHashed(done, total int, src string, res fingerprint.Result)
}
