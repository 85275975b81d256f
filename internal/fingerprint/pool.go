package fingerprint

import (
	"context"
	"sync"

	"github.com/John-Robertt/NovelDedup/internal/domain"
)

// Result 是批量计算中单个文件的结果。
type Result struct {
	Path        string
	Fingerprint domain.Fingerprint
	Err         error
	// Done=false 表示运行被中断，该文件没有被处理（或处理到一半被取消）。
	Done bool
}

// ProgressFunc 在每个文件完成后被调用（只在调用 HashAll 的 goroutine 中调用，无需加锁）。
type ProgressFunc func(done, total int, r Result)

// HashAll 用 workers 个 worker 并发计算 paths 的指纹，结果与 paths 同序。
//
// ctx 被取消后不再派发新任务；已完成的结果保留（Done=true），其余 Done=false。
func (h *Hasher) HashAll(ctx context.Context, paths []string, workers int, progress ProgressFunc) []Result {
	out := make([]Result, len(paths))
	for i, p := range paths {
		out[i].Path = p
	}
	if len(paths) == 0 {
		return out
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	type indexed struct {
		idx int
		res Result
	}

	jobs := make(chan int)
	results := make(chan indexed, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				fp, err := h.Fingerprint(ctx, paths[idx])
				results <- indexed{idx: idx, res: Result{
					Path:        paths[idx],
					Fingerprint: fp,
					Err:         err,
					Done:        err == nil || !isCanceled(err),
				}}
			}
		}()
	}

	go func() {
		defer func() {
			close(jobs)
			wg.Wait()
			close(results)
		}()
		for i := range paths {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	done := 0
	for r := range results {
		out[r.idx] = r.res
		if !r.res.Done {
			continue
		}
		done++
		if progress != nil {
			progress(done, len(paths), r.res)
		}
	}
	return out
}
