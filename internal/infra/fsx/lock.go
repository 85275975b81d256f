package fsx

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockRetryDelay 是抢锁失败后的重试间隔。
const LockRetryDelay = 50 * time.Millisecond

// WriteFileLocked 在持有 <dir>/.<name>.lock 咨询锁的前提下原子写入 name。
// 两个并发运行写同一份报告时，后写者等待前者完成，最终文件总是某一次完整的输出。
func WriteFileLocked(ctx context.Context, dir, name string, data []byte) error {
	if err := EnsureDir(dir); err != nil {
		return err
	}

	lockPath := filepath.Join(dir, "."+name+".lock")
	lk := flock.New(lockPath)
	ok, err := lk.TryLockContext(ctx, LockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !ok {
		return fmt.Errorf("acquire lock %s: not acquired", lockPath)
	}
	defer func() { _ = lk.Unlock() }()

	return WriteFileAtomic(dir, name, data)
}
