package cache

import "sync"

// Memo 是一次运行内的只增缓存（read-through），键为纯函数的输入。
//
// 约束：
// - 生命周期由持有者显式管理（每次 run 新建一个），不存在进程级全局状态
// - 并发安全：同一个 key 被多个 goroutine 同时计算是允许的（良性竞争，结果相同），
//   最终只保留第一个写入的值
type Memo[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func New[K comparable, V any]() *Memo[K, V] {
	return &Memo[K, V]{m: make(map[K]V, 256)}
}

// Get 返回已缓存的值。
func (c *Memo[K, V]) Get(k K) (V, bool) {
	c.mu.RLock()
	v, ok := c.m[k]
	c.mu.RUnlock()
	return v, ok
}

// Put 写入 k；若 k 已存在则保留旧值，并返回最终生效的值。
func (c *Memo[K, V]) Put(k K, v V) V {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.m[k]; ok {
		return old
	}
	c.m[k] = v
	return v
}

// GetOrCompute 命中则直接返回；否则在锁外计算 fn 再写入。
// fn 必须是纯函数：并发下可能被同一个 key 调用多次。
func (c *Memo[K, V]) GetOrCompute(k K, fn func() V) V {
	if v, ok := c.Get(k); ok {
		return v
	}
	return c.Put(k, fn())
}

// Len 返回缓存条目数（主要用于测试与统计）。
func (c *Memo[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
