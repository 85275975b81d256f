// Package fingerprint 计算文件的 (size, xxHash64) 指纹。
//
// 指纹只在一次运行内缓存（按绝对路径）；跨运行不持久化，因为文件可能已被修改。
package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/John-Robertt/NovelDedup/internal/domain"
	"github.com/John-Robertt/NovelDedup/internal/infra/cache"
	"github.com/John-Robertt/NovelDedup/internal/logging"
)

const (
	// DefaultMaxSize 是默认的哈希上限：更大的文件只记录 size，不计算哈希。
	DefaultMaxSize int64 = 50 << 20

	chunkSize       = 2 << 20
	singleReadLimit = 4 << 20

	defaultRetries = 2
	defaultBackoff = 50 * time.Millisecond
)

// ErrTooLarge 表示文件超过哈希上限，哈希被跳过（size 仍然有效）。
var ErrTooLarge = errors.New("文件超过哈希上限")

// Error 记录单个文件的指纹失败。
type Error struct {
	Path string
	Op   string // stat|open|read
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fingerprint %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Skipped 判断 err 是否只是“超过上限被跳过”（不是失败）。
func Skipped(err error) bool { return errors.Is(err, ErrTooLarge) }

type entry struct {
	fp  domain.Fingerprint
	err error
}

// Hasher 计算并缓存文件指纹。零值不可用，请使用 New。
type Hasher struct {
	Fs      afero.Fs
	MaxSize int64 // <=0 表示不限制
	Retries int   // 瞬时读取错误的重试次数
	Backoff time.Duration
	Logger  *slog.Logger

	memo *cache.Memo[string, entry]
}

// New 创建一个只服务于单次运行的 Hasher。fs 为 nil 时使用真实文件系统。
func New(fs afero.Fs, maxSize int64) *Hasher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Hasher{
		Fs:      fs,
		MaxSize: maxSize,
		Retries: defaultRetries,
		Backoff: defaultBackoff,
		memo:    cache.New[string, entry](),
	}
}

// Fingerprint 返回 path 的指纹。
//
// 超过上限：返回 size 有效、HasHash=false 的指纹，以及包装了 ErrTooLarge 的错误。
// 读取失败：返回 *Error；若 stat 成功，指纹中的 size 仍然有效。
// 成功与失败都会被缓存；被取消的计算不缓存。
func (h *Hasher) Fingerprint(ctx context.Context, path string) (domain.Fingerprint, error) {
	if e, ok := h.memo.Get(path); ok {
		return e.fp, e.err
	}
	fp, err := h.compute(ctx, path)
	if err != nil && isCanceled(err) {
		return fp, err
	}
	e := h.memo.Put(path, entry{fp: fp, err: err})
	return e.fp, e.err
}

// Cached 返回缓存条目数。
func (h *Hasher) Cached() int { return h.memo.Len() }

func (h *Hasher) compute(ctx context.Context, path string) (domain.Fingerprint, error) {
	log := logging.OrNop(h.Logger)

	fi, err := h.Fs.Stat(path)
	if err != nil {
		return domain.Fingerprint{}, &Error{Path: path, Op: "stat", Err: err}
	}
	fp := domain.Fingerprint{Size: fi.Size()}
	if fi.IsDir() {
		return fp, &Error{Path: path, Op: "stat", Err: errors.New("是目录")}
	}
	if h.MaxSize > 0 && fi.Size() > h.MaxSize {
		log.Debug("超过哈希上限，跳过", "path", path, "size", fi.Size(), "max", h.MaxSize)
		return fp, &Error{Path: path, Op: "stat", Err: ErrTooLarge}
	}

	var sum uint64
	for attempt := 0; ; attempt++ {
		sum, err = hashFile(ctx, h.Fs, path, fi.Size())
		if err == nil || !transient(err) || attempt >= h.Retries {
			break
		}
		log.Debug("读取失败，重试", "path", path, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return fp, &Error{Path: path, Op: "read", Err: ctx.Err()}
		case <-time.After(h.Backoff * time.Duration(attempt+1)):
		}
	}
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			return fp, fe
		}
		return fp, &Error{Path: path, Op: "read", Err: err}
	}

	fp.Hash = sum
	fp.HasHash = true
	return fp, nil
}

// hashFile 对小文件一次性读取，对大文件按块流式计算；块之间检查 ctx。
func hashFile(ctx context.Context, fs afero.Fs, path string, size int64) (uint64, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, &Error{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	if size < singleReadLimit {
		b, err := io.ReadAll(f)
		if err != nil {
			return 0, err
		}
		return xxhash.Sum64(b), nil
	}

	d := xxhash.New()
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := f.Read(buf)
		if n > 0 {
			_, _ = d.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	return d.Sum64(), nil
}

// transient 判断错误是否值得重试：不存在、无权限、超过上限、被取消都不重试。
func transient(err error) bool {
	switch {
	case errors.Is(err, os.ErrNotExist),
		errors.Is(err, os.ErrPermission),
		errors.Is(err, ErrTooLarge),
		isCanceled(err):
		return false
	}
	return true
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
