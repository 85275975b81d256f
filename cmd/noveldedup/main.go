package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// 退出码：0 运行完成（无论是否发现重复），1 致命错误，2 用法错误。
const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute 运行命令树并把错误映射为退出码。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "参数错误：%v\n\n", ue.Err)
		fmt.Fprint(stderr, ue.Usage)
		return exitUsage
	}
	var fe *fatalError
	if errors.As(err, &fe) && fe.Reported {
		return exitFatal
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, err)
	}
	return exitFatal
}

// usageError 表示参数本身有误（未知参数、多余的 path 等）。
type usageError struct {
	Err   error
	Usage string
}

func (e *usageError) Error() string { return e.Err.Error() }
func (e *usageError) Unwrap() error { return e.Err }

// fatalError 表示运行失败；Reported=true 时错误信息已经输出过。
type fatalError struct {
	Err      error
	Reported bool
}

func (e *fatalError) Error() string { return e.Err.Error() }
func (e *fatalError) Unwrap() error { return e.Err }
