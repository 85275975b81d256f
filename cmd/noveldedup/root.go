package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version 在发布构建时通过 -ldflags "-X main.version=..." 注入。
var version = "dev"

// globalFlags 是所有子命令共享的参数。
type globalFlags struct {
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	gf := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "noveldedup",
		Short:         "查找文本/电子书目录中的重复文件（只给出建议，不移动文件）",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{Err: fmt.Errorf("未知命令：%q", args[0]), Usage: cmd.UsageString()}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{Err: err, Usage: cmd.UsageString()}
	})

	rootCmd.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "日志级别：debug|info|warn|error（默认 info）")
	rootCmd.PersistentFlags().StringVar(&gf.logFormat, "log-format", "", "日志格式：console|json（默认 console）")

	rootCmd.AddCommand(newScanCommand(gf))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Args:  maxArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "noveldedup %s\n", version)
			return nil
		},
	}
}

// maxArgs 与 cobra.MaximumNArgs 相同，但返回 usageError（退出码 2）。
func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return &usageError{
				Err:   fmt.Errorf("最多接受 %d 个参数，实际是 %d 个：%q", n, len(args), args),
				Usage: cmd.UsageString(),
			}
		}
		return nil
	}
}
