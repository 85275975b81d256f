package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/NovelDedup/internal/app/planner"
	"github.com/John-Robertt/NovelDedup/internal/domain"
	"github.com/John-Robertt/NovelDedup/internal/fingerprint"
	"github.com/John-Robertt/NovelDedup/internal/logging"
	"github.com/John-Robertt/NovelDedup/internal/scan"
)

// FileName 是配置文件名（位于扫描根目录或 cwd）。
const FileName = "noveldedup.toml"

const (
	// ErrCodeNotFound 表示未给出 path 且 cwd 下没有配置文件。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingPath 表示未给出 path 且配置文件缺少 path 字段。
	ErrCodeMissingPath = domain.ErrCodeConfigMissingPath
)

const (
	// DefaultConcurrency 是指纹计算并发的内置默认值。
	DefaultConcurrency = 4
	MaxConcurrency     = 32

	DefaultSensitivity = "medium"
)

// sensitivities 把灵敏度档位映射为相似度阈值。
var sensitivities = map[string]float64{
	"low":    0.75,
	"medium": 0.80,
	"high":   0.85,
}

// SensitivityThreshold 返回档位对应的阈值（大小写不敏感）。
func SensitivityThreshold(name string) (float64, bool) {
	v, ok := sensitivities[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// CLIArgs 保留“是否显式指定”的信息，这样 --threshold 等参数才能覆盖配置文件中的同名字段。
type CLIArgs struct {
	Path string

	Threshold    float64
	ThresholdSet bool

	Sensitivity    string
	SensitivitySet bool

	Keep    string
	KeepSet bool

	Concurrency    int
	ConcurrencySet bool

	LogLevel  string
	LogFormat string
}

// FileConfig 对应 noveldedup.toml 的解析结构。未知字段被忽略。
type FileConfig struct {
	Path          string    `toml:"path"`
	Threshold     *float64  `toml:"threshold"`
	Sensitivity   string    `toml:"sensitivity"`
	MaxHashSize   int64     `toml:"max_hash_size"`
	Concurrency   int       `toml:"concurrency"`
	ExcludeDirs   []string  `toml:"exclude_dirs"`
	Extensions    []string  `toml:"extensions"`
	DuplicatesDir string    `toml:"duplicates_dir"`
	Keep          string    `toml:"keep"`
	Log           LogConfig `toml:"log"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string

	Threshold     float64
	MaxHashSize   int64
	Concurrency   int
	ExcludeDirs   []string
	Extensions    []string
	DuplicatesDir string
	Keep          string

	LogLevel  string
	LogFormat string

	// ConfigFile 是实际读取到的配置文件；没有读取任何文件时为空。
	ConfigFile string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/noveldedup.toml（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/noveldedup.toml（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：CLI > 配置文件 > 内置默认。
// 阈值：--threshold > --sensitivity > threshold > sensitivity > medium(0.80)。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Path) != "" {
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath := filepath.Join(absPath, FileName)

		fc, exists, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			cfgPath = ""
		}
		return merge(absPath, cli, fc, cfgPath)
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	return merge(absCleanFrom(cwdAbs, fc.Path), cli, fc, cfgPath)
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		where := cfgPath
		if where == "" {
			where = "cli"
		}
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: where, Err: err}
	}

	threshold, err := resolveThreshold(cli, fc)
	if err != nil {
		return invalid(err)
	}

	keep := planner.KeepFirst
	if cli.KeepSet {
		keep = cli.Keep
	} else if strings.TrimSpace(fc.Keep) != "" {
		keep = strings.TrimSpace(fc.Keep)
	}
	if !planner.ValidKeep(keep) {
		return invalid(fmt.Errorf("keep 只能是 first/largest/newest，实际是 %q", keep))
	}

	concurrency := fc.Concurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 范围 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	maxHash := fc.MaxHashSize
	if maxHash < 0 {
		return invalid(fmt.Errorf("max_hash_size 不能为负数：%d", maxHash))
	}
	if maxHash == 0 {
		maxHash = fingerprint.DefaultMaxSize
	}

	exts := normalizeExts(fc.Extensions)
	if len(exts) == 0 {
		exts = append([]string(nil), scan.DefaultExtensions...)
	}

	dupDir := strings.TrimSpace(fc.DuplicatesDir)
	if dupDir == "" {
		dupDir = planner.DefaultDuplicatesDir
	}

	level := pick(cli.LogLevel, fc.Log.Level)
	if !logging.ValidLevel(level) {
		return invalid(fmt.Errorf("log.level 无效：%q", level))
	}
	format := pick(cli.LogFormat, fc.Log.Format)
	if !logging.ValidFormat(format) {
		return invalid(fmt.Errorf("log.format 只能是 console 或 json，实际是 %q", format))
	}

	return EffectiveConfig{
		Path:          absPath,
		Threshold:     threshold,
		MaxHashSize:   maxHash,
		Concurrency:   concurrency,
		ExcludeDirs:   append([]string(nil), fc.ExcludeDirs...),
		Extensions:    exts,
		DuplicatesDir: dupDir,
		Keep:          keep,
		LogLevel:      level,
		LogFormat:     format,
		ConfigFile:    cfgPath,
	}, nil
}

func resolveThreshold(cli CLIArgs, fc FileConfig) (float64, error) {
	var t float64
	switch {
	case cli.ThresholdSet:
		t = cli.Threshold
	case cli.SensitivitySet:
		v, ok := SensitivityThreshold(cli.Sensitivity)
		if !ok {
			return 0, fmt.Errorf("sensitivity 只能是 low/medium/high，实际是 %q", cli.Sensitivity)
		}
		t = v
	case fc.Threshold != nil:
		t = *fc.Threshold
	case strings.TrimSpace(fc.Sensitivity) != "":
		v, ok := SensitivityThreshold(fc.Sensitivity)
		if !ok {
			return 0, fmt.Errorf("sensitivity 只能是 low/medium/high，实际是 %q", fc.Sensitivity)
		}
		t = v
	default:
		t = sensitivities[DefaultSensitivity]
	}
	if math.IsNaN(t) || t < 0 || t > 1 {
		return 0, fmt.Errorf("threshold 必须在 [0, 1] 内，实际是 %v", t)
	}
	return t, nil
}

func pick(cli, file string) string {
	if s := strings.TrimSpace(cli); s != "" {
		return s
	}
	return strings.TrimSpace(file)
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			return FileConfig{}, true, fmt.Errorf("第 %d 行第 %d 列：%w", row, col, err)
		}
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
