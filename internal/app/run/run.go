package run

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/John-Robertt/NovelDedup/internal/app"
	"github.com/John-Robertt/NovelDedup/internal/app/planner"
	"github.com/John-Robertt/NovelDedup/internal/config"
	"github.com/John-Robertt/NovelDedup/internal/domain"
	"github.com/John-Robertt/NovelDedup/internal/fingerprint"
	"github.com/John-Robertt/NovelDedup/internal/infra/fsx"
	"github.com/John-Robertt/NovelDedup/internal/logging"
	"github.com/John-Robertt/NovelDedup/internal/scan"
)

// Runner 持有一次运行的外部依赖。零值可用：真实文件系统、丢弃日志、无观察者。
type Runner struct {
	Fs       afero.Fs
	Logger   *slog.Logger
	Observer Observer
}

// Execute 执行一次扫描（只读），并返回对外稳定的 RunReport。
// 单个文件的失败只降级为 issue，不影响其他文件。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return Runner{}.Execute(ctx, eff)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	return Runner{Observer: obs}.Execute(ctx, eff)
}

// Execute 依次执行 scan -> fingerprint -> group -> plan。
//
// ctx 被取消时：已计算的指纹保留在 Files 中（未处理的文件状态为 pending），
// Canceled=true，且不做分组与规划。本程序从不移动或删除文件。
func (r Runner) Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	started := time.Now().UTC()
	fsys := r.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	log := logging.OrNop(r.Logger)
	obs := r.Observer

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Path:      eff.Path,
		Threshold: eff.Threshold,
		StartedAt: started,
	}
	log = log.With("run_id", rr.RunID)
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	// scan
	scanStarted := time.Now()
	sr, err := scan.Books(fsys, eff.Path, scan.Options{
		ExcludeDirs:   eff.ExcludeDirs,
		Extensions:    eff.Extensions,
		DuplicatesDir: eff.DuplicatesDir,
		MaxHashSize:   eff.MaxHashSize,
	})
	if err != nil {
		log.Error("扫描失败", "component", "scan", "path", eff.Path, "error", err)
		rr.Issues = append(rr.Issues, domain.Issue{Code: domain.ErrCodeIOFailed, Msg: fmt.Sprintf("扫描失败：%v", err)})
		return finish()
	}
	files := sr.Files
	for _, f := range sr.Oversize {
		log.Info("文件超过哈希上限，只按文件名比较", "component", "scan", "path", f.RelPath, "size", f.Size, "max", eff.MaxHashSize)
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"files":    len(files),
			"oversize": len(sr.Oversize),
		}, time.Since(scanStarted))
	}

	// fingerprint
	hashStarted := time.Now()
	hasher := fingerprint.New(fsys, eff.MaxHashSize)
	hasher.Logger = log.With("component", "fingerprint")

	paths := make([]string, len(files))
	absToRel := make(map[string]string, len(files))
	for i, f := range files {
		paths[i] = f.AbsPath
		absToRel[f.AbsPath] = f.RelPath
	}
	results := hasher.HashAll(ctx, paths, eff.Concurrency, func(done, total int, res fingerprint.Result) {
		if obs != nil {
			obs.OnFileHashed(done, total, absToRel[res.Path], res)
		}
	})

	reports := make([]domain.FileReport, len(files))
	var hashed, skipped, failed int
	for i, f := range files {
		res := results[i]
		fr := domain.FileReport{Src: f.RelPath, Size: f.Size, Status: domain.FileStatusPending}
		if !res.Done {
			reports[i] = fr
			continue
		}
		switch {
		case res.Err == nil:
			hashed++
			fr.Status = domain.FileStatusHashed
			fr.Size = res.Fingerprint.Size
			fr.Hash = res.Fingerprint.HashHex()
		case fingerprint.Skipped(res.Err):
			skipped++
			fr.Status = domain.FileStatusHashSkipped
			fr.Size = res.Fingerprint.Size
			rr.Issues = append(rr.Issues, domain.Issue{
				Src:  f.RelPath,
				Code: domain.ErrCodeHashSkipped,
				Msg:  fmt.Sprintf("文件大小 %d 超过哈希上限 %d，只按文件名比较", res.Fingerprint.Size, eff.MaxHashSize),
			})
		default:
			failed++
			fr.Status = domain.FileStatusHashFailed
			log.Warn("指纹计算失败", "component", "fingerprint", "path", f.RelPath, "error", res.Err)
			rr.Issues = append(rr.Issues, domain.Issue{
				Src:  f.RelPath,
				Code: domain.ErrCodeHashFailed,
				Msg:  fmt.Sprintf("读取失败，只按文件名比较：%v", res.Err),
			})
		}
		reports[i] = fr
	}
	if obs != nil {
		obs.OnPhaseDone("fingerprint", map[string]any{
			"hashed":  hashed,
			"skipped": skipped,
			"failed":  failed,
			"workers": eff.Concurrency,
		}, time.Since(hashStarted))
	}

	if ctx.Err() != nil {
		log.Warn("运行被中断", "component", "run", "error", ctx.Err())
		rr.Canceled = true
		rr.Files = reports
		rr.Issues = append(rr.Issues, domain.Issue{
			Code: domain.ErrCodeCanceled,
			Msg:  "运行被中断：已保留已计算的指纹，未进行分组",
		})
		return finish()
	}

	// group
	groupStarted := time.Now()
	engine := app.NewEngine(eff.Threshold)
	engine.Workers = eff.Concurrency
	engine.Logger = log

	records := make([]domain.FileRecord, len(files))
	for i, f := range files {
		fp := results[i].Fingerprint
		if results[i].Err != nil && !fingerprint.Skipped(results[i].Err) {
			// 读取失败：没有哈希，size 以扫描结果为准。
			fp = domain.Fingerprint{Size: f.Size}
		}
		records[i] = engine.Record(f, fp)
		reports[i].Normalized = records[i].NormalizedName
		if records[i].NormalizedName == "" {
			reports[i].Status = domain.FileStatusUnprocessable
			rr.Issues = append(rr.Issues, domain.Issue{
				Src:  f.RelPath,
				Code: domain.ErrCodeUnprocessableName,
				Msg:  "规范化后的文件名为空，不参与分组",
			})
		}
	}
	rr.Files = reports

	res := engine.Group(records)
	if obs != nil {
		obs.OnPhaseDone("group", map[string]any{
			"series":     len(res.Series),
			"duplicates": len(res.Duplicates),
			"excluded":   len(res.Excluded),
		}, time.Since(groupStarted))
	}

	for _, sg := range res.Series {
		rep := domain.SeriesReport{Name: sg.Name, Files: make([]domain.SeriesFile, 0, len(sg.Members))}
		for _, m := range sg.Members {
			rep.Files = append(rep.Files, domain.SeriesFile{Src: m.Record.File.RelPath, Ordinal: m.Ordinal})
		}
		rr.Series = append(rr.Series, rep)
	}

	// plan
	planStarted := time.Now()
	plans := planGroups(eff, fsys, res.Duplicates, &rr, log)
	moves := 0
	for i, g := range res.Duplicates {
		gr := domain.GroupReport{Key: g.Key, Members: make([]domain.MemberReport, 0, len(g.Members))}
		dst := map[string]string{}
		keep := 0
		if plans != nil {
			keep = plans[i].Keep
			for _, mv := range plans[i].Moves {
				dst[mv.SrcAbs] = relOrAbs(eff.Path, mv.DstAbs)
			}
			moves += len(plans[i].Moves)
		}
		gr.Keep = keep
		for j, m := range g.Members {
			gr.Members = append(gr.Members, domain.MemberReport{
				Src:  m.File.RelPath,
				Dst:  dst[m.File.AbsPath],
				Size: m.Size(),
				Hash: m.Fingerprint.HashHex(),
				Keep: j == keep,
			})
		}
		rr.Groups = append(rr.Groups, gr)
	}
	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{
			"groups": len(res.Duplicates),
			"moves":  moves,
			"keep":   eff.Keep,
		}, time.Since(planStarted))
	}

	return finish()
}

// planGroups 生成建议；失败时返回 nil（组仍然输出，只是没有目标路径）。
func planGroups(eff config.EffectiveConfig, fsys afero.Fs, groups []domain.DuplicateGroup, rr *domain.RunReport, log *slog.Logger) []domain.GroupPlan {
	if len(groups) == 0 {
		return nil
	}
	st, err := planner.ReadDupState(fsys, eff.Path, eff.DuplicatesDir)
	if err != nil {
		code := domain.ErrCodeIOFailed
		if fsx.IsPathTypeConflict(err) {
			code = domain.ErrCodeTargetConflict
		}
		log.Warn("读取重复目录失败，不生成移动建议", "component", "plan", "error", err)
		rr.Issues = append(rr.Issues, domain.Issue{Code: code, Msg: fmt.Sprintf("读取重复目录失败：%v", err)})
		return nil
	}
	plans, err := planner.Plan(groups, eff.Keep, st)
	if err != nil {
		rr.Issues = append(rr.Issues, domain.Issue{Code: domain.ErrCodeIOFailed, Msg: fmt.Sprintf("规划失败：%v", err)})
		return nil
	}
	return plans
}

func relOrAbs(root, abs string) string {
	if rel, err := filepath.Rel(root, abs); err == nil {
		return rel
	}
	return abs
}
