// Package app 把规范化、系列识别、相似度与指纹组合成分组引擎。
package app

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/John-Robertt/NovelDedup/internal/domain"
	"github.com/John-Robertt/NovelDedup/internal/logging"
	"github.com/John-Robertt/NovelDedup/internal/similarity"
	"github.com/John-Robertt/NovelDedup/internal/textnorm"
	"github.com/John-Robertt/NovelDedup/internal/volume"
)

// DefaultThreshold 是默认（medium）相似度阈值。
const DefaultThreshold = 0.80

const (
	bandLow  = 0.5
	bandHigh = 1.5
	mib      = 1 << 20
)

// Engine 是一次运行的分组引擎。缓存随 Engine 存活；每次运行新建一个。
type Engine struct {
	Threshold  float64
	Normalizer *textnorm.Normalizer
	Scorer     *similarity.Scorer
	Logger     *slog.Logger
	// Workers 是跨 cell 并行聚类的 worker 数；cell 内部始终串行。
	Workers int
}

func NewEngine(threshold float64) *Engine {
	return &Engine{
		Threshold:  threshold,
		Normalizer: textnorm.New(),
		Scorer:     similarity.New(),
		Workers:    1,
	}
}

// Result 是分组结果。
type Result struct {
	Series     []domain.SeriesGroup
	Duplicates []domain.DuplicateGroup
	// Excluded 是规范化名为空的文件：没有可比较的信号，不参与任何阶段。
	Excluded []domain.FileRecord
}

// Record 用 f 与指纹构建引擎输入（填充规范化名）。
func (e *Engine) Record(f domain.BookFile, fp domain.Fingerprint) domain.FileRecord {
	return domain.FileRecord{
		File:           f,
		NormalizedName: e.Normalizer.Normalize(f.Stem),
		Fingerprint:    fp,
	}
}

// Group 把 records 划分为系列组与重复组。
//
// 阶段严格有序，后一阶段不推翻前一阶段的结论：
//  1. 排除规范化名为空的文件
//  2. 按规范化系列名分桶，通过 IsSameSeries 的桶整体归为系列组
//  3. 剩余文件按 (size MiB 取整, 文件名键) 分 cell，cell 按首次出现的顺序排列
//  4. cell 内按输入顺序做组长聚类（组长锚定，非传递）；不同 cell 可并行
func (e *Engine) Group(records []domain.FileRecord) Result {
	log := logging.OrNop(e.Logger).With("component", "group")

	var res Result
	candidates := make([]domain.FileRecord, 0, len(records))
	for _, r := range records {
		if r.NormalizedName == "" {
			res.Excluded = append(res.Excluded, r)
			continue
		}
		candidates = append(candidates, r)
	}

	var explained map[string]struct{}
	res.Series, explained = e.seriesGroups(candidates)

	residual := make([]domain.FileRecord, 0, len(candidates))
	for _, r := range candidates {
		if _, ok := explained[r.File.AbsPath]; ok {
			continue
		}
		residual = append(residual, r)
	}

	res.Duplicates = e.clusterCells(e.cells(residual))

	log.Debug("分组完成",
		"files", len(records),
		"excluded", len(res.Excluded),
		"series", len(res.Series),
		"residual", len(residual),
		"duplicate_groups", len(res.Duplicates),
	)
	return res
}

func (e *Engine) seriesGroups(records []domain.FileRecord) ([]domain.SeriesGroup, map[string]struct{}) {
	type bucket struct {
		name    string
		members []domain.FileRecord
	}
	index := make(map[string]int)
	buckets := make([]bucket, 0)
	for _, r := range records {
		info, ok := volume.Extract(r.File.Stem)
		if !ok {
			continue
		}
		name := volume.NormalizeSeriesName(info.SeriesName)
		// 规范化后为空的系列名没有身份信息，不作为系列候选。
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			buckets[i].members = append(buckets[i].members, r)
			continue
		}
		index[name] = len(buckets)
		buckets = append(buckets, bucket{name: name, members: []domain.FileRecord{r}})
	}

	explained := make(map[string]struct{})
	groups := make([]domain.SeriesGroup, 0)
	for _, b := range buckets {
		if len(b.members) < 2 {
			continue
		}
		stems := make([]string, len(b.members))
		for i, m := range b.members {
			stems[i] = m.File.Stem
		}
		name, ordinals, ok := volume.Analyze(stems)
		if !ok {
			continue
		}

		g := domain.SeriesGroup{Name: name, Members: make([]domain.SeriesMember, len(b.members))}
		for i, m := range b.members {
			g.Members[i] = domain.SeriesMember{Record: m, Ordinal: ordinals[i]}
			explained[m.File.AbsPath] = struct{}{}
		}
		sortMembersByOrdinal(g.Members)
		groups = append(groups, g)
	}
	return groups, explained
}

func sortMembersByOrdinal(ms []domain.SeriesMember) {
	// 插入排序：系列通常只有几十卷，且保持稳定。
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0 && ms[j].Ordinal < ms[j-1].Ordinal; j-- {
			ms[j], ms[j-1] = ms[j-1], ms[j]
		}
	}
}

type cellKey struct {
	sizeMiB int64
	key     string
}

type cell struct {
	key     cellKey
	records []domain.FileRecord
}

// cells 按首次出现的顺序返回 (size bucket, 文件名键) 分组。
func (e *Engine) cells(records []domain.FileRecord) []cell {
	index := make(map[cellKey]int)
	out := make([]cell, 0)
	for _, r := range records {
		k := cellKey{sizeMiB: r.Size() / mib, key: textnorm.FilenameKey(r.NormalizedName)}
		if i, ok := index[k]; ok {
			out[i].records = append(out[i].records, r)
			continue
		}
		index[k] = len(out)
		out = append(out, cell{key: k, records: []domain.FileRecord{r}})
	}
	return out
}

func (e *Engine) clusterCells(cells []cell) []domain.DuplicateGroup {
	perCell := make([][]domain.DuplicateGroup, len(cells))

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(cells) {
		workers = len(cells)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				perCell[idx] = e.cluster(cells[idx].records)
			}
		}()
	}
	for i := range cells {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// 按 cell 顺序拼接；同名组长的 key 追加 #N 以保持唯一。
	out := make([]domain.DuplicateGroup, 0)
	seen := make(map[string]int)
	for _, gs := range perCell {
		for _, g := range gs {
			seen[g.Key]++
			if n := seen[g.Key]; n > 1 {
				g.Key = g.Key + "#" + strconv.Itoa(n)
			}
			out = append(out, g)
		}
	}
	return out
}

// cluster 在单个 cell 内按输入顺序做组长聚类。
//
// B 加入组长 A 的组，当且仅当：
// - B 的大小落在 [0.5×A, 1.5×A] 内（只以组长为锚点）
// - 且（两者哈希都存在并相等，或相似度 >= 阈值）
//
// 因为区间只以组长为锚点，同组成员之间不保证互相落在对方的区间内。
func (e *Engine) cluster(records []domain.FileRecord) []domain.DuplicateGroup {
	visited := make([]bool, len(records))
	var out []domain.DuplicateGroup
	for i := range records {
		if visited[i] {
			continue
		}
		visited[i] = true
		leader := records[i]
		members := []domain.FileRecord{leader}

		lo := bandLow * float64(leader.Size())
		hi := bandHigh * float64(leader.Size())
		for j := i + 1; j < len(records); j++ {
			if visited[j] {
				continue
			}
			cand := records[j]
			if sz := float64(cand.Size()); sz < lo || sz > hi {
				continue
			}
			if leader.SameContent(cand) || e.score(leader, cand) >= e.Threshold {
				visited[j] = true
				members = append(members, cand)
			}
		}

		if len(members) > 1 {
			out = append(out, domain.DuplicateGroup{Key: leader.NormalizedName, Members: members})
		}
	}
	return out
}

func (e *Engine) score(a, b domain.FileRecord) float64 {
	if e.Scorer == nil {
		return similarity.Score(a.File.Stem, b.File.Stem)
	}
	return e.Scorer.Score(a.File.Stem, b.File.Stem)
}
