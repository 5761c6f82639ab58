package timeline

import (
	"fmt"
	"io"
	"sort"

	"github.com/packagewjx/gpu-usage-recorder/internal/store"
	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/pkg/errors"
)

var ErrUserNotFound = errors.New("没有该用户的使用记录")

// Builder 从数据库中读出usage与details，整理成按用户、显卡分组的时间线
type Builder struct {
	dao store.QueryDao
}

func NewBuilder(dao store.QueryDao) *Builder {
	return &Builder{dao: dao}
}

// LoadUsage 每条usage记录对应一个时间段。同一分组内按读取顺序排列，不保证按时间排序
func (b *Builder) LoadUsage() (core.UsageTimeline, error) {
	records, err := b.dao.QueryAllUsage()
	if err != nil {
		return nil, errors.Wrap(err, "读取usage出错")
	}
	return groupUsage(records), nil
}

// LoadUserUsage 只返回一个用户的时间线，没有记录时返回ErrUserNotFound
func (b *Builder) LoadUserUsage(userName string) (map[int][]core.Interval, error) {
	records, err := b.dao.QueryUsageByUser(userName)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("读取用户%s的usage出错", userName))
	}
	if len(records) == 0 {
		return nil, ErrUserNotFound
	}
	return groupUsage(records)[userName], nil
}

func groupUsage(records []*core.UsageRecord) core.UsageTimeline {
	result := core.UsageTimeline{}
	for _, r := range records {
		user, ok := result[r.UserName]
		if !ok {
			user = map[int][]core.Interval{}
			result[r.UserName] = user
		}
		user[r.GpuId] = append(user[r.GpuId], core.Interval{Start: r.StartTime, End: r.EndTime})
	}
	return result
}

// LoadDetail 同一用户、显卡、时间戳的显存先求和，再除以maxMemory归一化，最后按时间升序排列。
// maxMemory与数据库中显存单位一致（MiB），不大于0时使用core.DefaultMaxMemory。
func (b *Builder) LoadDetail(maxMemory float64) (core.DetailTimeline, error) {
	if maxMemory <= 0 {
		maxMemory = core.DefaultMaxMemory
	}

	source, err := b.dao.NewDetailSource()
	if err != nil {
		return nil, err
	}
	defer source.Close()

	sums := make(map[string]map[int]map[int64]int64)
	var s *core.DetailSample
	for s, err = source.Load(); err == nil; s, err = source.Load() {
		user, ok := sums[s.UserName]
		if !ok {
			user = make(map[int]map[int64]int64)
			sums[s.UserName] = user
		}
		gpu, ok := user[s.GpuId]
		if !ok {
			gpu = make(map[int64]int64)
			user[s.GpuId] = gpu
		}
		gpu[s.TimeStamp] += s.Memory
	}
	if err != io.EOF {
		return nil, errors.Wrap(err, "读取details出现问题")
	}

	result := core.DetailTimeline{}
	for userName, user := range sums {
		result[userName] = make(map[int][]core.MemoryPoint, len(user))
		for gpuId, gpu := range user {
			points := make([]core.MemoryPoint, 0, len(gpu))
			for ts, memory := range gpu {
				points = append(points, core.MemoryPoint{TimeStamp: ts, Value: float64(memory) / maxMemory})
			}
			sort.Slice(points, func(i, j int) bool {
				return points[i].TimeStamp < points[j].TimeStamp
			})
			result[userName][gpuId] = points
		}
	}

	return result, nil
}
