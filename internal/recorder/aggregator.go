package recorder

import (
	"github.com/packagewjx/gpu-usage-recorder/internal/snapshot"
	"github.com/packagewjx/gpu-usage-recorder/internal/store"
	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/pkg/errors"
)

// Observation 一次采样中某个进程在某张显卡上的观测
type Observation struct {
	GpuId       int
	Pid         int
	UserName    string
	ProcessName string
	Memory      snapshot.MemoryReading
	Now         int64
}

// memoryMiB 字节向下取整为MiB，不可用的读数记为0，仍然计入采样次数
func memoryMiB(m snapshot.MemoryReading) int64 {
	if !m.Available {
		return 0
	}
	return int64(m.Bytes / core.MiB)
}

// UsageAggregator 维护usage表中每个(pid, gpu)的滚动统计
type UsageAggregator struct {
	dao store.UpdateDao
}

func NewUsageAggregator(dao store.UpdateDao) *UsageAggregator {
	return &UsageAggregator{dao: dao}
}

func (a *UsageAggregator) Update(obs *Observation) error {
	memory := memoryMiB(obs.Memory)

	record, err := a.dao.QueryUsage(obs.Pid, obs.GpuId)
	if err == store.ErrUsageNotFound {
		return a.dao.CreateUsage(&core.UsageRecord{
			Pid:         obs.Pid,
			GpuId:       obs.GpuId,
			UserName:    obs.UserName,
			ProcessName: obs.ProcessName,
			StartTime:   obs.Now,
			EndTime:     obs.Now,
			MinMemory:   memory,
			MaxMemory:   memory,
			SumMemory:   memory,
			MemCount:    1,
		})
	} else if err != nil {
		return errors.Wrap(err, "更新usage前查询失败")
	}

	record.EndTime = obs.Now
	if memory < record.MinMemory {
		record.MinMemory = memory
	}
	if memory > record.MaxMemory {
		record.MaxMemory = memory
	}
	record.SumMemory += memory
	record.MemCount++
	return a.dao.UpdateUsage(record)
}
