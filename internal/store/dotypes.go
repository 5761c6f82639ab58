package store

import "github.com/packagewjx/gpu-usage-recorder/pkg/core"

type UsageDO struct {
	Pid         int    `gorm:"column:pid;primaryKey;autoIncrement:false"`
	GpuId       int    `gorm:"column:gpu_id;primaryKey;autoIncrement:false"`
	UserName    string `gorm:"column:user_name;type:TEXT"`
	ProcessName string `gorm:"column:process_name;type:TEXT"`
	StartTime   int64  `gorm:"column:start_time"`
	EndTime     int64  `gorm:"column:end_time"`
	MinMemory   int64  `gorm:"column:min_memory"`
	MaxMemory   int64  `gorm:"column:max_memory"`
	SumMemory   int64  `gorm:"column:sum_memory"`
	MemCount    int64  `gorm:"column:mem_count"`
}

func (UsageDO) TableName() string {
	return "usage"
}

func (do *UsageDO) record() *core.UsageRecord {
	return &core.UsageRecord{
		Pid:         do.Pid,
		GpuId:       do.GpuId,
		UserName:    do.UserName,
		ProcessName: do.ProcessName,
		StartTime:   do.StartTime,
		EndTime:     do.EndTime,
		MinMemory:   do.MinMemory,
		MaxMemory:   do.MaxMemory,
		SumMemory:   do.SumMemory,
		MemCount:    do.MemCount,
	}
}

func usageDOFromRecord(r *core.UsageRecord) *UsageDO {
	return &UsageDO{
		Pid:         r.Pid,
		GpuId:       r.GpuId,
		UserName:    r.UserName,
		ProcessName: r.ProcessName,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		MinMemory:   r.MinMemory,
		MaxMemory:   r.MaxMemory,
		SumMemory:   r.SumMemory,
		MemCount:    r.MemCount,
	}
}

// DetailDO 明细表没有主键，允许同一时间戳有多条记录
type DetailDO struct {
	Pid       int    `gorm:"column:pid"`
	GpuId     int    `gorm:"column:gpu_id"`
	UserName  string `gorm:"column:user_name;type:TEXT"`
	TimeStamp int64  `gorm:"column:time_stamp"`
	Memory    int64  `gorm:"column:memory"`
}

func (DetailDO) TableName() string {
	return "details"
}

func (do *DetailDO) sample() *core.DetailSample {
	return &core.DetailSample{
		Pid:       do.Pid,
		GpuId:     do.GpuId,
		UserName:  do.UserName,
		TimeStamp: do.TimeStamp,
		Memory:    do.Memory,
	}
}
