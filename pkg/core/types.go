package core

// UsageRecord 一个进程在一张显卡上整个生命周期的滚动统计，以(Pid, GpuId)唯一确定。
type UsageRecord struct {
	Pid         int    `json:"pid"`
	GpuId       int    `json:"gpuId"`
	UserName    string `json:"userName"`
	ProcessName string `json:"processName"`
	StartTime   int64  `json:"startTime"`
	EndTime     int64  `json:"endTime"`
	MinMemory   int64  `json:"minMemory"`
	MaxMemory   int64  `json:"maxMemory"`
	SumMemory   int64  `json:"sumMemory"` // 所有采样显存的总和。用于计算平均值
	MemCount    int64  `json:"memCount"`
}

// AvgMemory 平均显存占用，单位MiB。没有采样时返回0
func (r *UsageRecord) AvgMemory() float64 {
	if r.MemCount == 0 {
		return 0
	}
	return float64(r.SumMemory) / float64(r.MemCount)
}

// DetailSample 明细采样，只追加不修改
type DetailSample struct {
	Pid       int    `json:"pid"`
	GpuId     int    `json:"gpuId"`
	UserName  string `json:"userName"`
	TimeStamp int64  `json:"timeStamp"`
	Memory    int64  `json:"memory"`
}

// Interval 进程占用显卡的时间段，Unix时间戳，单位秒
type Interval struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// MemoryPoint 某一时刻归一化后的显存占用
type MemoryPoint struct {
	TimeStamp int64   `json:"timeStamp"`
	Value     float64 `json:"value"`
}

// UsageTimeline 用户名 -> 显卡编号 -> 占用时间段
type UsageTimeline map[string]map[int][]Interval

// DetailTimeline 用户名 -> 显卡编号 -> 按时间升序排列的显存曲线
type DetailTimeline map[string]map[int][]MemoryPoint

const MiB = 1 << 20

// DefaultMaxMemory 归一化显存曲线时默认使用的显存容量，24GiB，单位MiB
const DefaultMaxMemory = 24 * 1024

const NotAvailable = "N/A"
