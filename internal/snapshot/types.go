package snapshot

import "context"

// MemoryReading 进程的显存占用。驱动无法给出数值时Available为false，不在此处替换为0。
type MemoryReading struct {
	Bytes     uint64
	Available bool
}

func Bytes(n uint64) MemoryReading {
	return MemoryReading{Bytes: n, Available: true}
}

var Unavailable = MemoryReading{}

type ProcessSnapshot struct {
	Pid      int
	UserName string
	Command  string
	Memory   MemoryReading
}

type DeviceSnapshot struct {
	Index     int
	UUID      string
	Processes []ProcessSnapshot
}

// Source 获取当前所有显卡及其上运行的进程
type Source interface {
	Snapshots(ctx context.Context) ([]DeviceSnapshot, error)
	Close() error
	Name() string
}
