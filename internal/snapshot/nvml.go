package snapshot

import (
	"context"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// NVML在无法获取进程显存时（例如Windows WDDM模式下）返回的值
const valueNotAvailable = ^uint64(0)

// NVMLSource 通过NVML（go-nvml cgo绑定）采样
type NVMLSource struct {
	attr        Attributor
	initialized bool
}

func NewNVMLSource(attr Attributor) *NVMLSource {
	return &NVMLSource{attr: attr}
}

func (s *NVMLSource) init() error {
	if s.initialized {
		return nil
	}
	ret := nvml.Init()
	if ret != nvml.SUCCESS {
		return fmt.Errorf("nvml初始化失败：%s", nvml.ErrorString(ret))
	}
	s.initialized = true
	return nil
}

func (s *NVMLSource) Name() string { return "nvml" }

func (s *NVMLSource) Close() error {
	if !s.initialized {
		return nil
	}
	_ = nvml.Shutdown()
	s.initialized = false
	return nil
}

func (s *NVMLSource) Snapshots(ctx context.Context) ([]DeviceSnapshot, error) {
	if err := s.init(); err != nil {
		return nil, err
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("nvml获取显卡数量失败：%s", nvml.ErrorString(ret))
	}

	result := make([]DeviceSnapshot, 0, count)
	for i := 0; i < count; i++ {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("nvml获取第%d张显卡失败：%s", i, nvml.ErrorString(ret))
		}
		uuid, _ := dev.GetUUID()

		compute, ret := dev.GetComputeRunningProcesses()
		if ret != nvml.SUCCESS && ret != nvml.ERROR_NOT_SUPPORTED {
			return nil, fmt.Errorf("nvml获取第%d张显卡的计算进程失败：%s", i, nvml.ErrorString(ret))
		}
		graphics, ret := dev.GetGraphicsRunningProcesses()
		if ret != nvml.SUCCESS && ret != nvml.ERROR_NOT_SUPPORTED {
			return nil, fmt.Errorf("nvml获取第%d张显卡的图形进程失败：%s", i, nvml.ErrorString(ret))
		}

		device := DeviceSnapshot{Index: i, UUID: uuid}
		seen := map[int]struct{}{}
		for _, p := range append(compute, graphics...) {
			pid := int(p.Pid)
			if _, ok := seen[pid]; ok {
				continue
			}
			seen[pid] = struct{}{}

			memory := Bytes(p.UsedGpuMemory)
			if p.UsedGpuMemory == valueNotAvailable {
				memory = Unavailable
			}
			device.Processes = append(device.Processes, takeSnapshot(ctx, s.attr, pid, memory))
		}
		result = append(result, device)
	}

	return result, nil
}
