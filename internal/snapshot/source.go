package snapshot

import (
	"fmt"
	"strings"
)

const (
	SourceNVML = "nvml"
	SourceSMI  = "smi"
)

// New 根据名称创建采样源。名称为空时使用NVML
func New(name string, attr Attributor) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SourceNVML:
		return NewNVMLSource(attr), nil
	case SourceSMI, "nvidia-smi":
		return NewSMISource(DefaultSMIBinary, attr), nil
	default:
		return nil, fmt.Errorf("未知的采样源%s，可选值：nvml, smi", name)
	}
}
