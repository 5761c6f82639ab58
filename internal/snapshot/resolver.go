package snapshot

import (
	"context"
	"fmt"

	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"
)

// Attributor 根据pid查询进程所属用户与命令行
type Attributor interface {
	Attribute(ctx context.Context, pid int) (userName, command string, err error)
}

func NewProcessAttributor() Attributor {
	return &processAttributor{}
}

type processAttributor struct {
}

func (p *processAttributor) Attribute(ctx context.Context, pid int) (string, string, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return "", "", errors.Wrap(err, fmt.Sprintf("查询进程%d失败", pid))
	}
	userName, err := proc.UsernameWithContext(ctx)
	if err != nil {
		return "", "", errors.Wrap(err, fmt.Sprintf("查询进程%d的用户失败", pid))
	}
	command, err := proc.CmdlineWithContext(ctx)
	if err != nil {
		return "", "", errors.Wrap(err, fmt.Sprintf("查询进程%d的命令行失败", pid))
	}
	return userName, command, nil
}

// takeSnapshot 进程可能在枚举之后、查询之前退出，此时用户名和命令行记为N/A，采样仍然保留
func takeSnapshot(ctx context.Context, attr Attributor, pid int, memory MemoryReading) ProcessSnapshot {
	snap := ProcessSnapshot{
		Pid:      pid,
		UserName: core.NotAvailable,
		Command:  core.NotAvailable,
		Memory:   memory,
	}

	userName, command, err := attr.Attribute(ctx, pid)
	if err != nil {
		log.WithField("component", "snapshot").WithField("pid", pid).Warnf("无法确定进程归属：%v", err)
		return snap
	}
	if userName != "" {
		snap.UserName = userName
	}
	if command != "" {
		snap.Command = command
	}
	return snap
}
