package recorder

import (
	"context"
	"sort"
	"time"

	"github.com/packagewjx/gpu-usage-recorder/internal/snapshot"
	"github.com/packagewjx/gpu-usage-recorder/internal/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Scheduler 周期性采样。每次采样都更新usage，每DetailsInterval次采样额外记录一次明细，
// 一次采样的所有写入在同一个事务中提交。
type Scheduler struct {
	config *Config
	source snapshot.Source
	dao    store.Dao
	logger *log.Entry
	now    func() time.Time

	// 距离上一次记录明细经过的采样次数
	detailsCount int
}

func NewScheduler(config *Config, source snapshot.Source, dao store.Dao) (*Scheduler, error) {
	if err := config.Complete(); err != nil {
		return nil, err
	}
	return &Scheduler{
		config: config,
		source: source,
		dao:    dao,
		logger: log.WithField("component", "recorder"),
		now:    time.Now,
	}, nil
}

// Run 循环采样直到ctx被取消。取消视为正常退出，返回nil；采样或写入失败则返回错误并结束。
// 退出时关闭采样源和数据库。
func (s *Scheduler) Run(ctx context.Context) error {
	defer func() {
		_ = s.source.Close()
		if err := s.dao.Close(); err != nil {
			s.logger.Warnf("关闭数据库出错：%v", err)
		}
	}()

	s.logger.Infof("开始采样，采样源为%s，配置：%v", s.source.Name(), s.config)

	for {
		if ctx.Err() != nil {
			s.logger.Info("收到中断信号，停止采样")
			return nil
		}

		start := s.now()
		if err := s.tick(ctx, start); err != nil {
			if ctx.Err() != nil {
				// 中断与采样失败同时发生，仍按中断退出，但保留错误信息
				s.logger.Warnf("中断时采样失败：%v", err)
				s.logger.Info("收到中断信号，停止采样")
				return nil
			}
			return err
		}

		timer := time.NewTimer(s.nextWait(start))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("收到中断信号，停止采样")
			return nil
		case <-timer.C:
		}
	}
}

// nextWait 下一次采样前需要等待的时间，从本次采样开始时计算，采样本身的耗时不计入间隔
func (s *Scheduler) nextWait(start time.Time) time.Duration {
	wait := s.config.UsageInterval - s.now().Sub(start)
	if wait < 0 {
		return 0
	}
	return wait
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) error {
	s.detailsCount++
	detail := s.detailsCount >= s.config.DetailsInterval

	devices, err := s.source.Snapshots(ctx)
	if err != nil {
		return errors.Wrap(err, "获取显卡进程信息失败")
	}
	observations := collectObservations(devices, now.Unix())

	err = s.dao.Transaction(func(tx store.UpdateDao) error {
		aggregator := NewUsageAggregator(tx)
		recorder := NewDetailRecorder(tx)
		for _, obs := range observations {
			if err := aggregator.Update(obs); err != nil {
				return err
			}
			if !detail {
				continue
			}
			if err := recorder.Append(obs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "提交采样数据失败")
	}

	s.logger.Debugf("采样完成，共%d张显卡，%d个进程，记录明细：%v", len(devices), len(observations), detail)

	if detail {
		s.detailsCount = 0
	}
	return nil
}

// collectObservations 按显卡顺序展开，同一张显卡上的进程按(用户名, pid)排序，保证写入顺序确定
func collectObservations(devices []snapshot.DeviceSnapshot, now int64) []*Observation {
	result := make([]*Observation, 0)
	for _, device := range devices {
		processes := append([]snapshot.ProcessSnapshot(nil), device.Processes...)
		sort.SliceStable(processes, func(i, j int) bool {
			if processes[i].UserName != processes[j].UserName {
				return processes[i].UserName < processes[j].UserName
			}
			return processes[i].Pid < processes[j].Pid
		})
		for _, p := range processes {
			result = append(result, &Observation{
				GpuId:       device.Index,
				Pid:         p.Pid,
				UserName:    p.UserName,
				ProcessName: p.Command,
				Memory:      p.Memory,
				Now:         now,
			})
		}
	}
	return result
}
