package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/packagewjx/gpu-usage-recorder/internal/store"
	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/pkg/errors"
)

var usageHeader = []string{"pid", "gpu_id", "user_name", "process_name", "start_time", "end_time",
	"min_memory", "max_memory", "avg_memory", "mem_count"}

var detailHeader = []string{"pid", "gpu_id", "user_name", "time_stamp", "memory"}

// WriteUsage 输出usage记录，平均显存由sum_memory/mem_count计算，保留两位小数
func WriteUsage(out io.Writer, records []*core.UsageRecord) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(usageHeader); err != nil {
		return errors.Wrap(err, "写入表头出错")
	}

	for i, r := range records {
		record := []string{
			strconv.Itoa(r.Pid),
			strconv.Itoa(r.GpuId),
			r.UserName,
			r.ProcessName,
			strconv.FormatInt(r.StartTime, 10),
			strconv.FormatInt(r.EndTime, 10),
			strconv.FormatInt(r.MinMemory, 10),
			strconv.FormatInt(r.MaxMemory, 10),
			fmt.Sprintf("%.2f", r.AvgMemory()),
			strconv.FormatInt(r.MemCount, 10),
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, fmt.Sprintf("写入第%d条数据出错", i))
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteDetails 逐条读取明细并输出，直到source返回io.EOF
func WriteDetails(out io.Writer, source store.DetailSource) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(detailHeader); err != nil {
		return errors.Wrap(err, "写入表头出错")
	}

	var s *core.DetailSample
	var err error
	i := 0
	for s, err = source.Load(); err == nil; s, err = source.Load() {
		record := []string{
			strconv.Itoa(s.Pid),
			strconv.Itoa(s.GpuId),
			s.UserName,
			strconv.FormatInt(s.TimeStamp, 10),
			strconv.FormatInt(s.Memory, 10),
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, fmt.Sprintf("写入第%d条数据出错", i))
		}
		i++
	}
	if err != io.EOF {
		return errors.Wrap(err, "读取details出现问题")
	}

	writer.Flush()
	return writer.Error()
}
