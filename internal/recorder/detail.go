package recorder

import (
	"github.com/packagewjx/gpu-usage-recorder/internal/store"
	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
)

// DetailRecorder 每次调用都追加一条明细，不去重也不聚合
type DetailRecorder struct {
	dao store.UpdateDao
}

func NewDetailRecorder(dao store.UpdateDao) *DetailRecorder {
	return &DetailRecorder{dao: dao}
}

func (r *DetailRecorder) Append(obs *Observation) error {
	return r.dao.SaveDetail(&core.DetailSample{
		Pid:       obs.Pid,
		GpuId:     obs.GpuId,
		UserName:  obs.UserName,
		TimeStamp: obs.Now,
		Memory:    memoryMiB(obs.Memory),
	})
}
