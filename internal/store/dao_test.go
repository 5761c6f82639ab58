package store

import (
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDao(t *testing.T) Dao {
	dao, err := NewDao(&Config{DSN: filepath.Join(t.TempDir(), "gpu_usage.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dao.Close() })
	return dao
}

func TestConfig_Complete(t *testing.T) {
	c := &Config{}
	assert.NoError(t, c.Complete())
	assert.Equal(t, DriverSqlite, c.Driver)
	assert.Equal(t, DefaultDSN, c.DSN)

	c = &Config{Driver: "MySQL"}
	assert.Error(t, c.Complete())

	c = &Config{Driver: "mysql", DSN: "root:root@tcp(127.0.0.1:3306)/gpu"}
	assert.NoError(t, c.Complete())
	assert.Equal(t, DriverMysql, c.Driver)

	c = &Config{Driver: "postgres"}
	assert.Error(t, c.Complete())
}

func TestNewDao_Schema(t *testing.T) {
	dao := newTestDao(t)
	migrator := dao.DB().Migrator()
	assert.True(t, migrator.HasTable("usage"))
	assert.True(t, migrator.HasTable("details"))
	for _, column := range []string{"pid", "gpu_id", "user_name", "process_name", "start_time", "end_time",
		"min_memory", "max_memory", "sum_memory", "mem_count"} {
		assert.True(t, migrator.HasColumn(&UsageDO{}, column), column)
	}
	for _, column := range []string{"pid", "gpu_id", "user_name", "time_stamp", "memory"} {
		assert.True(t, migrator.HasColumn(&DetailDO{}, column), column)
	}
}

func TestDaoImpl_Usage(t *testing.T) {
	dao := newTestDao(t)

	_, err := dao.QueryUsage(100, 0)
	assert.Equal(t, ErrUsageNotFound, err)

	r := &core.UsageRecord{
		Pid:         100,
		GpuId:       0,
		UserName:    "alice",
		ProcessName: "python train.py",
		StartTime:   1000,
		EndTime:     1000,
		MinMemory:   500,
		MaxMemory:   500,
		SumMemory:   500,
		MemCount:    1,
	}
	assert.NoError(t, dao.CreateUsage(r))

	got, err := dao.QueryUsage(100, 0)
	assert.NoError(t, err)
	assert.Equal(t, r, got)

	/*
		主键冲突
	*/
	assert.Error(t, dao.CreateUsage(r))

	/*
		测试更新，名称不会被修改，零值也能写入
	*/
	updated := *r
	updated.UserName = "bob"
	updated.ProcessName = "other"
	updated.StartTime = 0
	updated.EndTime = 1060
	updated.MinMemory = 0
	updated.SumMemory = 500
	updated.MemCount = 2
	assert.NoError(t, dao.UpdateUsage(&updated))

	got, err = dao.QueryUsage(100, 0)
	assert.NoError(t, err)
	assert.Equal(t, &core.UsageRecord{
		Pid:         100,
		GpuId:       0,
		UserName:    "alice",
		ProcessName: "python train.py",
		StartTime:   1000,
		EndTime:     1060,
		MinMemory:   0,
		MaxMemory:   500,
		SumMemory:   500,
		MemCount:    2,
	}, got)

	/*
		相同pid在不同显卡上是不同记录
	*/
	other := *r
	other.GpuId = 1
	assert.NoError(t, dao.CreateUsage(&other))
	all, err := dao.QueryAllUsage()
	assert.NoError(t, err)
	assert.Equal(t, 2, len(all))
}

func TestDaoImpl_QueryUsageByUser(t *testing.T) {
	dao := newTestDao(t)
	for i := 0; i < 6; i++ {
		user := "alice"
		if i%2 == 1 {
			user = "bob"
		}
		assert.NoError(t, dao.CreateUsage(&core.UsageRecord{Pid: i, GpuId: i % 3, UserName: user, MemCount: 1}))
	}

	records, err := dao.QueryUsageByUser("bob")
	assert.NoError(t, err)
	assert.Equal(t, 3, len(records))
	for _, record := range records {
		assert.Equal(t, "bob", record.UserName)
	}

	records, err = dao.QueryUsageByUser("nobody")
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestDaoImpl_Transaction(t *testing.T) {
	dao := newTestDao(t)

	err := dao.Transaction(func(tx UpdateDao) error {
		_ = tx.CreateUsage(&core.UsageRecord{Pid: 1, GpuId: 0, UserName: "alice", MemCount: 1})
		_ = tx.SaveDetail(&core.DetailSample{Pid: 1, GpuId: 0, UserName: "alice", TimeStamp: 10, Memory: 1})
		return fmt.Errorf("写入失败")
	})
	assert.Error(t, err)

	/*
		回滚后没有任何数据
	*/
	all, err := dao.QueryAllUsage()
	assert.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 0, countDetails(t, dao))

	err = dao.Transaction(func(tx UpdateDao) error {
		if err := tx.CreateUsage(&core.UsageRecord{Pid: 1, GpuId: 0, UserName: "alice", MemCount: 1}); err != nil {
			return err
		}
		r, err := tx.QueryUsage(1, 0)
		if err != nil {
			return err
		}
		r.MemCount++
		if err := tx.UpdateUsage(r); err != nil {
			return err
		}
		return tx.SaveDetail(&core.DetailSample{Pid: 1, GpuId: 0, UserName: "alice", TimeStamp: 10, Memory: 1})
	})
	assert.NoError(t, err)

	r, err := dao.QueryUsage(1, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), r.MemCount)
	assert.Equal(t, 1, countDetails(t, dao))
}

func TestDetailSource_Load(t *testing.T) {
	dao := newTestDao(t)
	const size = 50
	for i := 0; i < size; i++ {
		assert.NoError(t, dao.SaveDetail(&core.DetailSample{
			Pid:       i,
			GpuId:     i % 8,
			UserName:  "alice",
			TimeStamp: int64(1000 + i/2),
			Memory:    int64(i * 10),
		}))
	}

	source, err := dao.NewDetailSource()
	require.NoError(t, err)
	defer source.Close()

	var s *core.DetailSample
	sum := int64(0)
	n := 0
	for s, err = source.Load(); err == nil; s, err = source.Load() {
		assert.Equal(t, "alice", s.UserName)
		assert.Equal(t, s.Pid%8, s.GpuId)
		assert.Equal(t, int64(1000+s.Pid/2), s.TimeStamp)
		sum += s.Memory
		n++
	}
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, size, n)
	assert.Equal(t, int64(10*size*(size-1)/2), sum)
}

func countDetails(t *testing.T, dao Dao) int {
	source, err := dao.NewDetailSource()
	require.NoError(t, err)
	defer source.Close()
	n := 0
	for _, err = source.Load(); err == nil; _, err = source.Load() {
		n++
	}
	assert.Equal(t, io.EOF, err)
	return n
}
