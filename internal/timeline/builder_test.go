package timeline

import (
	"path/filepath"
	"testing"

	"github.com/packagewjx/gpu-usage-recorder/internal/store"
	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDao(t *testing.T) store.Dao {
	dao, err := store.NewDao(&store.Config{DSN: filepath.Join(t.TempDir(), "gpu_usage.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dao.Close() })
	return dao
}

func TestBuilder_LoadUsage(t *testing.T) {
	dao := newTestDao(t)
	records := []*core.UsageRecord{
		{Pid: 1, GpuId: 0, UserName: "alice", StartTime: 100, EndTime: 200, MemCount: 1},
		{Pid: 2, GpuId: 0, UserName: "alice", StartTime: 50, EndTime: 80, MemCount: 1},
		{Pid: 2, GpuId: 3, UserName: "alice", StartTime: 60, EndTime: 90, MemCount: 1},
		{Pid: 3, GpuId: 0, UserName: "bob", StartTime: 10, EndTime: 10, MemCount: 1},
	}
	for _, r := range records {
		require.NoError(t, dao.CreateUsage(r))
	}

	usage, err := NewBuilder(dao).LoadUsage()
	assert.NoError(t, err)
	assert.Equal(t, 2, len(usage))
	assert.Equal(t, 2, len(usage["alice"]))
	assert.ElementsMatch(t, []core.Interval{{Start: 100, End: 200}, {Start: 50, End: 80}}, usage["alice"][0])
	assert.Equal(t, []core.Interval{{Start: 60, End: 90}}, usage["alice"][3])
	assert.Equal(t, map[int][]core.Interval{0: {{Start: 10, End: 10}}}, usage["bob"])

	/*
		每条记录对应一个时间段
	*/
	n := 0
	for _, user := range usage {
		for _, intervals := range user {
			n += len(intervals)
		}
	}
	assert.Equal(t, len(records), n)

	/*
		空表
	*/
	usage, err = NewBuilder(newTestDao(t)).LoadUsage()
	assert.NoError(t, err)
	assert.Empty(t, usage)
}

func TestBuilder_LoadUsageOrder(t *testing.T) {
	dao := newTestDao(t)
	for _, pid := range []int{9, 3, 7, 1} {
		require.NoError(t, dao.CreateUsage(&core.UsageRecord{Pid: pid, GpuId: 0, UserName: "alice",
			StartTime: int64(pid), EndTime: int64(pid), MemCount: 1}))
	}

	/*
		同一分组内保持写入顺序，不按pid或时间排序
	*/
	usage, err := NewBuilder(dao).LoadUsage()
	assert.NoError(t, err)
	assert.Equal(t, []core.Interval{{Start: 9, End: 9}, {Start: 3, End: 3}, {Start: 7, End: 7}, {Start: 1, End: 1}},
		usage["alice"][0])
}

func TestBuilder_LoadUserUsage(t *testing.T) {
	dao := newTestDao(t)
	require.NoError(t, dao.CreateUsage(&core.UsageRecord{Pid: 1, GpuId: 2, UserName: "alice", StartTime: 1, EndTime: 5}))
	require.NoError(t, dao.CreateUsage(&core.UsageRecord{Pid: 2, GpuId: 2, UserName: "bob", StartTime: 3, EndTime: 4}))

	builder := NewBuilder(dao)
	user, err := builder.LoadUserUsage("alice")
	assert.NoError(t, err)
	assert.Equal(t, map[int][]core.Interval{2: {{Start: 1, End: 5}}}, user)

	_, err = builder.LoadUserUsage("carol")
	assert.Equal(t, ErrUserNotFound, err)
}

func TestBuilder_LoadDetail(t *testing.T) {
	dao := newTestDao(t)
	samples := []*core.DetailSample{
		{Pid: 1, GpuId: 0, UserName: "bob", TimeStamp: 2000, Memory: 300},
		{Pid: 2, GpuId: 0, UserName: "bob", TimeStamp: 2000, Memory: 200},
		{Pid: 1, GpuId: 0, UserName: "bob", TimeStamp: 1700, Memory: 100},
		{Pid: 1, GpuId: 0, UserName: "bob", TimeStamp: 2300, Memory: 1000},
		{Pid: 1, GpuId: 1, UserName: "bob", TimeStamp: 2000, Memory: 50},
		{Pid: 9, GpuId: 0, UserName: "alice", TimeStamp: 2000, Memory: 400},
	}
	for _, s := range samples {
		require.NoError(t, dao.SaveDetail(s))
	}

	detail, err := NewBuilder(dao).LoadDetail(1000)
	assert.NoError(t, err)
	assert.Equal(t, core.DetailTimeline{
		"bob": {
			0: {{TimeStamp: 1700, Value: 0.1}, {TimeStamp: 2000, Value: 0.5}, {TimeStamp: 2300, Value: 1}},
			1: {{TimeStamp: 2000, Value: 0.05}},
		},
		"alice": {
			0: {{TimeStamp: 2000, Value: 0.4}},
		},
	}, detail)
}

func TestBuilder_LoadDetailDefaultMaxMemory(t *testing.T) {
	dao := newTestDao(t)
	require.NoError(t, dao.SaveDetail(&core.DetailSample{Pid: 1, GpuId: 0, UserName: "bob", TimeStamp: 1, Memory: 12 * 1024}))

	detail, err := NewBuilder(dao).LoadDetail(0)
	assert.NoError(t, err)
	assert.Equal(t, []core.MemoryPoint{{TimeStamp: 1, Value: 0.5}}, detail["bob"][0])
}

func TestBuilder_LoadDetailSorted(t *testing.T) {
	dao := newTestDao(t)
	for i := 100; i > 0; i-- {
		require.NoError(t, dao.SaveDetail(&core.DetailSample{Pid: i % 3, GpuId: 0, UserName: "bob", TimeStamp: int64(i % 40), Memory: 1}))
	}

	detail, err := NewBuilder(dao).LoadDetail(1)
	assert.NoError(t, err)
	points := detail["bob"][0]
	assert.Equal(t, 40, len(points))
	total := float64(0)
	for i := 1; i < len(points); i++ {
		assert.Less(t, points[i-1].TimeStamp, points[i].TimeStamp)
	}
	for _, p := range points {
		total += p.Value
	}
	assert.Equal(t, float64(100), total)
}
