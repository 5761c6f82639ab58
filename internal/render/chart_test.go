package render

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/plot/vg"
)

func TestLayout(t *testing.T) {
	assert.InDelta(t, 0.1, bandHeight(8), 1e-9)
	assert.InDelta(t, -0.35, rowCenter(0, 8), 1e-9)
	assert.InDelta(t, 0.35, rowCenter(7, 8), 1e-9)

	/*
		曲线被限制在行内
	*/
	for k := 0; k < 8; k++ {
		assert.InDelta(t, rowCenter(k, 8)-0.05, curveY(0, k, 8), 1e-9)
		assert.InDelta(t, rowCenter(k, 8)+0.05, curveY(1, k, 8), 1e-9)
	}

	assert.InDelta(t, 0.4, bandHeight(2), 1e-9)
	assert.InDelta(t, -0.2, rowCenter(0, 2), 1e-9)
}

func TestTimeRange(t *testing.T) {
	usage := core.UsageTimeline{"a": {0: {{Start: 1000, End: 2000}}}}
	detail := core.DetailTimeline{"a": {0: {{TimeStamp: 900, Value: 0.1}, {TimeStamp: 2500, Value: 0.1}}}}
	xmin, xmax := timeRange(usage, detail)
	assert.Equal(t, float64(900), xmin)
	assert.Equal(t, float64(2500), xmax)

	xmin, xmax = timeRange(core.UsageTimeline{"a": {0: {{Start: 1000, End: 1000}}}}, nil)
	assert.Equal(t, float64(970), xmin)
	assert.Equal(t, float64(1030), xmax)

	xmin, xmax = timeRange(nil, nil)
	assert.Equal(t, float64(60), xmax-xmin)
}

func TestRender(t *testing.T) {
	usage := core.UsageTimeline{
		"alice": {
			0:  {{Start: 1000, End: 5000}, {Start: 6000, End: 9000}},
			3:  {{Start: 2000, End: 3000}},
			12: {{Start: 2000, End: 3000}},
		},
		"bob": {7: {{Start: 1000, End: 1000}}},
	}
	detail := core.DetailTimeline{
		"alice": {0: {{TimeStamp: 1000, Value: 0.2}, {TimeStamp: 3000, Value: 0.9}, {TimeStamp: 9000, Value: 0.4}}},
	}

	buf := &bytes.Buffer{}
	err := Render(buf, usage, detail, Options{Width: 4 * vg.Inch, Height: 3 * vg.Inch})
	assert.NoError(t, err)

	img, err := png.Decode(buf)
	assert.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
	assert.Greater(t, img.Bounds().Dy(), 0)

	/*
		没有数据
	*/
	assert.Equal(t, ErrNoData, Render(&bytes.Buffer{}, core.UsageTimeline{}, detail, Options{}))
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpu_usage.png")
	usage := core.UsageTimeline{"alice": {1: {{Start: 1000, End: 5000}}}}
	assert.NoError(t, RenderFile(path, usage, nil, Options{Rows: 2}))

	stat, err := os.Stat(path)
	assert.NoError(t, err)
	assert.Greater(t, stat.Size(), int64(0))

	assert.Error(t, RenderFile(filepath.Join(t.TempDir(), "no", "such", "dir.png"), usage, nil, Options{}))
}
