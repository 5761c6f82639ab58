package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	DefaultRows       = 8
	DefaultTimeFormat = "01-02-15:04"
	DefaultWidth      = 12 * vg.Inch
	DefaultHeight     = 10 * vg.Inch
)

var ErrNoData = errors.New("没有可绘制的数据")

var (
	spanColor  = color.NRGBA{R: 0x43, G: 0x93, B: 0xC3, A: 0x40}
	curveColor = color.NRGBA{G: 0x80, A: 0xFF}
	gridColor  = color.NRGBA{R: 0xC8, G: 0xC9, B: 0xC9, A: 0x66}
)

type Options struct {
	Rows       int // 每个用户的显卡行数，显卡编号须在[0, Rows)内
	Width      vg.Length
	Height     vg.Length
	TimeFormat string
	Location   *time.Location
}

func (o *Options) complete() {
	if o.Rows <= 0 {
		o.Rows = DefaultRows
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.TimeFormat == "" {
		o.TimeFormat = DefaultTimeFormat
	}
	if o.Location == nil {
		o.Location = time.Local
	}
}

// bandHeight 每一行的高度，整个子图的纵轴范围为[-0.5, 0.5]
func bandHeight(rows int) float64 {
	return 0.8 / float64(rows)
}

// rowCenter 第k行的中心位置
func rowCenter(k, rows int) float64 {
	return (float64(k)+0.5)*bandHeight(rows) - 0.5 + 0.1
}

// curveY 把[0, 1]的归一化显存映射到第k行的带内
func curveY(value float64, k, rows int) float64 {
	dlen := bandHeight(rows)
	return value*dlen + rowCenter(k, rows) - 0.5*dlen
}

// Render 每个用户一个子图，共用时间轴。占用时间段画为对应显卡行上的色块，
// 显存曲线叠加在同一行上。结果以PNG格式写入w。
func Render(w io.Writer, usage core.UsageTimeline, detail core.DetailTimeline, opts Options) error {
	opts.complete()
	logger := log.WithField("component", "render")

	users := make([]string, 0, len(usage))
	for user := range usage {
		users = append(users, user)
	}
	sort.Strings(users)
	if len(users) == 0 {
		return ErrNoData
	}

	xmin, xmax := timeRange(usage, detail)

	plots := make([][]*plot.Plot, len(users))
	for i, user := range users {
		p, err := userPlot(user, usage[user], detail[user], opts, logger)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("绘制用户%s的子图失败", user))
		}
		p.X.Min, p.X.Max = xmin, xmax
		if i != len(users)-1 {
			p.X.Tick.Label.Color = color.Transparent
		}
		plots[i] = []*plot.Plot{p}
	}

	img := vgimg.New(opts.Width, opts.Height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: len(users),
		Cols: 1,
		PadX: vg.Millimeter,
		PadY: vg.Millimeter,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return errors.Wrap(err, "输出图片失败")
	}
	return nil
}

// RenderFile 与Render相同，结果写入文件
func RenderFile(path string, usage core.UsageTimeline, detail core.DetailTimeline, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "创建输出文件错误")
	}
	err = Render(f, usage, detail, opts)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "关闭输出文件错误")
	}
	return err
}

func userPlot(user string, usage map[int][]core.Interval, detail map[int][]core.MemoryPoint,
	opts Options, logger *log.Entry) (*plot.Plot, error) {
	p := plot.New()
	p.Y.Label.Text = user
	p.X.Tick.Marker = plot.TimeTicks{Format: opts.TimeFormat, Time: plot.UnixTimeIn(opts.Location)}

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = nil
	p.Add(grid)

	dlen := bandHeight(opts.Rows)
	devices := make([]int, 0, len(usage))
	for gpuId := range usage {
		devices = append(devices, gpuId)
	}
	for gpuId := range detail {
		if _, ok := usage[gpuId]; !ok {
			devices = append(devices, gpuId)
		}
	}
	sort.Ints(devices)

	for _, gpuId := range devices {
		if gpuId < 0 || gpuId >= opts.Rows {
			logger.WithField("user", user).Warnf("显卡%d超出绘制范围[0, %d)，忽略", gpuId, opts.Rows)
			continue
		}
		y := rowCenter(gpuId, opts.Rows)

		for _, interval := range usage[gpuId] {
			span, err := plotter.NewPolygon(plotter.XYs{
				{X: float64(interval.Start), Y: y - dlen/2},
				{X: float64(interval.End), Y: y - dlen/2},
				{X: float64(interval.End), Y: y + dlen/2},
				{X: float64(interval.Start), Y: y + dlen/2},
			})
			if err != nil {
				return nil, err
			}
			span.Color = spanColor
			span.LineStyle.Width = 0
			p.Add(span)
		}

		points := detail[gpuId]
		if len(points) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(points))
		for i, point := range points {
			xys[i].X = float64(point.TimeStamp)
			xys[i].Y = curveY(point.Value, gpuId, opts.Rows)
		}
		curve, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		curve.LineStyle.Color = curveColor
		curve.LineStyle.Width = vg.Points(0.5)
		p.Add(curve)
	}

	ticks := make([]plot.Tick, opts.Rows)
	for k := 0; k < opts.Rows; k++ {
		ticks[k] = plot.Tick{Value: rowCenter(k, opts.Rows), Label: strconv.Itoa(k)}
	}
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Min, p.Y.Max = -0.5, 0.5

	return p, nil
}

// timeRange 所有用户共用的时间轴范围
func timeRange(usage core.UsageTimeline, detail core.DetailTimeline) (float64, float64) {
	xmin, xmax := math.Inf(1), math.Inf(-1)
	for _, user := range usage {
		for _, intervals := range user {
			for _, interval := range intervals {
				xmin = math.Min(xmin, float64(interval.Start))
				xmax = math.Max(xmax, float64(interval.End))
			}
		}
	}
	for _, user := range detail {
		for _, points := range user {
			for _, point := range points {
				xmin = math.Min(xmin, float64(point.TimeStamp))
				xmax = math.Max(xmax, float64(point.TimeStamp))
			}
		}
	}
	if math.IsInf(xmin, 1) {
		now := float64(time.Now().Unix())
		return now - 60, now
	}
	if xmax-xmin < 60 {
		xmin -= 30
		xmax += 30
	}
	return xmin, xmax
}
