package snapshot

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const DefaultSMIBinary = "nvidia-smi"

// SMISource 通过解析nvidia-smi的CSV输出采样，在无法加载NVML时使用
type SMISource struct {
	BinaryPath string
	Timeout    time.Duration
	attr       Attributor
}

func NewSMISource(binaryPath string, attr Attributor) *SMISource {
	if strings.TrimSpace(binaryPath) == "" {
		binaryPath = DefaultSMIBinary
	}
	return &SMISource{BinaryPath: binaryPath, Timeout: 5 * time.Second, attr: attr}
}

func (s *SMISource) Name() string { return "nvidia-smi" }

func (s *SMISource) Close() error { return nil }

var errNoResults = errors.New("nvidia-smi没有返回结果")

type computeApp struct {
	gpuUUID string
	pid     int
	memory  MemoryReading
}

func (s *SMISource) Snapshots(ctx context.Context) ([]DeviceSnapshot, error) {
	out, err := s.run(ctx, "--query-gpu=index,uuid", "--format=csv,noheader,nounits")
	if err != nil {
		return nil, err
	}
	devices := parseGPUs(out)

	byUUID := map[string]*DeviceSnapshot{}
	for i := range devices {
		byUUID[devices[i].UUID] = &devices[i]
	}

	out, err = s.run(ctx, "--query-compute-apps=gpu_uuid,pid,used_gpu_memory", "--format=csv,noheader,nounits")
	if err != nil && !errors.Is(err, errNoResults) {
		return nil, err
	}

	for _, app := range parseComputeApps(out) {
		device := byUUID[app.gpuUUID]
		if device == nil {
			continue
		}
		device.Processes = append(device.Processes, takeSnapshot(ctx, s.attr, app.pid, app.memory))
	}

	return devices, nil
}

func (s *SMISource) run(ctx context.Context, args ...string) ([]byte, error) {
	qctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(qctx, s.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		se := strings.TrimSpace(stderr.String())
		// 部分版本在没有进程时输出到stderr并返回非0
		if strings.Contains(strings.ToLower(se), "no running") {
			return nil, errNoResults
		}
		return nil, errors.Wrap(err, fmt.Sprintf("执行nvidia-smi失败：%s", se))
	}
	return out, nil
}

func parseGPUs(out []byte) []DeviceSnapshot {
	lines := readCSVLines(out)
	devices := make([]DeviceSnapshot, 0, len(lines))
	for _, cols := range lines {
		if len(cols) < 2 {
			continue
		}
		idx, err := strconv.Atoi(cols[0])
		if err != nil {
			continue
		}
		devices = append(devices, DeviceSnapshot{Index: idx, UUID: cols[1]})
	}
	return devices
}

func parseComputeApps(out []byte) []computeApp {
	lines := readCSVLines(out)
	apps := make([]computeApp, 0, len(lines))
	for _, cols := range lines {
		if len(cols) < 3 {
			continue
		}
		pid, err := strconv.Atoi(cols[1])
		if err != nil {
			continue
		}
		// 显存单位为MiB，权限不足等情况下为[N/A]
		memory := Unavailable
		if mib, err := strconv.ParseUint(cols[2], 10, 64); err == nil {
			memory = Bytes(mib * 1024 * 1024)
		}
		apps = append(apps, computeApp{gpuUUID: cols[0], pid: pid, memory: memory})
	}
	return apps
}

// readCSVLines 解析--format=csv,noheader,nounits的输出，逗号后的空格由TrimLeadingSpace去掉
func readCSVLines(b []byte) [][]string {
	reader := csv.NewReader(bytes.NewReader(b))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	out := [][]string{}
	for {
		cols, err := reader.Read()
		if err != nil {
			// io.EOF，或之后的行无法可靠解析时保留已读到的行
			break
		}
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}
		out = append(out, cols)
	}
	return out
}
