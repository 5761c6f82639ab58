package recorder

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultUsageInterval   = 60 * time.Second
	DefaultDetailsInterval = 5
)

type Config struct {
	UsageInterval   time.Duration // 两次采样之间的间隔
	DetailsInterval int           // 每隔多少次采样记录一次明细，至少为1
}

func (c Config) String() string {
	marshal, _ := json.Marshal(c)
	return string(marshal)
}

func (c *Config) Complete() error {
	if c.UsageInterval <= 0 {
		return fmt.Errorf("采样间隔必须大于0，现在为%fs", c.UsageInterval.Seconds())
	}
	if c.DetailsInterval < 1 {
		return fmt.Errorf("明细记录间隔至少为1，现在为%d", c.DetailsInterval)
	}
	return nil
}

// ParseInterval 解析采样间隔。不带单位的数字按秒计算，例如"60"与"1.5"；
// 否则按time.ParseDuration解析，例如"1m30s"
func ParseInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("无法解析采样间隔%q", raw))
	}
	return d, nil
}
