package server

import (
	"net/url"
	"strings"

	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/pkg/errors"
)

// HTTP接口路径
const (
	PathHealthz   = "/healthz"
	PathUsage     = "/usage"
	PathDetails   = "/details"
	PathUserUsage = "/users/{user}/usage"
	PathChart     = "/chart.png"
)

var ErrUserNotFound = errors.New("用户不存在")

// QueryMaxMemory 归一化显存使用的容量，单位MiB
const QueryMaxMemory = "max_memory"

func UserUsagePath(userName string) string {
	return strings.Replace(PathUserUsage, "{user}", url.PathEscape(userName), 1)
}

type API interface {
	// 所有用户在各显卡上的进程存活区间
	QueryUsage() (core.UsageTimeline, error)

	// 单个用户的进程存活区间，用户不存在时返回ErrUserNotFound
	QueryUserUsage(userName string) (map[int][]core.Interval, error)

	// 归一化后的显存曲线，maxMemory不大于0时使用服务器的配置
	QueryDetails(maxMemory float64) (core.DetailTimeline, error)
}
