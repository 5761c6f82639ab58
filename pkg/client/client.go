package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/packagewjx/gpu-usage-recorder/pkg/server"
	"github.com/pkg/errors"
)

const DefaultBaseUrl = "http://127.0.0.1:2000"

const defaultTimeout = 30 * time.Second

func NewApiClient(baseUrl string) server.API {
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	return &apiClient{
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

var _ server.API = &apiClient{}

// statusError 服务器返回了非200的状态码
type statusError struct {
	path string
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("请求%s失败，状态码%d：%s", e.path, e.code, e.body)
}

type apiClient struct {
	baseUrl string
	client  *http.Client
}

func (a *apiClient) QueryUsage() (core.UsageTimeline, error) {
	dest := core.UsageTimeline{}
	if err := a.get(server.PathUsage, nil, &dest); err != nil {
		return nil, err
	}
	return dest, nil
}

func (a *apiClient) QueryUserUsage(userName string) (map[int][]core.Interval, error) {
	dest := map[int][]core.Interval{}
	err := a.get(server.UserUsagePath(userName), nil, &dest)
	if statusErr, ok := err.(*statusError); ok && statusErr.code == http.StatusNotFound {
		return nil, server.ErrUserNotFound
	} else if err != nil {
		return nil, err
	}
	return dest, nil
}

func (a *apiClient) QueryDetails(maxMemory float64) (core.DetailTimeline, error) {
	var query url.Values
	if maxMemory > 0 {
		query = url.Values{server.QueryMaxMemory: {strconv.FormatFloat(maxMemory, 'f', -1, 64)}}
	}
	dest := core.DetailTimeline{}
	if err := a.get(server.PathDetails, query, &dest); err != nil {
		return nil, err
	}
	return dest, nil
}

func (a *apiClient) get(path string, query url.Values, dest interface{}) error {
	u := a.baseUrl + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	response, err := a.client.Get(u)
	if err != nil {
		return errors.Wrap(err, "请求时出现异常")
	}
	defer func() {
		_ = response.Body.Close()
	}()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return errors.Wrap(err, "读取时出现异常")
	}

	if response.StatusCode != http.StatusOK {
		return &statusError{path: path, code: response.StatusCode, body: strings.TrimSpace(string(body))}
	}

	if err = json.Unmarshal(body, dest); err != nil {
		return errors.Wrap(err, fmt.Sprintf("解析json异常，json为\n%s", string(body)))
	}
	return nil
}
