package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/packagewjx/gpu-usage-recorder/internal/render"
	"github.com/packagewjx/gpu-usage-recorder/internal/timeline"
	api "github.com/packagewjx/gpu-usage-recorder/pkg/server"
)

func (s *serverImpl) healthz(writer http.ResponseWriter, _ *http.Request) {
	_, _ = writer.Write([]byte("OK"))
}

func (s *serverImpl) usage(writer http.ResponseWriter, _ *http.Request) {
	usage, err := s.builder.LoadUsage()
	if err != nil {
		s.internalError(writer, err)
		return
	}
	s.writeJSON(writer, usage)
}

func (s *serverImpl) details(writer http.ResponseWriter, request *http.Request) {
	maxMemory, ok := s.maxMemory(writer, request)
	if !ok {
		return
	}
	detail, err := s.builder.LoadDetail(maxMemory)
	if err != nil {
		s.internalError(writer, err)
		return
	}
	s.writeJSON(writer, detail)
}

func (s *serverImpl) userUsage(writer http.ResponseWriter, request *http.Request) {
	user := mux.Vars(request)["user"]
	usage, err := s.builder.LoadUserUsage(user)
	if err == timeline.ErrUserNotFound {
		http.NotFound(writer, request)
		return
	} else if err != nil {
		s.internalError(writer, err)
		return
	}
	s.writeJSON(writer, usage)
}

func (s *serverImpl) chart(writer http.ResponseWriter, request *http.Request) {
	maxMemory, ok := s.maxMemory(writer, request)
	if !ok {
		return
	}
	usage, err := s.builder.LoadUsage()
	if err != nil {
		s.internalError(writer, err)
		return
	}
	detail, err := s.builder.LoadDetail(maxMemory)
	if err != nil {
		s.internalError(writer, err)
		return
	}

	buf := &bytes.Buffer{}
	err = render.Render(buf, usage, detail, render.Options{Rows: s.config.Rows})
	if err == render.ErrNoData {
		http.NotFound(writer, request)
		return
	} else if err != nil {
		s.internalError(writer, err)
		return
	}

	writer.Header().Set("Content-Type", "image/png")
	_, _ = writer.Write(buf.Bytes())
}

// maxMemory 读取max_memory参数，缺省时使用配置值
func (s *serverImpl) maxMemory(writer http.ResponseWriter, request *http.Request) (float64, bool) {
	raw := request.URL.Query().Get(api.QueryMaxMemory)
	if raw == "" {
		return s.config.MaxMemory, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		http.Error(writer, "max_memory必须为正数", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func (s *serverImpl) writeJSON(writer http.ResponseWriter, v interface{}) {
	marshal, err := json.Marshal(v)
	if err != nil {
		s.internalError(writer, err)
		return
	}
	writer.Header().Set("Content-Type", "application/json")
	_, _ = writer.Write(marshal)
}

func (s *serverImpl) internalError(writer http.ResponseWriter, err error) {
	s.logger.Errorf("处理请求出错：%v", err)
	http.Error(writer, err.Error(), http.StatusInternalServerError)
}
