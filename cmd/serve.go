/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/packagewjx/gpu-usage-recorder/internal/render"
	"github.com/packagewjx/gpu-usage-recorder/internal/server"
	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const FlagPort = "port"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP服务器，以JSON或PNG提供时间线",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dao, err := openDao()
		if err != nil {
			return err
		}
		defer func() {
			_ = dao.Close()
		}()

		config := &server.Config{
			Port:      uint16(viper.GetUint(flagKey(cmd, FlagPort))),
			MaxMemory: viper.GetFloat64(flagKey(cmd, FlagMaxMemory)),
			Rows:      viper.GetInt(flagKey(cmd, FlagRows)),
		}
		s, err := server.NewServer(config, dao)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		log.Infof("服务器启动，配置为%s", config)
		return s.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Uint16P(FlagPort, "p", server.DefaultPort, "监听端口")
	serveCmd.Flags().Float64(FlagMaxMemory, core.DefaultMaxMemory, "归一化显存曲线使用的显存容量，单位MiB")
	serveCmd.Flags().Int(FlagRows, render.DefaultRows, "绘图时每个用户的显卡行数")
	bindFlags(serveCmd, FlagPort, FlagMaxMemory, FlagRows)
}
