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

	"github.com/packagewjx/gpu-usage-recorder/internal/recorder"
	"github.com/packagewjx/gpu-usage-recorder/internal/snapshot"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	FlagUsageInterval   = "usage-interval"
	FlagDetailsInterval = "details-interval"
	FlagSource          = "source"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "周期性采样显卡进程，写入usage与details表",
	Long: "每隔usage-interval采样一次所有显卡上的进程，更新usage表中每个(pid, gpu_id)的统计；\n" +
		"每details-interval次采样将本次的显存占用追加到details表。收到SIGINT或SIGTERM后正常退出。",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := recordConfig(cmd)
		if err != nil {
			return err
		}

		source, err := snapshot.New(viper.GetString(flagKey(cmd, FlagSource)), snapshot.NewProcessAttributor())
		if err != nil {
			return err
		}
		dao, err := openDao()
		if err != nil {
			_ = source.Close()
			return err
		}
		scheduler, err := recorder.NewScheduler(config, source, dao)
		if err != nil {
			_ = source.Close()
			_ = dao.Close()
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		log.Infof("开始记录，配置为%s，采样来源为%s", config, source.Name())
		if err := scheduler.Run(ctx); err != nil {
			return err
		}
		log.Info("记录已停止")
		return nil
	},
}

// recordConfig 读取采样配置。配置文件与环境变量中的采样间隔可以是不带单位的秒数
func recordConfig(cmd *cobra.Command) (*recorder.Config, error) {
	interval, err := recorder.ParseInterval(viper.GetString(flagKey(cmd, FlagUsageInterval)))
	if err != nil {
		return nil, err
	}
	config := &recorder.Config{
		UsageInterval:   interval,
		DetailsInterval: viper.GetInt(flagKey(cmd, FlagDetailsInterval)),
	}
	if err := config.Complete(); err != nil {
		return nil, err
	}
	return config, nil
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().String(FlagUsageInterval, recorder.DefaultUsageInterval.String(),
		"两次采样之间的间隔，例如60或1m，不带单位时为秒")
	recordCmd.Flags().Int(FlagDetailsInterval, recorder.DefaultDetailsInterval, "每隔多少次采样记录一次显存明细")
	recordCmd.Flags().String(FlagSource, snapshot.SourceNVML, "采样来源，可选值：nvml, smi")
	bindFlags(recordCmd, FlagUsageInterval, FlagDetailsInterval, FlagSource)
}
