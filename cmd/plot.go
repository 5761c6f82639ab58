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
	"github.com/packagewjx/gpu-usage-recorder/internal/render"
	"github.com/packagewjx/gpu-usage-recorder/internal/timeline"
	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	FlagOut       = "out"
	FlagMaxMemory = "max-memory"
	FlagRows      = "rows"
)

const DefaultChartFile = "gpu_usage.png"

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "将数据库中的记录绘制为每个用户的显卡占用时间线",
	Long: "每个用户一张子图，每张显卡一行。阴影区间为usage表中进程的存活时间，\n" +
		"曲线为details表中该用户在此显卡上的显存占用除以max-memory。",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dao, err := openDao()
		if err != nil {
			return err
		}
		defer func() {
			_ = dao.Close()
		}()

		builder := timeline.NewBuilder(dao)
		usage, err := builder.LoadUsage()
		if err != nil {
			return err
		}
		detail, err := builder.LoadDetail(viper.GetFloat64(flagKey(cmd, FlagMaxMemory)))
		if err != nil {
			return err
		}

		out := viper.GetString(flagKey(cmd, FlagOut))
		err = render.RenderFile(out, usage, detail, render.Options{Rows: viper.GetInt(flagKey(cmd, FlagRows))})
		if err != nil {
			return errors.Wrap(err, "绘图失败")
		}
		log.Infof("共%d个用户，图片已输出到%s", len(usage), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(plotCmd)

	plotCmd.Flags().StringP(FlagOut, "o", DefaultChartFile, "输出的PNG文件路径")
	plotCmd.Flags().Float64(FlagMaxMemory, core.DefaultMaxMemory, "归一化显存曲线使用的显存容量，单位MiB")
	plotCmd.Flags().Int(FlagRows, render.DefaultRows, "每个用户的显卡行数")
	bindFlags(plotCmd, FlagOut, FlagMaxMemory, FlagRows)
}
