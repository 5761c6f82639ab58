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
	"fmt"
	"io"
	"os"

	"github.com/packagewjx/gpu-usage-recorder/internal/export"
	"github.com/packagewjx/gpu-usage-recorder/internal/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	exportUsage   = "usage"
	exportDetails = "details"
)

var exportCmd = &cobra.Command{
	Use:       "export usage|details",
	Short:     "将usage或details表导出为CSV",
	Long:      "不指定--out时输出到标准输出。usage表额外输出avg_memory列。",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{exportUsage, exportDetails},
	RunE: func(cmd *cobra.Command, args []string) error {
		dao, err := openDao()
		if err != nil {
			return err
		}
		defer func() {
			_ = dao.Close()
		}()

		var out io.Writer = cmd.OutOrStdout()
		if path := viper.GetString(flagKey(cmd, FlagOut)); path != "" {
			file, err := os.Create(path)
			if err != nil {
				return errors.Wrap(err, "创建输出文件失败")
			}
			defer func() {
				_ = file.Close()
			}()
			out = file
		}

		return exportTable(out, dao, args[0])
	},
}

func exportTable(out io.Writer, dao store.QueryDao, table string) error {
	switch table {
	case exportUsage:
		records, err := dao.QueryAllUsage()
		if err != nil {
			return err
		}
		return export.WriteUsage(out, records)
	case exportDetails:
		source, err := dao.NewDetailSource()
		if err != nil {
			return err
		}
		defer func() {
			_ = source.Close()
		}()
		return export.WriteDetails(out, source)
	default:
		return fmt.Errorf("不支持导出%s", table)
	}
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP(FlagOut, "o", "", "输出的CSV文件路径，默认为标准输出")
	bindFlags(exportCmd, FlagOut)
}
