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
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/packagewjx/gpu-usage-recorder/internal/store"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Global Flags
const (
	FlagConfig  = "config"
	FlagDriver  = "driver"
	FlagDSN     = "dsn"
	FlagVerbose = "verbose"
)

const (
	configName = ".gpu-usage-recorder"
	envPrefix  = "GPU_RECORDER"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gpu-usage-recorder",
	Short: "记录每个用户的显卡占用，并绘制占用时间线",
	Long: "record命令周期性地采样本机每张显卡上的进程与显存，维护每个进程的滚动统计，并以更低的频率记录显存明细。\n" +
		"plot、serve与export命令从数据库中读出记录，整理成按用户、显卡分组的时间线。\n",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool(FlagVerbose) {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, FlagConfig, "",
		"配置文件，默认为$HOME/"+configName+".yaml")
	rootCmd.PersistentFlags().String(FlagDriver, store.DriverSqlite,
		"数据库驱动，可选值：sqlite, mysql")
	rootCmd.PersistentFlags().String(FlagDSN, store.DefaultDSN,
		"数据库地址。sqlite为数据库文件路径，mysql格式为user:pass@tcp(host:port)/db")
	rootCmd.PersistentFlags().BoolP(FlagVerbose, "v", false,
		"输出调试日志与SQL")

	for _, name := range []string{FlagDriver, FlagDSN, FlagVerbose} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			log.Fatalf("获取用户主目录失败：%v", err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("使用配置文件%s", viper.ConfigFileUsed())
	}
}

func openDao() (store.Dao, error) {
	return store.NewDao(&store.Config{
		Driver:  viper.GetString(FlagDriver),
		DSN:     viper.GetString(FlagDSN),
		Verbose: viper.GetBool(FlagVerbose),
	})
}

// bindFlags 将子命令的参数绑定为viper中的command.flag，避免不同子命令的同名参数互相覆盖
func bindFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		_ = viper.BindPFlag(cmd.Name()+"."+name, cmd.Flags().Lookup(name))
	}
}

func flagKey(cmd *cobra.Command, name string) string {
	return cmd.Name() + "." + name
}
