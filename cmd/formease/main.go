// Command formease 根据数据记录自动填写网页表单
//
// 页面可以来自本地 HTML 文件，也可以是通过 DevTools 协议附加的浏览器标签页。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"formease/internal/config"
	"formease/internal/logger"
	"formease/internal/storage"
)

// app 命令共享的运行时依赖
type app struct {
	cfgFile string
	debug   bool

	cfg   *config.Config
	log   logger.Logger
	store *storage.Store
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCommand(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "formease",
		Short:        "根据数据记录自动填写网页表单",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "yaml 配置文件路径")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "输出调试日志")

	root.AddCommand(
		newFillCommand(a),
		newDetectCommand(a),
		newTargetsCommand(a),
		newAliasesCommand(a),
		newSettingsCommand(a),
	)
	return root
}

// init 加载配置并创建日志
func (a *app) init() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg
	a.log = logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})
	a.log.Debug("配置已加载", "config", a.cfgFile, "version", cfg.Version)
	return nil
}

// openStore 按需打开别名库
func (a *app) openStore() (*storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := storage.Open(a.cfg.Sqlite.Dsn, a.cfg.Sqlite.Prefix, a.log)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", a.cfg.Sqlite.Dsn, err)
	}
	a.store = s
	return s, nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Err(err, "关闭存储失败")
	}
}
