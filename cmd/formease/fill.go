package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"formease/internal/ingest"
	"formease/internal/storage"
	"formease/pkg/api"
	"formease/pkg/model"
)

// errRunFailed 填写未成功，详情已输出
var errRunFailed = errors.New("fill run failed")

func newFillCommand(a *app) *cobra.Command {
	var (
		pf          pageFlags
		dataFile    string
		aliasesFile string
		animationMS int
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "用数据文件填写页面表单",
		Long: `读取 JSON / CSV / TXT 数据记录，检测页面中的可填写控件，
按别名评分匹配后逐个填写。`,
		Example: `  formease fill --data me.json --html form.html --out filled.html
  formease fill --data me.csv --devtools http://127.0.0.1:9222 --target 3F2B...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			record, err := ingest.ParseFile(dataFile)
			if err != nil {
				return err
			}
			req := model.RunRequest{Data: record}
			if aliasesFile != "" {
				if req.Aliases, err = readAliasLists(aliasesFile); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("animation") {
				req.Settings = &model.Settings{AnimationDurationMS: animationMS}
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			p, err := a.openPage(ctx, &pf)
			if err != nil {
				return err
			}

			svc := api.NewService(a.cfg.Fill, a.log, api.WithStore(store))
			resp := svc.Fill(ctx, p.doc, p.id, req)
			closeErr := p.close(ctx, resp.Success)

			if asJSON {
				err = printJSON(cmd.OutOrStdout(), resp)
			} else {
				renderResponse(cmd.OutOrStdout(), resp)
			}
			if err = errors.Join(err, closeErr); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("%w: %s", errRunFailed, resp.Category)
			}
			return nil
		},
	}
	pf.bind(cmd, true)
	cmd.Flags().StringVar(&dataFile, "data", "", "数据记录文件 (.json/.csv/.txt)")
	cmd.Flags().StringVar(&aliasesFile, "aliases", "", "本次运行使用的别名 JSON，优先于已保存映射")
	cmd.Flags().IntVar(&animationMS, "animation", 0, "高亮动画时长 (ms)，覆盖已保存设置")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出结果")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// readAliasLists 读取别名文件并转为请求中的别名列表
func readAliasLists(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases %s: %w", path, err)
	}
	doc, err := storage.ParseAliasDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("parse aliases %s: %w", path, err)
	}
	out := make(map[string][]string, len(doc))
	for k, m := range doc {
		out[k] = m.Aliases
	}
	return out, nil
}

func newDetectCommand(a *app) *cobra.Command {
	var (
		pf     pageFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "列出页面中的可填写字段",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, err := a.openPage(ctx, &pf)
			if err != nil {
				return err
			}
			fields, err := api.NewService(a.cfg.Fill, a.log).Detect(ctx, p.doc, p.id)
			if err = errors.Join(err, p.close(ctx, false)); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), fields)
			}
			renderFields(cmd.OutOrStdout(), fields)
			return nil
		},
	}
	pf.bind(cmd, false)
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}
