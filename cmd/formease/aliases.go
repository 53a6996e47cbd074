package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"formease/internal/match"
	"formease/internal/storage"
	"formease/pkg/model"
)

func newAliasesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "管理已保存的别名映射",
		Long:  "已保存的映射非空时整体替换内置别名表。",
	}

	var builtin bool
	list := &cobra.Command{
		Use:   "list",
		Short: "列出别名映射",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if builtin {
				renderMappings(cmd.OutOrStdout(), match.Builtins())
				return nil
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			mappings, err := store.LoadMappings(cmd.Context())
			if err != nil {
				return err
			}
			if len(mappings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "没有已保存的映射，使用内置别名表 (--builtin 查看)")
				return nil
			}
			renderMappings(cmd.OutOrStdout(), mappings)
			return nil
		},
	}
	list.Flags().BoolVar(&builtin, "builtin", false, "显示内置别名表")

	var priority int
	set := &cobra.Command{
		Use:   "set KEY ALIAS...",
		Short: "设置数据键的别名",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !cmd.Flags().Changed("priority") {
				priority = defaultPriority(key)
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			m := model.NewAliasMapping(priority, args[1:]...)
			if err := store.SaveMappings(cmd.Context(), map[string]model.AliasMapping{key: m}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已保存 %s (priority %d): %d 个别名\n", key, m.Priority, len(m.Aliases))
			return nil
		},
	}
	set.Flags().IntVar(&priority, "priority", match.DefaultPriority, "权重，默认沿用内置表")

	del := &cobra.Command{
		Use:   "delete KEY",
		Short: "删除数据键的映射",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			ok, err := store.DeleteMapping(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("mapping %q not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已删除 %s\n", args[0])
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "清空已保存映射，恢复内置别名表",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			return store.ResetMappings(cmd.Context())
		},
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "导出映射与设置为 JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			doc, err := store.ExportJSON(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), doc)
			return err
		},
	}

	imp := &cobra.Command{
		Use:   "import FILE",
		Short: "从 JSON 导入映射",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			mappings, err := storage.ParseAliasDocument(raw)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if err := store.SaveMappings(cmd.Context(), mappings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已导入 %d 个映射\n", len(mappings))
			return nil
		},
	}

	cmd.AddCommand(list, set, del, reset, export, imp)
	return cmd
}

// defaultPriority 内置键沿用内置权重
func defaultPriority(key string) int {
	if m, ok := match.Builtins()[key]; ok {
		return m.Priority
	}
	return match.DefaultPriority
}

func newSettingsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "查看或修改已保存设置",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			s, err := store.Settings(cmd.Context(), model.Settings{AnimationDurationMS: int(a.cfg.Fill.Animation().Milliseconds())})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "animation MS",
		Short: "设置高亮动画时长 (ms)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				return fmt.Errorf("invalid duration %q", args[0])
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			return store.SetSetting(cmd.Context(), storage.SettingAnimationMS, strconv.Itoa(v))
		},
	})
	return cmd
}
