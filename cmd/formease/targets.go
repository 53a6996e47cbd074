package main

import (
	"github.com/spf13/cobra"

	"formease/internal/cdp"
)

func newTargetsCommand(a *app) *cobra.Command {
	var (
		devtoolsURL string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "列出浏览器中的页面目标",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if devtoolsURL == "" {
				devtoolsURL = a.cfg.CDP.DevToolsURL
			}
			targets, err := cdp.New(devtoolsURL, a.log).ListTargets(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), targets)
			}
			renderTargets(cmd.OutOrStdout(), targets)
			return nil
		},
	}
	cmd.Flags().StringVar(&devtoolsURL, "devtools", "", "DevTools 地址，默认取配置 cdp.devToolsURL")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}
