package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cdpdoc "formease/internal/adapter/cdp"
	"formease/internal/adapter/htmldoc"
	"formease/internal/cdp"
	"formease/pkg/dom"
)

// pageFlags 页面来源：本地 HTML 文件或 DevTools 目标，二者取其一
type pageFlags struct {
	htmlFile    string
	outFile     string
	devtoolsURL string
	targetID    string
}

func (f *pageFlags) bind(cmd *cobra.Command, withOut bool) {
	cmd.Flags().StringVar(&f.htmlFile, "html", "", "本地 HTML 文件")
	cmd.Flags().StringVar(&f.devtoolsURL, "devtools", "", "DevTools 地址，默认取配置 cdp.devToolsURL")
	cmd.Flags().StringVar(&f.targetID, "target", "", "页面目标 ID，为空时使用第一个页面")
	if withOut {
		cmd.Flags().StringVar(&f.outFile, "out", "", "填写后的 HTML 输出文件（仅 --html）")
	}
}

// page 一个打开的文档及其收尾逻辑
type page struct {
	doc   dom.Document
	id    string
	close func(ctx context.Context, save bool) error
}

// openPage 按标志打开文档，未指定 --html 时附加浏览器目标
func (a *app) openPage(ctx context.Context, f *pageFlags) (*page, error) {
	if f.htmlFile != "" {
		return a.openHTML(f)
	}
	url := f.devtoolsURL
	if url == "" {
		url = a.cfg.CDP.DevToolsURL
	}
	mgr := cdp.New(url, a.log)
	sess, err := mgr.Attach(ctx, f.targetID)
	if err != nil {
		return nil, errors.Join(err, mgr.Close())
	}
	doc := cdpdoc.New(sess.Client.Runtime, "formease-"+uuid.NewString(), a.log)
	return &page{
		doc: doc,
		id:  sess.Target.ID,
		close: func(ctx context.Context, _ bool) error {
			return errors.Join(doc.Release(ctx), mgr.Close())
		},
	}, nil
}

func (a *app) openHTML(f *pageFlags) (*page, error) {
	in, err := os.Open(f.htmlFile)
	if err != nil {
		return nil, fmt.Errorf("open html %s: %w", f.htmlFile, err)
	}
	defer in.Close()
	doc, err := htmldoc.Parse(in)
	if err != nil {
		return nil, err
	}
	return &page{
		doc: doc,
		id:  f.htmlFile,
		close: func(_ context.Context, save bool) error {
			if !save || f.outFile == "" {
				return nil
			}
			out, err := os.Create(f.outFile)
			if err != nil {
				return fmt.Errorf("create %s: %w", f.outFile, err)
			}
			if err := doc.Render(out); err != nil {
				out.Close()
				return fmt.Errorf("render %s: %w", f.outFile, err)
			}
			a.log.Info("已写出填写结果", "file", f.outFile)
			return out.Close()
		},
	}, nil
}
