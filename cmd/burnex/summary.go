package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"burnex/internal/pipeline"
)

// 运行汇总（stdout，人读；结构化记账走日志）。

var (
	styleTitle   = lipgloss.NewStyle().Bold(true)
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleFail    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleSkip    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleBox     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	styleFailRow = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func renderSummary(w io.Writer, sum pipeline.Summary, elapsed time.Duration) {
	body := styleTitle.Render("运行汇总") + "\n" +
		fmt.Sprintf("发现     %4d\n", sum.Found) +
		fmt.Sprintf("%s %4d\n", styleSkip.Render("跳过    "), sum.Skipped) +
		fmt.Sprintf("处理     %4d\n", sum.Processed) +
		fmt.Sprintf("%s %4d\n", styleOK.Render("成功    "), sum.Succeeded) +
		fmt.Sprintf("%s %4d\n", styleFail.Render("失败    "), sum.Failed) +
		fmt.Sprintf("耗时     %s", elapsed.Round(time.Second))
	fmt.Fprintln(w, styleBox.Render(body))

	if sum.Failed == 0 {
		return
	}
	fmt.Fprintln(w, styleTitle.Render("失败明细"))
	for _, o := range sum.Outcomes {
		if o.Status != pipeline.StatusFailed {
			continue
		}
		fmt.Fprintln(w, styleFailRow.Render(fmt.Sprintf("  %-20s %s", o.ID, o.Reason)))
	}
}
