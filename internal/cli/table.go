package cli

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/varietal/varietal/internal/types"
)

func printRecords(records []types.PackageRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Version", "Build", "Channel", "Subdir", "Size"})
	for _, r := range records {
		channel := r.Channel
		if channel == "" {
			channel = "__virtual__"
		}
		size := "-"
		if r.Size > 0 {
			size = humanize.Bytes(r.Size)
		}
		t.AppendRow(table.Row{r.Name, r.Version, r.Build, channel, r.Subdir, size})
	}
	t.SortBy([]table.SortBy{{Name: "Name", Mode: table.Asc}})
	t.Render()
}

func activationHint(prefix string) string {
	return "To activate this environment, run:\n\n    conda activate " + prefix + "\n"
}
