package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sigweihq/traceledger/pkg/types"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSteps(w io.Writer, steps []types.Step) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTIME\tSTATUS\tLOCATION\tACTOR\tDESCRIPTION")
	for i, s := range steps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, s.Time().Format("2006-01-02 15:04:05"), s.Status, s.Location, s.Actor, s.Description)
	}
	return tw.Flush()
}
