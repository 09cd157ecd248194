package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxtor/voxtor/pkg/output"
	"github.com/voxtor/voxtor/pkg/output/subscribers"
)

// setupOutputPipeline builds the event stream commands emit user-facing
// output through. JSON mode swaps the human renderer for the machine one;
// verbosity attaches the diagnostic subscriber on top.
func setupOutputPipeline(cmd *cobra.Command) output.Output {
	stream := output.NewOutputEventStream()

	outputFormat, _ := cmd.Flags().GetString("output")
	if strings.EqualFold(outputFormat, "json") {
		stream.Subscribe(subscribers.NewJSONFormatter(os.Stdout))
	} else {
		stream.Subscribe(subscribers.NewHumanFormatter(os.Stdout, os.Stderr, true))
	}

	verbosityCount, _ := cmd.Flags().GetCount("verbosity")
	if verbosityCount > 0 {
		maxLevel := output.OutputLevel(verbosityCount)
		if maxLevel > output.LevelTrace {
			maxLevel = output.LevelTrace
		}
		stream.Subscribe(subscribers.NewDiagnosticSubscriber(maxLevel, os.Stderr))
	}

	return output.NewDefaultOutput(stream)
}

// renderValue prints v as indented JSON when --output json is set,
// otherwise runs the text renderer.
func renderValue(cmd *cobra.Command, v any, text func()) error {
	format, _ := cmd.Flags().GetString("output")
	if strings.EqualFold(format, "json") {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}
	text()
	return nil
}
