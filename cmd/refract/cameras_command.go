package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"refract/internal/recording"
)

func newCamerasCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "cameras <recording>",
		Short:       "List the camera streams in a recording",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := recording.Open(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			rows := make([][]string, 0)
			for _, desc := range reader.Cameras() {
				projection := "none"
				if model, ok := reader.Calibration(desc.ID); ok {
					projection = string(model.Projection)
				}
				rows = append(rows, []string{
					desc.ID,
					string(desc.Channel),
					fmt.Sprintf("%dx%d", desc.Width, desc.Height),
					fmt.Sprintf("%d", desc.FrameCount),
					projection,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Camera", "Channel", "Resolution", "Frames", "Calibration"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}
