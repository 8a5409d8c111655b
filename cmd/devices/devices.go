package devices

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/replayclip/internal/mediacore/sources/malgo"
	"github.com/tphakala/replayclip/internal/mediacore/sources/screen"
)

// Command creates the devices command, which lists capture devices.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices and the primary display",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if rect, err := (screen.ScreenshotGrabber{}).Bounds(); err != nil {
				fmt.Fprintf(out, "Display: unavailable (%v)\n\n", err)
			} else {
				fmt.Fprintf(out, "Display: %dx%d at %d,%d\n\n", rect.Dx(), rect.Dy(), rect.Min.X, rect.Min.Y)
			}

			devices, err := malgo.ListDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(out, "No audio capture devices found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tNAME\tID\tDEFAULT")
			for _, d := range devices {
				def := ""
				if d.Default {
					def = "*"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.Index, d.Name, d.ID, def)
			}
			return w.Flush()
		},
	}
}
