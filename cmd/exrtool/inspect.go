package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/woozymasta/exr"
)

func runInspect(cmd *cobra.Command, args []string) error {
	meta, err := exr.ReadMetaDataFile(args[0], libOptions()...)
	if err != nil {
		return err
	}
	printMetaData(os.Stdout, args[0], meta)
	return nil
}

func printMetaData(w io.Writer, path string, meta *exr.MetaData) {
	req := meta.Requirements
	fmt.Fprintf(w, "%s: version %d, %d part(s)", path, req.Version, len(meta.Headers))
	if req.Multipart {
		fmt.Fprint(w, ", multipart")
	}
	if req.Deep {
		fmt.Fprint(w, ", deep")
	}
	if req.LongNames {
		fmt.Fprint(w, ", long names")
	}
	fmt.Fprintln(w)

	for i := range meta.Headers {
		h := &meta.Headers[i]
		fmt.Fprintf(w, "\npart %d", i)
		if h.Name != "" {
			fmt.Fprintf(w, " %q", h.Name)
		}
		fmt.Fprintf(w, " (%s)\n", h.Type)
		fmt.Fprintf(w, "  dataWindow:    %s (%dx%d)\n", h.DataWindow, h.DataWindow.Width(), h.DataWindow.Height())
		fmt.Fprintf(w, "  displayWindow: %s\n", h.DisplayWindow)
		fmt.Fprintf(w, "  compression:   %s\n", h.Compression)
		fmt.Fprintf(w, "  lineOrder:     %s\n", h.LineOrder)
		if h.Tiles != nil {
			fmt.Fprintf(w, "  tiles:         %dx%d %s %s\n", h.Tiles.XSize, h.Tiles.YSize, h.Tiles.Mode, h.Tiles.Rounding)
		}
		if count, err := h.BlockCount(); err == nil {
			fmt.Fprintf(w, "  chunks:        %d\n", count)
		}
		fmt.Fprintln(w, "  channels:")
		for _, ch := range h.Channels {
			fmt.Fprintf(w, "    %-12s %s", ch.Name, ch.Type)
			if ch.Linear {
				fmt.Fprint(w, " linear")
			}
			fmt.Fprintln(w)
		}
		if h.Attributes.Len() > 0 {
			fmt.Fprintln(w, "  attributes:")
			for name, value := range h.Attributes.All() {
				fmt.Fprintf(w, "    %-20s %-14s %s\n", name, value.TypeName(), formatValue(value))
			}
		}
	}
}

// formatValue renders short values in full and summarizes bulky ones.
func formatValue(v exr.AttributeValue) string {
	switch v := v.(type) {
	case exr.Raw:
		return fmt.Sprintf("%d bytes", len(v.Data))
	case exr.Preview:
		return fmt.Sprintf("%dx%d", v.Width, v.Height)
	case exr.Text:
		return fmt.Sprintf("%q", string(v))
	case exr.TimeCode:
		return fmt.Sprintf("%02d:%02d:%02d:%02d", v.Hours(), v.Minutes(), v.Seconds(), v.Frame())
	default:
		return fmt.Sprintf("%v", v)
	}
}
