package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"carhack/internal/frame"
)

// PrintFrameHeader prints one frame line.
func PrintFrameHeader(w io.Writer, f frame.Frame, kind Kind) {
	idType := "Std"
	if f.Extended {
		idType = "Ext"
	}
	fmt.Fprintf(w, "ID:0x%s(%s) [%s] Data[%d]: %X\n", f.IDString(), idType, kind, len(f.Data), f.Data)
}

// PrintGrouped prints frames grouped by CAN ID and sorted by timestamp.
// Frames whose kind is in hide are skipped.
func PrintGrouped(w io.Writer, frames []FrameInfo, hide ...Kind) {
	hidden := make(map[Kind]bool, len(hide))
	for _, k := range hide {
		hidden[k] = true
	}

	grouped := make(map[uint32][]FrameInfo)
	for _, f := range frames {
		grouped[f.Frame.ID] = append(grouped[f.Frame.ID], f)
	}

	ids := make([]uint32, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fmt.Fprintln(w, "===================================================")
	fmt.Fprintln(w, "FRAMES GROUPED BY CAN ID")
	fmt.Fprintln(w, "===================================================")

	for _, id := range ids {
		frameList := grouped[id]

		sort.SliceStable(frameList, func(i, j int) bool {
			if frameList[i].Frame.Timestamp == frameList[j].Frame.Timestamp {
				return frameList[i].SequenceNum < frameList[j].SequenceNum
			}
			return frameList[i].Frame.Timestamp < frameList[j].Frame.Timestamp
		})

		var filtered []FrameInfo
		for _, f := range frameList {
			if !hidden[f.Kind] {
				filtered = append(filtered, f)
			}
		}
		if len(filtered) == 0 {
			continue
		}

		fmt.Fprintf(w, "\nCAN ID: 0x%s (%d frames)\n", filtered[0].Frame.IDString(), len(filtered))
		fmt.Fprintln(w, strings.Repeat("-", 60))

		for _, f := range filtered {
			tsStr := strconv.FormatFloat(f.Frame.Timestamp, 'f', 6, 64)
			fmt.Fprintf(w, "  [%s #%d] ", tsStr, f.SequenceNum)
			PrintFrameHeader(w, f.Frame, f.Kind)
		}
	}

	fmt.Fprintln(w, "\n===================================================")
}
