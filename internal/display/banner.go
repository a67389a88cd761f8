package display

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

const banner = `        _     _     _          _       _
 __   _(_) __| |___| |__  _ __(_)_ __ | | __
 \ \ / / |/ _` + "`" + ` / __| '_ \| '__| | '_ \| |/ /
  \ V /| | (_| \__ \ | | | |  | | | | |   <
   \_/ |_|\__,_|___/_| |_|_|  |_|_| |_|_|\_\
`

// PrintBanner prints the ASCII art banner and version line to w.
func PrintBanner(w io.Writer, version string) {
	color.New(color.FgHiMagenta, color.Bold).Fprint(w, banner)
	fmt.Fprintf(w, "  %s\n\n", color.New(color.Faint).Sprintf("v%s  batch HandBrake transcoder", version))
}
