// Package term provides minimal terminal control for the rebuild cycle.
package term

import (
	"fmt"
	"io"
)

// Clear erases the screen and homes the cursor using ANSI escapes, so each
// rebuild cycle starts with fresh output.
func Clear(w io.Writer) {
	fmt.Fprint(w, "\x1b[2J\x1b[1;1H")
}
