package handlers

import (
	"fmt"
	"io"
	"strings"

	"github.com/imamik/tracksync/internal/templatename"
)

// Parse prints the classification of each template name. Unrecognized names
// are reported, not returned as an error.
func Parse(out io.Writer, names []string) error {
	st := newStyles(isTerminal(out))

	var b strings.Builder
	for _, name := range names {
		info, err := templatename.Parse(name)
		if err != nil {
			b.WriteString(fmt.Sprintf("%s\n  %s\n", name, st.bad.Render("unrecognized")))
			continue
		}

		b.WriteString(name)
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  group:     %s\n", info.Group))
		b.WriteString(fmt.Sprintf("  stream:    %s\n", info.Stream))
		if !info.Datestamp.IsZero() {
			b.WriteString(fmt.Sprintf("  datestamp: %s\n", info.Datestamp.Format("2006-01-02")))
		}
		if templatename.Excluded(info.Group) {
			b.WriteString("  " + st.dim.Render("not tracked (excluded group)") + "\n")
		}
	}

	_, err := fmt.Fprint(out, b.String())
	return err
}
