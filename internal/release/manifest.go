package release

import (
	"fmt"
	"strings"
)

// ManifestName is the archive entry holding the manifest.
const ManifestName = "info.txt"

// Manifest describes a release archive.
type Manifest struct {
	Title     []string
	PartLabel string
	ProductID string
	Revision  string
	Commit    string // empty when unknown
}

// PartNumber is <ProductID>_<Revision>.
func (m Manifest) PartNumber() string {
	return m.ProductID + "_" + m.Revision
}

func (m Manifest) String() string {
	var b strings.Builder
	for _, line := range m.Title {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%s: %s\n", m.PartLabel, m.PartNumber())
	if m.Commit != "" {
		fmt.Fprintf(&b, "Commit: %s\n", m.Commit)
	} else {
		b.WriteString("Commit information unknown.")
	}
	return b.String()
}
