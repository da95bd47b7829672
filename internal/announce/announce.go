// Package announce relays session findings outward to the voice tool
// and the GUI through the control-file channel.
package announce

import (
	"fmt"

	"github.com/prospect-mining/prospect/internal/control"
)

// FileAnnouncer publishes announcements as atomic control files. Write
// failures are swallowed: speech is best-effort and must never stall
// or crash the monitoring loop.
type FileAnnouncer struct {
	dir string
}

// NewFileAnnouncer returns an announcer publishing into dir.
func NewFileAnnouncer(dir string) *FileAnnouncer {
	return &FileAnnouncer{dir: dir}
}

// ProspectorHit publishes a speakable line for the find and flips the
// GUI to the prospector tab.
func (a *FileAnnouncer) ProspectorHit(material string, pct float64) {
	_ = control.Write(a.dir, "announce", fmt.Sprintf("%s %.0f percent", material, pct))
	_ = control.Write(a.dir, "tab", "prospector")
}

// SessionState publishes lifecycle changes for the GUI.
func (a *FileAnnouncer) SessionState(state string) {
	_ = control.Write(a.dir, "state", state)
}
