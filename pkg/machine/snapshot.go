package machine

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/zurustar/awvm/pkg/video"
	"github.com/zurustar/awvm/pkg/vm"
)

// snapshotVersion is bumped whenever Snapshot changes incompatibly.
const snapshotVersion = 1

// ErrSnapshotVersion is returned for snapshots of another format version.
var ErrSnapshotVersion = errors.New("unsupported snapshot version")

// Snapshot is a saved machine state. Music and channel state are not
// saved; restoring silences the sound hardware.
type Snapshot struct {
	Version int         `cbor:"1,keyasint"`
	Frames  uint64      `cbor:"2,keyasint"`
	VM      vm.State    `cbor:"3,keyasint"`
	Video   video.State `cbor:"4,keyasint"`
}

// snapshotEncMode encodes snapshots deterministically.
var snapshotEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("machine: failed to create CBOR enc mode: %v", err))
	}
	snapshotEncMode = em
}

// Snapshot captures the current state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Version: snapshotVersion,
		Frames:  m.frames,
		VM:      m.vm.State(),
		Video:   m.video.State(),
	}
}

// Restore replaces the machine state with s.
func (m *Machine) Restore(s Snapshot) error {
	if s.Version != snapshotVersion {
		return fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	m.sound.StopAll()
	// the VM reloads the part banks, which the video restore depends on
	if err := m.vm.Restore(s.VM); err != nil {
		return fmt.Errorf("restore vm: %w", err)
	}
	if err := m.video.Restore(s.Video); err != nil {
		return fmt.Errorf("restore video: %w", err)
	}
	m.frames = s.Frames
	m.drainPendingMarks()
	m.log.Info("State restored", "part", fmt.Sprintf("0x%04X", s.VM.Part), "frames", s.Frames)
	return nil
}

// drainPendingMarks discards marks queued before a restore.
func (m *Machine) drainPendingMarks() {
	for {
		select {
		case <-m.marks:
		default:
			return
		}
	}
}

// SaveState writes the current state to w as CBOR.
func (m *Machine) SaveState(w io.Writer) error {
	data, err := snapshotEncMode.Marshal(m.Snapshot())
	if err != nil {
		return fmt.Errorf("machine: marshal snapshot: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("machine: write snapshot: %w", err)
	}
	return nil
}

// LoadState reads a CBOR snapshot from r and restores it.
func (m *Machine) LoadState(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("machine: read snapshot: %w", err)
	}
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("machine: unmarshal snapshot: %w", err)
	}
	return m.Restore(s)
}
