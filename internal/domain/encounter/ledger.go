package encounter

import (
	"fmt"
	"strings"
	"time"

	"github.com/woundnote/woundnote/internal/platform/treepatch"
)

// VersionInfo is one row of the derived version index shown next to a
// rendered note.
type VersionInfo struct {
	Version   int       `json:"version"`
	Label     string    `json:"label"`
	Kind      string    `json:"type,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// SnapshotOf captures the encounter's mutable fields as they stand now.
func SnapshotOf(e *Encounter) Snapshot {
	return Snapshot{
		PatientInfo: e.PatientInfo.Clone(),
		Wounds:      cloneWounds(e.Wounds),
		Comments:    e.ProviderComments,
		Plan:        e.TreatmentPlan,
		Status:      e.Status,
	}
}

// AppendHistory records a dictation event. The snapshot is taken after the
// event's mutation, so every entry is self-contained for point-in-time reads.
// History only grows; nothing ever rewrites or truncates it.
func AppendHistory(e *Encounter, kind, transcript string, patches []treepatch.Operation, now time.Time) {
	e.History = append(e.History, HistoryEntry{
		Timestamp:  now.UTC(),
		Kind:       kind,
		Transcript: transcript,
		Version:    e.Version,
		Patches:    patches,
		Snapshot:   SnapshotOf(e),
	})
}

// VersionList derives the display index of all recorded versions, newest
// first. Legacy entries written before version numbers existed get a number
// from their position in the history.
func VersionList(e *Encounter) []VersionInfo {
	if len(e.History) == 0 {
		return []VersionInfo{{
			Version: e.Version,
			Label:   fmt.Sprintf("v%d — Current", e.Version),
		}}
	}
	out := make([]VersionInfo, 0, len(e.History))
	for idx := len(e.History) - 1; idx >= 0; idx-- {
		entry := e.History[idx]
		v := entry.Version
		if v == 0 {
			v = idx + 1
		}
		kindLabel := "Addendum"
		if entry.Kind == KindInitialDictation {
			kindLabel = "Initial"
		}
		timeStr := "—"
		if !entry.Timestamp.IsZero() {
			timeStr = entry.Timestamp.Format("2006-01-02 15:04")
		}
		out = append(out, VersionInfo{
			Version:   v,
			Label:     fmt.Sprintf("v%d — %s (%s)", v, kindLabel, timeStr),
			Kind:      entry.Kind,
			Timestamp: entry.Timestamp,
		})
	}
	return out
}

// Reconstruct projects the encounter as it stood at the given version. It is
// a read-side projection over the stored snapshots: the returned copy has the
// requested version's content while the full history rides along untouched.
// Requesting the current version is the identity projection; an unknown
// version silently yields the current state.
func Reconstruct(e *Encounter, version int) *Encounter {
	out := e.Clone()
	if version == e.Version {
		return out
	}
	for idx, entry := range e.History {
		v := entry.Version
		if v == 0 {
			v = idx + 1
		}
		if v != version {
			continue
		}
		out.PatientInfo = entry.Snapshot.PatientInfo.Clone()
		out.Wounds = cloneWounds(entry.Snapshot.Wounds)
		out.ProviderComments = entry.Snapshot.Comments
		out.TreatmentPlan = entry.Snapshot.Plan
		if entry.Snapshot.Status != "" {
			out.Status = entry.Snapshot.Status
		}
		out.Version = version
		break
	}
	return out
}

// FullTranscript concatenates every recorded transcript with a header naming
// the entry kind and time.
func FullTranscript(e *Encounter) string {
	var parts []string
	for _, entry := range e.History {
		if entry.Transcript == "" {
			continue
		}
		label := kindTitle(entry.Kind)
		ts := ""
		if !entry.Timestamp.IsZero() {
			ts = entry.Timestamp.Format(time.RFC3339)
		}
		parts = append(parts, fmt.Sprintf("--- %s [%s] ---\n%s\n", label, ts, entry.Transcript))
	}
	return strings.Join(parts, "\n")
}

func kindTitle(kind string) string {
	switch kind {
	case KindInitialDictation:
		return "Initial Dictation"
	case KindAddendum:
		return "Addendum"
	case "":
		return "Dictation"
	}
	words := strings.Split(strings.ReplaceAll(kind, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
