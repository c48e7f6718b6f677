package encounter

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/woundnote/woundnote/internal/platform/treepatch"
)

// StructuredNote is the payload an extractor produces from a full dictation.
// It carries the same clinical fields as the aggregate but no identity,
// status, version or history.
type StructuredNote struct {
	PatientInfo      PatientIdentity `json:"patient_information"`
	Wounds           []Wound         `json:"wounds"`
	ProviderComments string          `json:"provider_comments"`
	TreatmentPlan    string          `json:"treatment_plan"`
}

// structuralView is the patchable surface of an encounter. History, status,
// version and identity are deliberately outside it so that patches can never
// touch them.
type structuralView struct {
	PatientInfo PatientIdentity `json:"patient_info"`
	Wounds      []Wound         `json:"wounds"`
	Comments    string          `json:"comments"`
	Plan        string          `json:"plan"`
}

// TreeView converts the encounter's patchable fields to a schema-agnostic
// document tree.
func TreeView(e *Encounter) (map[string]interface{}, error) {
	v := structuralView{
		PatientInfo: e.PatientInfo,
		Wounds:      e.Wounds,
		Comments:    e.ProviderComments,
		Plan:        e.TreatmentPlan,
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode structural view: %w", err)
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode structural view: %w", err)
	}
	if tree["wounds"] == nil {
		tree["wounds"] = []interface{}{}
	}
	return tree, nil
}

// ApplyFull replaces the encounter's clinical content wholesale with the
// extracted note. Patient identity fields are merged, not replaced: a field
// the dictation did not cover keeps its booked value. The version is not
// bumped; a full dictation establishes the content of the current version.
func ApplyFull(e *Encounter, note StructuredNote) {
	mergePatientInfo(&e.PatientInfo, note.PatientInfo)
	e.Wounds = cloneWounds(note.Wounds)
	for i := range e.Wounds {
		if e.Wounds[i].Number == "" {
			e.Wounds[i].Number = strconv.Itoa(i + 1)
		}
		deriveMeasurements(&e.Wounds[i], nil)
	}
	e.ProviderComments = note.ProviderComments
	e.TreatmentPlan = note.TreatmentPlan
}

// ApplyPatch applies an RFC 6902 batch to the encounter's structural view,
// re-validates the result into the typed aggregate and bumps the version by
// exactly one. The batch is atomic: on any error the encounter is unchanged.
// An empty batch is a no-op and reports applied == false.
func ApplyPatch(e *Encounter, ops []treepatch.Operation) (applied bool, err error) {
	if len(ops) == 0 {
		return false, nil
	}
	if err := treepatch.Validate(ops); err != nil {
		return false, &PatchError{Reason: "malformed operation", Err: err}
	}
	tree, err := TreeView(e)
	if err != nil {
		return false, err
	}
	patched, err := treepatch.Apply(tree, ops)
	if err != nil {
		return false, &PatchError{Reason: "apply failed", Err: err}
	}
	view, err := parseStructuralView(patched)
	if err != nil {
		return false, err
	}

	prev := make(map[string]Wound, len(e.Wounds))
	for _, w := range e.Wounds {
		prev[w.Number] = w
	}

	e.PatientInfo = view.PatientInfo
	e.Wounds = view.Wounds
	e.ProviderComments = view.Comments
	e.TreatmentPlan = view.Plan
	for i := range e.Wounds {
		if p, ok := prev[e.Wounds[i].Number]; ok {
			deriveMeasurements(&e.Wounds[i], &p)
		} else {
			deriveMeasurements(&e.Wounds[i], nil)
		}
	}
	e.Version++
	return true, nil
}

func parseStructuralView(tree map[string]interface{}) (*structuralView, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, &PatchError{Reason: "result not encodable", Err: err}
	}
	var view structuralView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, &PatchError{Reason: "result does not match the record schema", Err: err}
	}
	for i, w := range view.Wounds {
		if w.Number == "" {
			return nil, &PatchError{Reason: fmt.Sprintf("wound %d lost its number", i)}
		}
	}
	return &view, nil
}

func mergePatientInfo(dst *PatientIdentity, src PatientIdentity) {
	merge := func(dst *string, src string) {
		if src != "" && src != Absent {
			*dst = src
		}
	}
	merge(&dst.PatientName, src.PatientName)
	merge(&dst.DOB, src.DOB)
	merge(&dst.DateOfService, src.DateOfService)
	merge(&dst.Physician, src.Physician)
	merge(&dst.Transcriptionist, src.Transcriptionist)
	merge(&dst.Facility, src.Facility)
	for k, v := range src.Extra {
		if dst.Extra == nil {
			dst.Extra = make(map[string]interface{})
		}
		dst.Extra[k] = v
	}
}

var dimNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// parseDims extracts the numeric dimensions from a measurements string such
// as "2.5 x 3 x 0.5 cm". It returns nil unless every x-separated segment
// carries a number.
func parseDims(measurements string) []float64 {
	if measurements == "" || measurements == Absent {
		return nil
	}
	parts := strings.FieldsFunc(measurements, func(r rune) bool {
		return r == 'x' || r == 'X' || r == '×'
	})
	if len(parts) < 2 {
		return nil
	}
	dims := make([]float64, 0, len(parts))
	for _, p := range parts {
		tok := dimNumber.FindString(p)
		if tok == "" {
			return nil
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil
		}
		dims = append(dims, v)
	}
	return dims
}

// deriveMeasurements recomputes area and volume for one wound after an
// update. Derived values are only ever produced from a complete
// length x width x depth triple present in this update; stale values are
// never carried forward. An area or volume the update itself supplied
// explicitly wins over the computation. prev is the wound's state before the
// update, nil when the whole wound is new content.
func deriveMeasurements(w *Wound, prev *Wound) {
	if prev != nil && w.Measurements == prev.Measurements {
		// measurements untouched by this update, derived values stand
		return
	}
	explicitArea := w.AreaSqCm != "" && w.AreaSqCm != Absent &&
		(prev == nil || w.AreaSqCm != prev.AreaSqCm)
	explicitVolume := w.VolumeCuCm != "" && w.VolumeCuCm != Absent &&
		(prev == nil || w.VolumeCuCm != prev.VolumeCuCm)

	dims := parseDims(w.Measurements)
	if len(dims) >= 3 {
		if !explicitArea {
			w.AreaSqCm = formatDerived(dims[0] * dims[1])
		}
		if !explicitVolume {
			w.VolumeCuCm = formatDerived(dims[0] * dims[1] * dims[2])
		}
		return
	}
	if !explicitArea {
		w.AreaSqCm = Absent
	}
	if !explicitVolume {
		w.VolumeCuCm = Absent
	}
}

func formatDerived(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
