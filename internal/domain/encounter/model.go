package encounter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/woundnote/woundnote/internal/platform/treepatch"
)

// Absent is the sentinel written for clinical attributes that were never
// dictated. Renderers rely on it to distinguish "not asked" from an empty
// answer, so it is stored literally rather than as null.
const Absent = "-"

// Status is the appointment lifecycle state. Values are the literal labels
// persisted by earlier versions of the system and must not change.
type Status string

const (
	StatusBooked         Status = "Booked"
	StatusRecordingSaved Status = "Recording Saved"
	StatusSentToQA       Status = "Sent to QA"
	StatusQACompleted    Status = "QA Completed"
	StatusDelivered      Status = "Delivered"
)

var statusRank = map[Status]int{
	StatusBooked:         0,
	StatusRecordingSaved: 1,
	StatusSentToQA:       2,
	StatusQACompleted:    3,
	StatusDelivered:      4,
}

// Valid reports whether s is one of the defined lifecycle states.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo reports whether moving from s to next is a forward
// progression. The lifecycle only moves forward.
func (s Status) CanAdvanceTo(next Status) bool {
	a, ok1 := statusRank[s]
	b, ok2 := statusRank[next]
	return ok1 && ok2 && b > a
}

// History entry kinds.
const (
	KindInitialDictation = "initial_dictation"
	KindAddendum         = "addendum"
)

// ---------------------------------------------------------------------------
// Patient identity
// ---------------------------------------------------------------------------

// PatientIdentity holds the demographic header of a note. Extraction may
// surface fields outside the canonical set; those ride in Extra and are
// round-tripped through JSON, with canonical fields taking precedence on a
// name collision.
type PatientIdentity struct {
	PatientName      string
	DOB              string
	DateOfService    string
	Physician        string
	Transcriptionist string
	Facility         string
	Extra            map[string]interface{}
}

var canonicalPatientKeys = map[string]bool{
	"patient_name":     true,
	"dob":              true,
	"date_of_service":  true,
	"physician":        true,
	"transcriptionist": true,
	"facility":         true,
}

func (p PatientIdentity) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"patient_name":     p.PatientName,
		"dob":              p.DOB,
		"date_of_service":  p.DateOfService,
		"physician":        p.Physician,
		"transcriptionist": p.Transcriptionist,
		"facility":         p.Facility,
	}
	for k, v := range p.Extra {
		if !canonicalPatientKeys[k] {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

func (p *PatientIdentity) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	p.PatientName = stringField(m, "patient_name", "")
	p.DOB = stringField(m, "dob", "")
	p.DateOfService = stringField(m, "date_of_service", "")
	p.Physician = stringField(m, "physician", "")
	p.Transcriptionist = stringField(m, "transcriptionist", "")
	p.Facility = stringField(m, "facility", "")
	p.Extra = nil
	for k, v := range m {
		if canonicalPatientKeys[k] || v == nil {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]interface{})
		}
		p.Extra[k] = v
	}
	return nil
}

// Clone returns a deep copy.
func (p PatientIdentity) Clone() PatientIdentity {
	out := p
	out.Extra = cloneExtras(p.Extra)
	return out
}

// ---------------------------------------------------------------------------
// Wound
// ---------------------------------------------------------------------------

// Wound is one wound's clinical attributes as dictated. Number is the
// clinician-assigned ordinal identity within the encounter, not a database
// key. Every other canonical attribute defaults to the Absent sentinel.
type Wound struct {
	Number           string
	MistTherapy      string
	Location         string
	Outcome          string
	Type             string
	Status           string
	Measurements     string
	AreaSqCm         string
	VolumeCuCm       string
	Tunnels          string
	MaxDepth         string
	Undermining      string
	StageGrade       string
	Drainage         string
	ExudateType      string
	Odor             string
	WoundMargin      string
	Periwound        string
	NecroticMaterial string
	Granulation      string
	TissueExposed    string
	Procedure        string
	ClinicalSummary  string
	TreatmentPlan    string
	Extra            map[string]interface{}
}

// canonicalWoundKeys is the fixed set of JSON keys owned by the typed
// attributes; anything else round-trips through Extra.
var canonicalWoundKeys = map[string]bool{
	"number": true, "mist_therapy": true, "location": true, "outcome": true,
	"type": true, "status": true, "measurements": true, "area_sq_cm": true,
	"volume_cu_cm": true, "tunnels": true, "max_depth": true,
	"undermining": true, "stage_grade": true, "drainage": true,
	"exudate_type": true, "odor": true, "wound_margin": true,
	"periwound": true, "necrotic_material": true, "granulation": true,
	"tissue_exposed": true, "procedure": true, "clinical_summary": true,
	"treatment_plan": true,
}

// NewWound returns a wound with every clinical attribute set to the sentinel.
func NewWound(number string) Wound {
	return Wound{
		Number:           number,
		MistTherapy:      Absent,
		Location:         Absent,
		Outcome:          Absent,
		Type:             Absent,
		Status:           Absent,
		Measurements:     Absent,
		AreaSqCm:         Absent,
		VolumeCuCm:       Absent,
		Tunnels:          Absent,
		MaxDepth:         Absent,
		Undermining:      Absent,
		StageGrade:       Absent,
		Drainage:         Absent,
		ExudateType:      Absent,
		Odor:             Absent,
		WoundMargin:      Absent,
		Periwound:        Absent,
		NecroticMaterial: Absent,
		Granulation:      Absent,
		TissueExposed:    Absent,
		Procedure:        Absent,
		ClinicalSummary:  Absent,
		TreatmentPlan:    Absent,
	}
}

func (w Wound) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"number":            w.Number,
		"mist_therapy":      w.MistTherapy,
		"location":          w.Location,
		"outcome":           w.Outcome,
		"type":              w.Type,
		"status":            w.Status,
		"measurements":      w.Measurements,
		"area_sq_cm":        w.AreaSqCm,
		"volume_cu_cm":      w.VolumeCuCm,
		"tunnels":           w.Tunnels,
		"max_depth":         w.MaxDepth,
		"undermining":       w.Undermining,
		"stage_grade":       w.StageGrade,
		"drainage":          w.Drainage,
		"exudate_type":      w.ExudateType,
		"odor":              w.Odor,
		"wound_margin":      w.WoundMargin,
		"periwound":         w.Periwound,
		"necrotic_material": w.NecroticMaterial,
		"granulation":       w.Granulation,
		"tissue_exposed":    w.TissueExposed,
		"procedure":         w.Procedure,
		"clinical_summary":  w.ClinicalSummary,
		"treatment_plan":    w.TreatmentPlan,
	}
	for k, v := range w.Extra {
		if !canonicalWoundKeys[k] {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

func (w *Wound) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	w.Number = stringField(m, "number", "")
	w.MistTherapy = stringField(m, "mist_therapy", Absent)
	w.Location = stringField(m, "location", Absent)
	w.Outcome = stringField(m, "outcome", Absent)
	w.Type = stringField(m, "type", Absent)
	w.Status = stringField(m, "status", Absent)
	w.Measurements = stringField(m, "measurements", Absent)
	w.AreaSqCm = stringField(m, "area_sq_cm", Absent)
	w.VolumeCuCm = stringField(m, "volume_cu_cm", Absent)
	w.Tunnels = stringField(m, "tunnels", Absent)
	w.MaxDepth = stringField(m, "max_depth", Absent)
	w.Undermining = stringField(m, "undermining", Absent)
	w.StageGrade = stringField(m, "stage_grade", Absent)
	w.Drainage = stringField(m, "drainage", Absent)
	w.ExudateType = stringField(m, "exudate_type", Absent)
	w.Odor = stringField(m, "odor", Absent)
	w.WoundMargin = stringField(m, "wound_margin", Absent)
	w.Periwound = stringField(m, "periwound", Absent)
	w.NecroticMaterial = stringField(m, "necrotic_material", Absent)
	w.Granulation = stringField(m, "granulation", Absent)
	w.TissueExposed = stringField(m, "tissue_exposed", Absent)
	w.Procedure = stringField(m, "procedure", Absent)
	w.ClinicalSummary = stringField(m, "clinical_summary", Absent)
	w.TreatmentPlan = stringField(m, "treatment_plan", Absent)
	w.Extra = nil
	for k, v := range m {
		if canonicalWoundKeys[k] || v == nil {
			continue
		}
		if w.Extra == nil {
			w.Extra = make(map[string]interface{})
		}
		w.Extra[k] = v
	}
	return nil
}

// Clone returns a deep copy.
func (w Wound) Clone() Wound {
	out := w
	out.Extra = cloneExtras(w.Extra)
	return out
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

// Snapshot is a full copy of the mutable encounter fields as they existed
// immediately after a history entry. It deliberately duplicates
// reconstructable state so that point-in-time reads never depend on
// replaying the patch chain.
type Snapshot struct {
	PatientInfo PatientIdentity `json:"patient_info"`
	Wounds      []Wound         `json:"wounds"`
	Comments    string          `json:"comments"`
	Plan        string          `json:"plan"`
	Status      Status          `json:"status"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.PatientInfo = s.PatientInfo.Clone()
	out.Wounds = cloneWounds(s.Wounds)
	return out
}

// HistoryEntry records one dictation event. Entries are immutable once
// appended. Version 0 marks legacy records written before version numbers
// existed; the ledger backfills those by position.
type HistoryEntry struct {
	Timestamp  time.Time             `json:"timestamp"`
	Kind       string                `json:"type"`
	Transcript string                `json:"transcript"`
	Version    int                   `json:"version,omitempty"`
	Patches    []treepatch.Operation `json:"patches,omitempty"`
	Snapshot   Snapshot              `json:"snapshot"`
}

// Clone returns a deep copy.
func (h HistoryEntry) Clone() HistoryEntry {
	out := h
	out.Snapshot = h.Snapshot.Clone()
	if h.Patches != nil {
		out.Patches = make([]treepatch.Operation, len(h.Patches))
		copy(out.Patches, h.Patches)
	}
	return out
}

// ---------------------------------------------------------------------------
// Encounter aggregate
// ---------------------------------------------------------------------------

// Encounter is the versioned clinical record for one patient visit.
// AppointmentID is the stable external identifier; RecordID is the secondary
// clinical-record identifier. Version starts at 1 and increases by exactly 1
// on every successful mutation.
type Encounter struct {
	AppointmentID    string          `json:"appointment_id"`
	RecordID         string          `json:"encounter_id"`
	Status           Status          `json:"status"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	PatientInfo      PatientIdentity `json:"patient_information"`
	Wounds           []Wound         `json:"wounds"`
	ProviderComments string          `json:"provider_comments"`
	TreatmentPlan    string          `json:"treatment_plan"`
	History          []HistoryEntry  `json:"history"`
}

// Clone returns a deep copy of the aggregate, history included.
func (e *Encounter) Clone() *Encounter {
	out := *e
	out.PatientInfo = e.PatientInfo.Clone()
	out.Wounds = cloneWounds(e.Wounds)
	if e.History != nil {
		out.History = make([]HistoryEntry, len(e.History))
		for i, h := range e.History {
			out.History[i] = h.Clone()
		}
	}
	return &out
}

// Validate checks the aggregate's domain invariants.
func (e *Encounter) Validate() error {
	if e.AppointmentID == "" {
		return fmt.Errorf("appointment_id is required")
	}
	if !e.Status.Valid() {
		return fmt.Errorf("invalid status: %q", e.Status)
	}
	if e.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", e.Version)
	}
	for i, w := range e.Wounds {
		if w.Number == "" {
			return fmt.Errorf("wound %d: number is required", i)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func stringField(m map[string]interface{}, key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// extraction occasionally emits bare numbers for string attributes
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	case bool:
		return fmt.Sprintf("%t", s)
	default:
		return fallback
	}
}

func cloneExtras(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	data, _ := json.Marshal(m)
	var out map[string]interface{}
	_ = json.Unmarshal(data, &out)
	return out
}

func cloneWounds(ws []Wound) []Wound {
	if ws == nil {
		return nil
	}
	out := make([]Wound, len(ws))
	for i, w := range ws {
		out[i] = w.Clone()
	}
	return out
}
