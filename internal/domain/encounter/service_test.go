package encounter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/woundnote/woundnote/internal/platform/objstore"
	"github.com/woundnote/woundnote/internal/platform/treepatch"
)

type mockExtractor struct {
	note     StructuredNote
	noteErr  error
	patch    []treepatch.Operation
	patchErr error
	lastTree map[string]interface{}
}

func (m *mockExtractor) ExtractNote(_ context.Context, _ string) (StructuredNote, error) {
	return m.note, m.noteErr
}

func (m *mockExtractor) ExtractPatch(_ context.Context, current map[string]interface{}, _ string) ([]treepatch.Operation, error) {
	m.lastTree = current
	return m.patch, m.patchErr
}

type mockTranscriber struct {
	text string
	err  error
}

func (m *mockTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return m.text, m.err
}

func testService(t *testing.T, ext *mockExtractor, tr *mockTranscriber, opts ...Option) *Service {
	t.Helper()
	if ext == nil {
		ext = &mockExtractor{}
	}
	if tr == nil {
		tr = &mockTranscriber{}
	}
	seq := 0
	base := []Option{
		WithClock(func() time.Time {
			return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		}),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	}
	return NewService(NewMemoryStore(), ext, tr, zerolog.Nop(), append(base, opts...)...)
}

func TestCreateBooked(t *testing.T) {
	svc := testService(t, nil, nil)
	e, err := svc.CreateBooked(context.Background(), PatientIdentity{PatientName: "John Doe"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.AppointmentID != "id-1" || e.RecordID != "id-2" {
		t.Errorf("ids = %q, %q", e.AppointmentID, e.RecordID)
	}
	if e.Status != StatusBooked || e.Version != 1 {
		t.Errorf("status = %v, version = %d", e.Status, e.Version)
	}
	if len(e.History) != 0 {
		t.Errorf("fresh booking has %d history entries", len(e.History))
	}

	stored, err := svc.Get(context.Background(), e.AppointmentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.PatientInfo.PatientName != "John Doe" {
		t.Errorf("stored name = %q", stored.PatientInfo.PatientName)
	}
}

func TestIngestInitialDictation(t *testing.T) {
	ext := &mockExtractor{note: StructuredNote{
		Wounds:        []Wound{heelWound()},
		TreatmentPlan: "offload and follow up weekly",
	}}
	svc := testService(t, ext, nil)
	ctx := context.Background()

	booked, err := svc.CreateBooked(ctx, PatientIdentity{PatientName: "John Doe"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	e, err := svc.IngestInitialDictation(ctx, booked.AppointmentID, "patient has a heel wound")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if e.Version != 1 {
		t.Errorf("version = %d, want 1 (initial dictation does not bump)", e.Version)
	}
	if e.Status != StatusRecordingSaved {
		t.Errorf("status = %v, want Recording Saved", e.Status)
	}
	if len(e.History) != 1 {
		t.Fatalf("history = %d entries, want 1", len(e.History))
	}
	entry := e.History[0]
	if entry.Kind != KindInitialDictation {
		t.Errorf("entry kind = %q", entry.Kind)
	}
	if entry.Transcript != "patient has a heel wound" {
		t.Errorf("entry transcript = %q", entry.Transcript)
	}
	if len(entry.Snapshot.Wounds) != 1 || entry.Snapshot.Wounds[0].Location != "left heel" {
		t.Errorf("snapshot = %+v", entry.Snapshot)
	}
}

func TestIngestAddendum(t *testing.T) {
	ext := &mockExtractor{note: StructuredNote{Wounds: []Wound{heelWound()}}}
	svc := testService(t, ext, nil)
	ctx := context.Background()

	booked, _ := svc.CreateBooked(ctx, PatientIdentity{PatientName: "John Doe"})
	if _, err := svc.IngestInitialDictation(ctx, booked.AppointmentID, "initial"); err != nil {
		t.Fatalf("initial: %v", err)
	}

	ext.patch = []treepatch.Operation{
		{Op: "replace", Path: "/wounds/0/max_depth", Value: "0.3 cm"},
		{Op: "add", Path: "/wounds/-", Value: map[string]interface{}{
			"number": "2", "location": "right ankle",
		}},
	}
	e, err := svc.IngestAddendum(ctx, booked.AppointmentID, "depth is 0.3, new wound on right ankle")
	if err != nil {
		t.Fatalf("addendum: %v", err)
	}
	if e.Version != 2 {
		t.Errorf("version = %d, want 2", e.Version)
	}
	if len(e.Wounds) != 2 {
		t.Errorf("wounds = %d, want 2", len(e.Wounds))
	}
	if len(e.History) != 2 {
		t.Fatalf("history = %d entries, want 2", len(e.History))
	}
	if e.History[1].Kind != KindAddendum || len(e.History[1].Patches) != 2 {
		t.Errorf("addendum entry = %+v", e.History[1])
	}

	// the extractor was shown the structural view, not the whole aggregate
	if _, ok := ext.lastTree["history"]; ok {
		t.Error("history exposed to the extractor")
	}
	if _, ok := ext.lastTree["wounds"]; !ok {
		t.Error("wounds missing from the extractor view")
	}
}

func TestIngestAddendumEmptyPatchIsNoOp(t *testing.T) {
	ext := &mockExtractor{note: StructuredNote{Wounds: []Wound{heelWound()}}}
	svc := testService(t, ext, nil)
	ctx := context.Background()

	booked, _ := svc.CreateBooked(ctx, PatientIdentity{PatientName: "John Doe"})
	if _, err := svc.IngestInitialDictation(ctx, booked.AppointmentID, "initial"); err != nil {
		t.Fatalf("initial: %v", err)
	}

	ext.patch = nil
	e, err := svc.IngestAddendum(ctx, booked.AppointmentID, "no changes today")
	if err != nil {
		t.Fatalf("addendum: %v", err)
	}
	if e.Version != 1 {
		t.Errorf("version = %d, want 1", e.Version)
	}
	if len(e.History) != 1 {
		t.Errorf("history = %d entries, want 1", len(e.History))
	}
}

func TestIngestInitialDictationExtractorFailure(t *testing.T) {
	ext := &mockExtractor{noteErr: errors.New("model unavailable")}
	svc := testService(t, ext, nil)
	ctx := context.Background()

	booked, _ := svc.CreateBooked(ctx, PatientIdentity{PatientName: "John Doe"})
	_, err := svc.IngestInitialDictation(ctx, booked.AppointmentID, "transcript")
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if ee.Stage != "note extraction" {
		t.Errorf("stage = %q", ee.Stage)
	}

	// the failed ingest must not have touched the record
	stored, _ := svc.Get(ctx, booked.AppointmentID)
	if stored.Status != StatusBooked || len(stored.History) != 0 {
		t.Errorf("record mutated on failure: %+v", stored)
	}
}

func TestDeleteOnlyWhileBooked(t *testing.T) {
	ext := &mockExtractor{note: StructuredNote{Wounds: []Wound{heelWound()}}}
	svc := testService(t, ext, nil)
	ctx := context.Background()

	booked, _ := svc.CreateBooked(ctx, PatientIdentity{PatientName: "John Doe"})
	if err := svc.Delete(ctx, booked.AppointmentID); err != nil {
		t.Fatalf("delete while booked: %v", err)
	}
	if _, err := svc.Get(ctx, booked.AppointmentID); !errors.Is(err, ErrNotFound) {
		t.Errorf("record survived delete: %v", err)
	}

	second, _ := svc.CreateBooked(ctx, PatientIdentity{PatientName: "Jane Roe"})
	if _, err := svc.IngestInitialDictation(ctx, second.AppointmentID, "note"); err != nil {
		t.Fatalf("initial: %v", err)
	}
	if err := svc.Delete(ctx, second.AppointmentID); !errors.Is(err, ErrConflict) {
		t.Errorf("delete after dictation: got %v, want ErrConflict", err)
	}
}

func TestDeleteUnknown(t *testing.T) {
	svc := testService(t, nil, nil)
	if err := svc.Delete(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestReschedule(t *testing.T) {
	svc := testService(t, nil, nil)
	ctx := context.Background()

	booked, _ := svc.CreateBooked(ctx, PatientIdentity{PatientName: "John Doe"})
	e, err := svc.Reschedule(ctx, booked.AppointmentID, "03/15/2025")
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if e.PatientInfo.DateOfService != "03/15/2025" {
		t.Errorf("date = %q", e.PatientInfo.DateOfService)
	}
	if e.Version != 1 || len(e.History) != 0 {
		t.Errorf("administrative change bumped version or wrote history: %+v", e)
	}
}

func TestAdvanceStatus(t *testing.T) {
	ext := &mockExtractor{note: StructuredNote{Wounds: []Wound{heelWound()}}}
	svc := testService(t, ext, nil)
	ctx := context.Background()

	booked, _ := svc.CreateBooked(ctx, PatientIdentity{PatientName: "John Doe"})
	if _, err := svc.IngestInitialDictation(ctx, booked.AppointmentID, "note"); err != nil {
		t.Fatalf("initial: %v", err)
	}

	e, err := svc.AdvanceStatus(ctx, booked.AppointmentID, StatusSentToQA)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if e.Status != StatusSentToQA {
		t.Errorf("status = %v", e.Status)
	}

	if _, err := svc.AdvanceStatus(ctx, booked.AppointmentID, StatusBooked); !errors.Is(err, ErrConflict) {
		t.Errorf("backward move: got %v, want ErrConflict", err)
	}
	if _, err := svc.AdvanceStatus(ctx, booked.AppointmentID, StatusSentToQA); !errors.Is(err, ErrConflict) {
		t.Errorf("same status: got %v, want ErrConflict", err)
	}
}

func TestProjectAtVersion(t *testing.T) {
	w := heelWound()
	w.MaxDepth = "0.5 cm"
	ext := &mockExtractor{note: StructuredNote{Wounds: []Wound{w}}}
	svc := testService(t, ext, nil)
	ctx := context.Background()

	booked, _ := svc.CreateBooked(ctx, PatientIdentity{PatientName: "John Doe"})
	if _, err := svc.IngestInitialDictation(ctx, booked.AppointmentID, "initial"); err != nil {
		t.Fatalf("initial: %v", err)
	}
	ext.patch = []treepatch.Operation{
		{Op: "replace", Path: "/wounds/0/max_depth", Value: "0.3 cm"},
	}
	if _, err := svc.IngestAddendum(ctx, booked.AppointmentID, "depth improved"); err != nil {
		t.Fatalf("addendum: %v", err)
	}

	proj, versions, err := svc.ProjectAtVersion(ctx, booked.AppointmentID, 1)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if proj.Version != 1 || proj.Wounds[0].MaxDepth != "0.5 cm" {
		t.Errorf("projection = v%d, depth %q", proj.Version, proj.Wounds[0].MaxDepth)
	}
	if len(versions) != 2 {
		t.Errorf("versions = %d entries, want 2", len(versions))
	}

	current, _, err := svc.ProjectAtVersion(ctx, booked.AppointmentID, 0)
	if err != nil {
		t.Fatalf("project current: %v", err)
	}
	if current.Version != 2 || current.Wounds[0].MaxDepth != "0.3 cm" {
		t.Errorf("current = v%d, depth %q", current.Version, current.Wounds[0].MaxDepth)
	}
}

func TestTranscript(t *testing.T) {
	ext := &mockExtractor{note: StructuredNote{Wounds: []Wound{heelWound()}}}
	svc := testService(t, ext, nil)
	ctx := context.Background()

	booked, _ := svc.CreateBooked(ctx, PatientIdentity{PatientName: "John Doe"})
	if _, err := svc.IngestInitialDictation(ctx, booked.AppointmentID, "heel wound noted"); err != nil {
		t.Fatalf("initial: %v", err)
	}

	text, err := svc.Transcript(ctx, booked.AppointmentID)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	want := "--- Initial Dictation [2025-03-01T10:00:00Z] ---\nheel wound noted\n"
	if text != want {
		t.Errorf("transcript = %q, want %q", text, want)
	}
}

func TestIngestInitialAudio(t *testing.T) {
	ext := &mockExtractor{note: StructuredNote{Wounds: []Wound{heelWound()}}}
	tr := &mockTranscriber{text: "spoken heel wound note"}
	audio := objstore.NewMemory()
	svc := testService(t, ext, tr, WithAudioStore(audio))
	ctx := context.Background()

	booked, _ := svc.CreateBooked(ctx, PatientIdentity{PatientName: "John Doe"})
	e, err := svc.IngestInitialAudio(ctx, booked.AppointmentID, []byte("RIFFdata"), "visit.wav")
	if err != nil {
		t.Fatalf("ingest audio: %v", err)
	}
	if e.Status != StatusRecordingSaved || len(e.History) != 1 {
		t.Errorf("record = %+v", e)
	}
	if e.History[0].Transcript != "spoken heel wound note" {
		t.Errorf("transcript = %q", e.History[0].Transcript)
	}

	key := fmt.Sprintf("audio/%s/%d-visit.wav", booked.AppointmentID,
		time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli())
	if _, err := audio.Get(ctx, key); err != nil {
		t.Errorf("audio not archived under %s: %v", key, err)
	}
}

func TestIngestAudioRejectsEmptyPayload(t *testing.T) {
	svc := testService(t, nil, nil)
	_, err := svc.IngestInitialAudio(context.Background(), "a1", nil, "visit.wav")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestIngestAudioTranscriberFailure(t *testing.T) {
	tr := &mockTranscriber{err: errors.New("upstream timeout")}
	svc := testService(t, nil, tr)
	ctx := context.Background()

	booked, _ := svc.CreateBooked(ctx, PatientIdentity{PatientName: "John Doe"})
	_, err := svc.IngestInitialAudio(ctx, booked.AppointmentID, []byte("RIFFdata"), "visit.wav")
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if ee.Stage != "transcription" {
		t.Errorf("stage = %q", ee.Stage)
	}
}
