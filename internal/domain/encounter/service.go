package encounter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/woundnote/woundnote/internal/platform/objstore"
)

// Service is the encounter lifecycle controller. It owns the
// read-modify-write cycle: every mutation loads the aggregate, applies the
// change, records history and persists, all under a per-id lock so
// concurrent updates to the same encounter serialize.
type Service struct {
	store       Store
	extractor   Extractor
	transcriber Transcriber
	audio       objstore.ObjectStore
	locks       *keyedMutex
	log         zerolog.Logger
	now         func() time.Time
	newID       func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// WithAudioStore enables archiving of raw audio uploads.
func WithAudioStore(store objstore.ObjectStore) Option {
	return func(s *Service) { s.audio = store }
}

func NewService(store Store, extractor Extractor, transcriber Transcriber, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		extractor:   extractor,
		transcriber: transcriber,
		locks:       newKeyedMutex(),
		log:         log.With().Str("component", "encounter").Logger(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBooked registers a new appointment. The encounter starts at version
// 1 with empty clinical content and no history; the first history entry is
// written by the initial dictation.
func (s *Service) CreateBooked(ctx context.Context, info PatientIdentity) (*Encounter, error) {
	now := s.now().UTC()
	e := &Encounter{
		AppointmentID: s.newID(),
		RecordID:      s.newID(),
		Status:        StatusBooked,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
		PatientInfo:   info,
		Wounds:        []Wound{},
	}
	if err := s.store.Put(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info().Str("appointment_id", e.AppointmentID).Msg("appointment booked")
	return e, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Encounter, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Encounter, error) {
	return s.store.List(ctx)
}

// Delete removes an encounter. Only allowed while the appointment is still
// Booked; once clinical content exists the record is permanent.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	e, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.Status != StatusBooked {
		return fmt.Errorf("%w: cannot delete encounter in status %q", ErrConflict, e.Status)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("appointment_id", id).Msg("appointment deleted")
	return nil
}

// Reschedule updates the date of service. Administrative change: no history
// entry and no version bump.
func (s *Service) Reschedule(ctx context.Context, id, dateOfService string) (*Encounter, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	e.PatientInfo.DateOfService = dateOfService
	if err := s.persist(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// IngestInitialDictation extracts a full structured note from the transcript
// and replaces the encounter's clinical content with it. The version is not
// bumped: the initial dictation establishes what version 1 contains.
func (s *Service) IngestInitialDictation(ctx context.Context, id, transcript string) (*Encounter, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	note, err := s.extractor.ExtractNote(ctx, transcript)
	if err != nil {
		return nil, asExtractionError("note extraction", err)
	}
	ApplyFull(e, note)
	e.Status = StatusRecordingSaved
	AppendHistory(e, KindInitialDictation, transcript, nil, s.now())
	if err := s.persist(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("appointment_id", id).
		Int("version", e.Version).
		Int("wounds", len(e.Wounds)).
		Msg("initial dictation ingested")
	return e, nil
}

// IngestAddendum extracts a patch batch from the transcript against the
// current record and applies it. A dictation that changes nothing is a
// benign no-op: no history entry, no version bump, no write.
func (s *Service) IngestAddendum(ctx context.Context, id, transcript string) (*Encounter, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tree, err := TreeView(e)
	if err != nil {
		return nil, err
	}
	ops, err := s.extractor.ExtractPatch(ctx, tree, transcript)
	if err != nil {
		return nil, asExtractionError("patch extraction", err)
	}
	applied, err := ApplyPatch(e, ops)
	if err != nil {
		return nil, err
	}
	if !applied {
		s.log.Info().Str("appointment_id", id).Msg("addendum changed nothing")
		return e, nil
	}
	AppendHistory(e, KindAddendum, transcript, ops, s.now())
	if err := s.persist(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("appointment_id", id).
		Int("version", e.Version).
		Int("operations", len(ops)).
		Msg("addendum applied")
	return e, nil
}

// IngestInitialAudio transcribes the recording and runs the initial
// dictation path on the resulting text.
func (s *Service) IngestInitialAudio(ctx context.Context, id string, audio []byte, filename string) (*Encounter, error) {
	transcript, err := s.transcribe(ctx, id, audio, filename)
	if err != nil {
		return nil, err
	}
	return s.IngestInitialDictation(ctx, id, transcript)
}

// IngestAddendumAudio transcribes the recording and runs the addendum path
// on the resulting text.
func (s *Service) IngestAddendumAudio(ctx context.Context, id string, audio []byte, filename string) (*Encounter, error) {
	transcript, err := s.transcribe(ctx, id, audio, filename)
	if err != nil {
		return nil, err
	}
	return s.IngestAddendum(ctx, id, transcript)
}

func (s *Service) transcribe(ctx context.Context, id string, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: no audio payload", ErrNotFound)
	}
	if s.audio != nil {
		key := fmt.Sprintf("audio/%s/%d-%s", id, s.now().UTC().UnixMilli(), filename)
		if err := s.audio.Put(ctx, key, audio); err != nil {
			// the archive is best effort; transcription still proceeds
			s.log.Warn().Err(err).Str("appointment_id", id).Msg("audio archive failed")
		}
	}
	transcript, err := s.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		return "", asExtractionError("transcription", err)
	}
	return transcript, nil
}

// ProjectAtVersion returns the encounter as it stood at the requested
// version together with the derived version index. version <= 0 means the
// current version.
func (s *Service) ProjectAtVersion(ctx context.Context, id string, version int) (*Encounter, []VersionInfo, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if version <= 0 || version == e.Version {
		return e, VersionList(e), nil
	}
	proj := Reconstruct(e, version)
	return proj, VersionList(proj), nil
}

// Transcript returns the concatenation of all recorded dictation text.
func (s *Service) Transcript(ctx context.Context, id string) (string, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return FullTranscript(e), nil
}

// AdvanceStatus moves the lifecycle forward. Moving backward or standing
// still is a conflict; the lifecycle never rewinds.
func (s *Service) AdvanceStatus(ctx context.Context, id string, next Status) (*Encounter, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.Status.CanAdvanceTo(next) {
		return nil, fmt.Errorf("%w: cannot move from %q to %q", ErrConflict, e.Status, next)
	}
	e.Status = next
	if err := s.persist(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("appointment_id", id).
		Str("status", string(next)).
		Msg("status advanced")
	return e, nil
}

func (s *Service) persist(ctx context.Context, e *Encounter) error {
	e.UpdatedAt = s.now().UTC()
	return s.store.Put(ctx, e)
}

func asExtractionError(stage string, err error) error {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &ExtractionError{Stage: stage, Err: err}
}
