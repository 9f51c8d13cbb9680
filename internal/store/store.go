package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simply-study/backend/internal/model/study"
)

// Persister is the durable sink for the study collection. Save fully
// overwrites the stored collection. Write failures are reported to the
// caller but never block or revert an in-memory mutation.
type Persister interface {
	SaveStudies(studies []study.Study) error
}

// Store is the authoritative in-memory collection of studies. Every mutation
// funnels through its operations and is synchronously handed to the
// Persister. Ordering is most-recent-first; the active pointer is a transient
// selection and is not persisted.
type Store struct {
	mu        sync.RWMutex
	studies   []study.Study
	activeID  string
	persister Persister
	log       *zap.Logger
}

// New builds a store seeded with an already-loaded collection.
func New(initial []study.Study, persister Persister, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		studies:   append([]study.Study(nil), initial...),
		persister: persister,
		log:       log,
	}
	if len(s.studies) > 0 {
		s.activeID = s.studies[0].ID
	}
	return s
}

// ListAll returns a snapshot of the collection in order. No side effects.
func (s *Store) ListAll() []study.Study {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Get looks up a study by id.
func (s *Store) Get(id string) (study.Study, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.studies {
		if st.ID == id {
			return st.Clone(), true
		}
	}
	return study.Study{}, false
}

// Count returns the number of studies.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.studies)
}

// ActiveID returns the id of the selected study, or "" when none is selected.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Active returns the selected study.
func (s *Store) Active() (study.Study, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID == "" {
		return study.Study{}, false
	}
	for _, st := range s.studies {
		if st.ID == s.activeID {
			return st.Clone(), true
		}
	}
	return study.Study{}, false
}

// SetActive selects a study. Unknown ids are ignored.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.studies {
		if st.ID == id {
			s.activeID = id
			return
		}
	}
}

// Create constructs a new empty study, inserts it at the front of the
// collection, persists, and makes it the active study. When name is empty the
// next placeholder name is assigned. Always succeeds.
func (s *Store) Create(name string) study.Study {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		name = study.DefaultName(len(s.studies) + 1)
	}

	st := study.Study{
		ID:          uuid.NewString(),
		Name:        name,
		ChatHistory: []study.ChatMessage{},
		CreatedAt:   time.Now().UTC(),
	}

	s.studies = append([]study.Study{st}, s.studies...)
	s.activeID = st.ID
	s.persistLocked()
	return st.Clone()
}

// Delete removes the study with the given id. Absent ids are a no-op, not an
// error. When the removed study was active, the selection moves to the new
// first element, or to none when the collection is empty.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}

	s.studies = append(s.studies[:idx], s.studies[idx+1:]...)
	if s.activeID == id {
		if len(s.studies) > 0 {
			s.activeID = s.studies[0].ID
		} else {
			s.activeID = ""
		}
	}
	s.persistLocked()
}

// Update replaces the study whose id matches, by identity of id only. When no
// id matches the collection is unchanged.
func (s *Store) Update(st study.Study) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(st.ID)
	if idx < 0 {
		return
	}
	s.studies[idx] = st.Clone()
	s.persistLocked()
}

// Rename sets the display name of a study.
func (s *Store) Rename(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.studies[idx].Name = name
	s.persistLocked()
}

// AppendMessage appends a finalized message to the study's transcript.
func (s *Store) AppendMessage(id string, msg study.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.studies[idx].ChatHistory = append(s.studies[idx].ChatHistory, msg)
	s.persistLocked()
}

// StreamAppend folds one streamed fragment into the transcript: when the last
// entry is a model message the fragment is concatenated onto its content,
// otherwise a new model message holding the fragment is appended. Seeding a
// turn with an empty fragment and then appending every received fragment
// yields exactly one model message per turn regardless of fragment count.
// Persists after every fragment.
func (s *Store) StreamAppend(id, fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}

	history := s.studies[idx].ChatHistory
	if n := len(history); n > 0 && history[n-1].Role == study.RoleModel {
		history[n-1].Content += fragment
	} else {
		history = append(history, study.ChatMessage{Role: study.RoleModel, Content: fragment})
	}
	s.studies[idx].ChatHistory = history
	s.persistLocked()
}

// DiscardEmptyTrailingModelMessage removes the trailing model message when
// its content is still empty, i.e. a turn ended before the first fragment
// arrived. Safe and idempotent: calling it on a finalized or empty transcript
// changes nothing, and it persists only when a removal occurred.
func (s *Store) DiscardEmptyTrailingModelMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}

	history := s.studies[idx].ChatHistory
	n := len(history)
	if n == 0 || history[n-1].Role != study.RoleModel || history[n-1].Content != "" {
		return
	}
	s.studies[idx].ChatHistory = history[:n-1]
	s.persistLocked()
}

// SetSourceParts replaces the study's source material with freshly ingested
// parts. An empty fileName keeps the previously remembered one.
func (s *Store) SetSourceParts(id string, parts []study.SourceMaterialPart, fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	if fileName == "" {
		fileName = s.studies[idx].SourceMaterial.FileName
	}
	s.studies[idx].SourceMaterial = study.SourceMaterial{
		Parts:    append([]study.SourceMaterialPart(nil), parts...),
		FileName: fileName,
	}
	s.persistLocked()
}

// SetTextPart edits the single text part in place: existing content is
// replaced, empty content removes the part, and a part is appended when none
// existed. Image parts are untouched.
func (s *Store) SetTextPart(id, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}

	material := s.studies[idx].SourceMaterial
	textIdx := material.TextPartIndex()
	switch {
	case textIdx >= 0 && content == "":
		material.Parts = append(material.Parts[:textIdx], material.Parts[textIdx+1:]...)
	case textIdx >= 0:
		material.Parts[textIdx].Content = content
	case content != "":
		material.Parts = append(material.Parts, study.SourceMaterialPart{
			Type:     study.PartText,
			Content:  content,
			MimeType: "text/plain",
		})
	default:
		return
	}
	s.studies[idx].SourceMaterial = material
	s.persistLocked()
}

// ApplySynthesis installs a freshly generated synthesis: the previous one is
// fully replaced, the chat transcript is cleared, and the study is renamed to
// the generated title only while it still carries a placeholder name.
func (s *Store) ApplySynthesis(id, synthesis, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}

	s.studies[idx].Synthesis = synthesis
	s.studies[idx].ChatHistory = []study.ChatMessage{}
	if title != "" && study.IsDefaultName(s.studies[idx].Name) {
		s.studies[idx].Name = title
	}
	s.persistLocked()
}

func (s *Store) indexLocked(id string) int {
	for i, st := range s.studies {
		if st.ID == id {
			return i
		}
	}
	return -1
}

// snapshotLocked deep-copies the collection. Shallow copies would keep the
// transcript and part slices shared with the store, and StreamAppend mutates
// the trailing transcript entry in place.
func (s *Store) snapshotLocked() []study.Study {
	out := make([]study.Study, len(s.studies))
	for i, st := range s.studies {
		out[i] = st.Clone()
	}
	return out
}

// persistLocked hands the current collection to the persister. Failures are
// logged and otherwise ignored: the user is never blocked by storage errors,
// at the accepted cost of losing the write.
func (s *Store) persistLocked() {
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveStudies(s.snapshotLocked()); err != nil {
		s.log.Error("failed to persist studies", zap.Error(err))
	}
}
