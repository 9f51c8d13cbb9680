package study

import (
	"fmt"
	"regexp"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// PartType identifies the kind of a source material part.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// ChatMessage is one entry of a study's transcript. Entries are append-only;
// only the trailing model message of an in-flight turn is mutated, by
// concatenating streamed fragments onto its content.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SourceMaterialPart is one normalized unit of input content. Content holds
// literal text for text parts and a base64 data URL for image parts.
type SourceMaterialPart struct {
	Type     PartType `json:"type"`
	Content  string   `json:"content"`
	MimeType string   `json:"mimeType,omitempty"`
}

// SourceMaterial groups a study's ordered input parts. At most one part has
// type text at any time; text edits replace it in place.
type SourceMaterial struct {
	Parts    []SourceMaterialPart `json:"parts"`
	FileName string               `json:"fileName,omitempty"`
}

// TextPartIndex returns the position of the single text part, or -1.
func (m SourceMaterial) TextPartIndex() int {
	for i, p := range m.Parts {
		if p.Type == PartText {
			return i
		}
	}
	return -1
}

// Study is the aggregate root: a body of source material, the synthesis
// generated from it, and the chat transcript about that synthesis.
type Study struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	SourceMaterial SourceMaterial `json:"sourceMaterial"`
	Synthesis      string         `json:"synthesis"`
	ChatHistory    []ChatMessage  `json:"chatHistory"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Clone returns a deep copy whose transcript and source parts share no
// backing storage with the receiver. Streamed fragments mutate the trailing
// transcript entry in place, so handing out the original slices would let
// readers observe writes happening under the store's lock.
func (s Study) Clone() Study {
	out := s
	if s.ChatHistory != nil {
		out.ChatHistory = append([]ChatMessage(nil), s.ChatHistory...)
	}
	if s.SourceMaterial.Parts != nil {
		out.SourceMaterial.Parts = append([]SourceMaterialPart(nil), s.SourceMaterial.Parts...)
	}
	return out
}

// Validate rejects payloads whose tagged fields carry unknown variants.
// Persistence treats an invalid collection as absent rather than propagating
// unrecognized tags into the store.
func (s Study) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("study has empty id")
	}
	for _, p := range s.SourceMaterial.Parts {
		if p.Type != PartText && p.Type != PartImage {
			return fmt.Errorf("study %s: unknown part type %q", s.ID, p.Type)
		}
	}
	for _, m := range s.ChatHistory {
		if m.Role != RoleUser && m.Role != RoleModel {
			return fmt.Errorf("study %s: unknown message role %q", s.ID, m.Role)
		}
	}
	return nil
}

var defaultNamePattern = regexp.MustCompile(`^New Study \d+$`)

// DefaultName builds the placeholder name assigned to the n-th new study.
func DefaultName(n int) string {
	return fmt.Sprintf("New Study %d", n)
}

// IsDefaultName reports whether name still carries the placeholder form.
// Auto-titling after a synthesis may only overwrite default names; a name the
// user chose is never replaced.
func IsDefaultName(name string) bool {
	return defaultNamePattern.MatchString(name)
}
