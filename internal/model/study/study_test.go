package study

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIsDefaultName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"New Study 1", true},
		{"New Study 42", true},
		{"New Study", false},
		{"New Study ", false},
		{"New Study one", false},
		{"Photosynthesis", false},
		{"My New Study 1", false},
		{"New Study 1 (copy)", false},
	}

	for _, c := range cases {
		if got := IsDefaultName(c.name); got != c.want {
			t.Errorf("IsDefaultName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDefaultNameRoundTrip(t *testing.T) {
	if !IsDefaultName(DefaultName(7)) {
		t.Fatalf("DefaultName(7) = %q not recognized as default", DefaultName(7))
	}
}

func TestValidateAcceptsKnownTags(t *testing.T) {
	s := Study{
		ID:   "s1",
		Name: "Biology",
		SourceMaterial: SourceMaterial{
			Parts: []SourceMaterialPart{
				{Type: PartText, Content: "Photosynthesis basics", MimeType: "text/plain"},
				{Type: PartImage, Content: "data:image/png;base64,AAAA", MimeType: "image/png"},
			},
		},
		ChatHistory: []ChatMessage{
			{Role: RoleUser, Content: "What is chlorophyll?"},
			{Role: RoleModel, Content: "A pigment."},
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.Validate(); err != nil {
		t.Fatalf("Validate err: %v", err)
	}
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	s := Study{
		ID:          "s1",
		ChatHistory: []ChatMessage{{Role: "assistant", Content: "hi"}},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestValidateRejectsUnknownPartType(t *testing.T) {
	s := Study{
		ID: "s1",
		SourceMaterial: SourceMaterial{
			Parts: []SourceMaterialPart{{Type: "video", Content: "x"}},
		},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for unknown part type")
	}
}

func TestValidateRejectsEmptyID(t *testing.T) {
	if err := (Study{}).Validate(); err == nil {
		t.Fatal("expected error for empty id")
	}
}

// The persisted layout is consumed by other tools; field names are part of
// the storage contract and must not drift.
func TestStudyJSONFieldNames(t *testing.T) {
	s := Study{
		ID:   "s1",
		Name: "Biology",
		SourceMaterial: SourceMaterial{
			Parts:    []SourceMaterialPart{{Type: PartText, Content: "c", MimeType: "text/plain"}},
			FileName: "notes.txt",
		},
		Synthesis:   "S1",
		ChatHistory: []ChatMessage{{Role: RoleUser, Content: "q"}},
		CreatedAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal err: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Unmarshal err: %v", err)
	}

	for _, key := range []string{"id", "name", "sourceMaterial", "synthesis", "chatHistory", "createdAt"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing field %q in %s", key, raw)
		}
	}

	var material map[string]json.RawMessage
	if err := json.Unmarshal(fields["sourceMaterial"], &material); err != nil {
		t.Fatalf("Unmarshal sourceMaterial err: %v", err)
	}
	for _, key := range []string{"parts", "fileName"} {
		if _, ok := material[key]; !ok {
			t.Errorf("missing sourceMaterial field %q", key)
		}
	}
}

func TestTextPartIndex(t *testing.T) {
	m := SourceMaterial{Parts: []SourceMaterialPart{
		{Type: PartImage, Content: "data:image/png;base64,AAAA", MimeType: "image/png"},
		{Type: PartText, Content: "notes"},
	}}
	if got := m.TextPartIndex(); got != 1 {
		t.Fatalf("TextPartIndex = %d, want 1", got)
	}
	if got := (SourceMaterial{}).TextPartIndex(); got != -1 {
		t.Fatalf("TextPartIndex on empty = %d, want -1", got)
	}
}
