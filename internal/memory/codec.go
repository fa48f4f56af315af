package memory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/bparpette/MistralHackathon/internal/vectorstore"
)

// Payload keys stored alongside each point.
const (
	FieldID               = "memory_id"
	FieldContent          = "content"
	FieldOwnerID          = "owner_id"
	FieldWorkspaceID      = "workspace_id"
	FieldCategory         = "category"
	FieldTags             = "tags"
	FieldVisibility       = "visibility"
	FieldConfidence       = "confidence"
	FieldVerifiers        = "verifiers"
	FieldInteractionCount = "interaction_count"
	FieldCreatedAt        = "created_at"
	FieldRelatedIDs       = "related_ids"
	FieldVersion          = "version"
)

// Payload renders m as the flat string payload stored in the index.
func (m *Memory) Payload() map[string]string {
	return map[string]string{
		FieldID:               m.ID,
		FieldContent:          m.Content,
		FieldOwnerID:          m.OwnerID,
		FieldWorkspaceID:      m.WorkspaceID,
		FieldCategory:         m.Category,
		FieldTags:             encodeList(m.Tags),
		FieldVisibility:       string(m.Visibility),
		FieldConfidence:       strconv.FormatFloat(m.Confidence, 'f', -1, 64),
		FieldVerifiers:        encodeList(m.Verifiers),
		FieldInteractionCount: strconv.FormatInt(m.InteractionCount, 10),
		FieldCreatedAt:        m.CreatedAt.UTC().Format(time.RFC3339Nano),
		FieldRelatedIDs:       encodeList(m.RelatedIDs),
		FieldVersion:          strconv.FormatInt(m.Version, 10),
	}
}

func toPoint(m *Memory) vectorstore.Point {
	return vectorstore.Point{
		ID:      m.ID,
		Vector:  append([]float32(nil), m.Embedding...),
		Payload: m.Payload(),
	}
}

func fromPoint(p *vectorstore.Point) (*Memory, error) {
	pl := p.Payload
	m := &Memory{
		ID:          pl[FieldID],
		Content:     pl[FieldContent],
		Embedding:   append([]float32(nil), p.Vector...),
		OwnerID:     pl[FieldOwnerID],
		WorkspaceID: pl[FieldWorkspaceID],
		Category:    pl[FieldCategory],
		Visibility:  Visibility(pl[FieldVisibility]),
	}
	if m.ID == "" {
		m.ID = p.ID
	}

	var err error
	if m.Confidence, err = strconv.ParseFloat(pl[FieldConfidence], 64); err != nil {
		return nil, fmt.Errorf("decode %s of %s: %w", FieldConfidence, m.ID, err)
	}
	if m.InteractionCount, err = parseInt(pl[FieldInteractionCount]); err != nil {
		return nil, fmt.Errorf("decode %s of %s: %w", FieldInteractionCount, m.ID, err)
	}
	if m.Version, err = parseInt(pl[FieldVersion]); err != nil {
		return nil, fmt.Errorf("decode %s of %s: %w", FieldVersion, m.ID, err)
	}
	if m.CreatedAt, err = time.Parse(time.RFC3339Nano, pl[FieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("decode %s of %s: %w", FieldCreatedAt, m.ID, err)
	}
	if m.Tags, err = decodeList(pl[FieldTags]); err != nil {
		return nil, fmt.Errorf("decode %s of %s: %w", FieldTags, m.ID, err)
	}
	if m.Verifiers, err = decodeList(pl[FieldVerifiers]); err != nil {
		return nil, fmt.Errorf("decode %s of %s: %w", FieldVerifiers, m.ID, err)
	}
	if m.RelatedIDs, err = decodeList(pl[FieldRelatedIDs]); err != nil {
		return nil, fmt.Errorf("decode %s of %s: %w", FieldRelatedIDs, m.ID, err)
	}
	return m, nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func decodeList(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}
