package syncengine

import (
	"fmt"
	"time"

	"github.com/Dantrux22/no-border-app-sub000/internal/store"
)

// PostRecord is the remote wire shape at posts/{id}: a strict subset of
// the local post row. Media, likes and saves never leave the device.
type PostRecord struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Body          *string    `json:"body,omitempty"`
	RepostOf      *string    `json:"repostOf,omitempty"`
	Latitude      *float64   `json:"latitude,omitempty"`
	Longitude     *float64   `json:"longitude,omitempty"`
	LocationLabel *string    `json:"locationLabel,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
}

// Validate checks the fields downsync cannot default.
func (r *PostRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	return nil
}

func toRecord(p *store.Post) *PostRecord {
	r := &PostRecord{
		ID:            p.ID,
		UserID:        p.UserID,
		Body:          strPtr(p.Body),
		RepostOf:      strPtr(p.RepostOf),
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		LocationLabel: strPtr(p.LocationLabel),
	}
	if !p.CreatedAt.IsZero() {
		t := p.CreatedAt
		r.CreatedAt = &t
	}
	return r
}

func (r *PostRecord) toPost() *store.Post {
	p := &store.Post{
		ID:            r.ID,
		UserID:        r.UserID,
		Body:          strVal(r.Body),
		RepostOf:      strVal(r.RepostOf),
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		LocationLabel: strVal(r.LocationLabel),
	}
	// Null remote timestamps default to now at insert time.
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	return p
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
