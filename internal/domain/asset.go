package domain

import "time"

// ImageAsset is a stored image binary. Generated assets carry a back-reference
// to the originating item and the generation timestamp; originals carry
// neither.
type ImageAsset struct {
	ID          string
	ItemID      *string
	StorageKey  string
	MIME        string
	Bytes       int64
	Generated   bool
	Prompt      string
	GeneratedAt *time.Time
	CreatedAt   time.Time
}

// GeneratedMedia is the mediator output prior to persistence. Exactly one of
// Data or SourceURL is expected to be populated.
type GeneratedMedia struct {
	Data      []byte
	SourceURL string
	MIME      string
	FileName  string
	Prompt    string
}
