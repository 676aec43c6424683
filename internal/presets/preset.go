package presets

import (
	"errors"
	"regexp"
)

// Kind discriminates the stored payload of a preset.
type Kind string

const (
	// KindText is a plain text reply.
	KindText Kind = "text"
	// KindPhoto is a photo reply referenced by Telegram file ID.
	KindPhoto Kind = "photo"
)

// Preset is a named canned reply owned by a single user.
type Preset struct {
	Name    string `db:"name" json:"-"`
	Kind    Kind   `db:"kind" json:"type"`
	Content string `db:"content" json:"content,omitempty"`
	FileID  string `db:"file_id" json:"file_id,omitempty"`
	Caption string `db:"caption" json:"caption,omitempty"`
}

var (
	// ErrNotFound reports that no preset exists under the requested name.
	ErrNotFound = errors.New("preset not found")
	// ErrCorrupted reports a stored record whose payload cannot be interpreted.
	ErrCorrupted = errors.New("preset data corrupted")
	// ErrInvalidName reports a name outside the allowed charset or length.
	ErrInvalidName = errors.New("invalid preset name")
	// ErrReservedName reports a clash with a built-in command name.
	ErrReservedName = errors.New("preset name is reserved")
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)

// reservedNames are built-in command names presets may never shadow.
var reservedNames = map[string]struct{}{
	"start":   {},
	"help":    {},
	"whoami":  {},
	"set":     {},
	"cancel":  {},
	"delete":  {},
	"mycmds":  {},
	"deposit": {},
}

// ValidateName checks a candidate preset name against charset, length
// and the reserved command list. Extra reserved names (e.g. commands
// registered by the host bot) may be supplied by the caller.
func ValidateName(name string, extraReserved map[string]struct{}) error {
	if !nameRe.MatchString(name) {
		return ErrInvalidName
	}
	if _, ok := reservedNames[name]; ok {
		return ErrReservedName
	}
	if extraReserved != nil {
		if _, ok := extraReserved[name]; ok {
			return ErrReservedName
		}
	}
	return nil
}

// Valid reports whether the preset payload matches its kind.
func (p Preset) Valid() bool {
	switch p.Kind {
	case KindText:
		return p.Content != ""
	case KindPhoto:
		return p.FileID != ""
	default:
		return false
	}
}
