package injector

import (
	"context"
	"os"
	"time"

	"github.com/iofault/fi/internal/globmatch"
)

// AttrOverrideConfig names the fields to replace on a matching getattr
// reply. A nil pointer means "leave this field unchanged."
type AttrOverrideConfig struct {
	Path   string
	Ino    *uint64
	Size   *uint64
	Nlink  *uint32
	Mode   *os.FileMode
	Uid    *uint32
	Gid    *uint32
	Rdev   *uint32
	Flags  *uint32
	Blocks *uint64
	Atime  *time.Time
	Mtime  *time.Time
	Ctime  *time.Time
	Crtime *time.Time

	// Kind sets the type bits of Mode (file/dir/symlink/...) when Mode
	// itself isn't separately overridden; Mode, if also given, wins
	// outright since it already carries a full type+permission value.
	Kind *os.FileMode
}

// AttrOverride replaces specific attribute fields on every reply whose
// path matches, leaving unspecified fields untouched (spec.md §4.H
// "Attribute Override Injector"). It never gates the underlying operation.
type AttrOverride struct {
	cfg AttrOverrideConfig
}

func NewAttrOverride(cfg AttrOverrideConfig) *AttrOverride {
	return &AttrOverride{cfg: cfg}
}

func (a *AttrOverride) Inject(context.Context, Method, string) error { return nil }

func (a *AttrOverride) InjectAttr(attr *Attr, path string) {
	if a.cfg.Path != "" && !globmatch.Match(a.cfg.Path, path) {
		return
	}
	c := &a.cfg
	if c.Ino != nil {
		attr.Ino = *c.Ino
	}
	if c.Size != nil {
		attr.Size = *c.Size
	}
	if c.Nlink != nil {
		attr.Nlink = *c.Nlink
	}
	if c.Kind != nil {
		attr.Mode = (attr.Mode &^ os.ModeType) | (*c.Kind & os.ModeType)
	}
	if c.Mode != nil {
		attr.Mode = *c.Mode
	}
	if c.Uid != nil {
		attr.Uid = *c.Uid
	}
	if c.Gid != nil {
		attr.Gid = *c.Gid
	}
	if c.Rdev != nil {
		attr.Rdev = *c.Rdev
	}
	if c.Flags != nil {
		attr.Flags = *c.Flags
	}
	if c.Blocks != nil {
		attr.Blocks = *c.Blocks
	}
	if c.Atime != nil {
		attr.Atime = *c.Atime
	}
	if c.Mtime != nil {
		attr.Mtime = *c.Mtime
	}
	if c.Ctime != nil {
		attr.Ctime = *c.Ctime
	}
	if c.Crtime != nil {
		attr.Crtime = *c.Crtime
	}
}
