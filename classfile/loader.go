package classfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
)

// Ext is the file extension of class images on the classpath.
const Ext = ".jbc"

// ErrNotFound reports that no classpath entry provides the class.
var ErrNotFound = errors.New("classfile: class not found")

// Loader finds and decodes class images on an ordered classpath. Internal
// class names use slash form (java/lang/Object); each maps to
// <dir>/<name>.jbc under the first classpath directory that has it.
type Loader struct {
	dirs  []string
	index *Index // optional classpath index cache
	log   commonlog.Logger
}

// NewLoader creates a loader over the given classpath directories.
func NewLoader(dirs []string) *Loader {
	return &Loader{
		dirs: dirs,
		log:  commonlog.GetLogger("javelin.loader"),
	}
}

// UseIndex attaches a classpath index cache consulted before directory
// probing. A nil index is allowed and disables caching.
func (l *Loader) UseIndex(ix *Index) { l.index = ix }

// Load finds, decodes, and returns the image for the named class.
func (l *Loader) Load(name string) (*ClassFile, error) {
	path, err := l.locate(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classfile: read %s: %w", path, err)
	}
	cf, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("classfile: %s: %w", path, err)
	}
	if cf.Name != name {
		return nil, fmt.Errorf("classfile: %s declares %q, expected %q", path, cf.Name, name)
	}
	l.log.Debugf("loaded %s from %s", name, path)
	return cf, nil
}

func (l *Loader) locate(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", fmt.Errorf("classfile: invalid class name %q", name)
	}
	if l.index != nil {
		if path, ok, err := l.index.Lookup(name); err != nil {
			l.log.Errorf("index lookup for %s: %v", name, err)
		} else if ok {
			if _, statErr := os.Stat(path); statErr == nil {
				return path, nil
			}
			// Stale entry; fall through to probing.
		}
	}
	rel := filepath.FromSlash(name) + Ext
	for _, dir := range l.dirs {
		path := filepath.Join(dir, rel)
		if _, err := os.Stat(path); err == nil {
			if l.index != nil {
				if err := l.index.Put(name, path); err != nil {
					l.log.Errorf("index update for %s: %v", name, err)
				}
			}
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s (classpath %v)", ErrNotFound, name, l.dirs)
}
