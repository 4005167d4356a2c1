package pd

import (
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/pd-runtime/engine"
	"github.com/wippyai/pd-runtime/errors"
)

// openPatch is the patch a Pd is running. temp is set for evaluated
// patches and removed on close.
type openPatch struct {
	handle engine.Patch
	path   string
	temp   string
}

// OpenPatch opens the patch file at path, closing any patch already open.
// A message in progress is abandoned.
func (p *Pd) OpenPatch(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(errors.PhasePatch); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Patch("resolve path", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return errors.Patch("path does not exist", abs, err)
	}

	defer p.activate().release()
	p.abandonMessage()
	if err := p.closePatchLocked(); err != nil {
		return err
	}
	return p.openLocked(abs, "")
}

// EvalPatch writes contents to a temporary file and opens it as a patch,
// closing any patch already open. The file is removed when the patch is
// closed.
func (p *Pd) EvalPatch(contents string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(errors.PhasePatch); err != nil {
		return err
	}

	defer p.activate().release()
	p.abandonMessage()
	if err := p.closePatchLocked(); err != nil {
		return err
	}

	f, err := os.CreateTemp("", "pdrt-*.pd")
	if err != nil {
		return errors.Patch("evaluate patch: create temp file", "", err)
	}
	name := f.Name()
	_, werr := f.WriteString(contents)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(name)
		if werr == nil {
			werr = cerr
		}
		return errors.Patch("evaluate patch: write temp file", name, werr)
	}
	if err := p.openLocked(name, name); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}

func (p *Pd) openLocked(path, temp string) error {
	h, err := p.eng.OpenPatch(filepath.Base(path), filepath.Dir(path))
	if err != nil {
		return errors.Patch("open patch", path, err)
	}
	p.patch = &openPatch{handle: h, path: path, temp: temp}
	p.log.Debug("patch opened", zap.String("path", path), zap.Int("dollar_zero", p.eng.DollarZero(h)))
	return nil
}

// ClosePatch closes the open patch. Without an open patch it does nothing.
func (p *Pd) ClosePatch() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(errors.PhasePatch); err != nil {
		return err
	}
	defer p.activate().release()
	return p.closePatchLocked()
}

// closePatchLocked expects the instance to be current.
func (p *Pd) closePatchLocked() error {
	if p.patch == nil {
		return nil
	}
	op := p.patch
	p.patch = nil
	p.eng.ClosePatch(op.handle)
	p.log.Debug("patch closed", zap.String("path", op.path))
	if op.temp != "" {
		if err := os.Remove(op.temp); err != nil && !os.IsNotExist(err) {
			return errors.Patch("remove evaluated patch file", op.temp, err)
		}
	}
	return nil
}

// PatchPath returns the path of the open patch, or "" when none is open.
func (p *Pd) PatchPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.patch == nil {
		return ""
	}
	return p.patch.path
}

// DollarZero returns the $0 of the open patch.
func (p *Pd) DollarZero() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.patch == nil {
		return 0, errors.NotFound(errors.PhasePatch, "open patch", "")
	}
	defer p.activate().release()
	return p.eng.DollarZero(p.patch.handle), nil
}

// AddSearchPath adds dir to the instance's search paths. Paths already
// added are skipped.
func (p *Pd) AddSearchPath(dir string) error {
	return p.AddSearchPaths(dir)
}

// AddSearchPaths adds every dir not already present, stopping at the first
// that does not exist.
func (p *Pd) AddSearchPaths(dirs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(errors.PhaseSearchDir); err != nil {
		return err
	}
	defer p.activate().release()
	for _, dir := range dirs {
		if slices.Contains(p.searchPaths, dir) {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			return errors.New(errors.PhaseSearchDir, errors.KindNotFound).
				Target(dir).Cause(err).Detail("search path does not exist").Build()
		}
		p.eng.AddSearchPath(dir)
		p.searchPaths = append(p.searchPaths, dir)
	}
	return nil
}

// ClearSearchPaths removes every search path.
func (p *Pd) ClearSearchPaths() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	defer p.activate().release()
	p.eng.ClearSearchPaths()
	p.searchPaths = nil
}

// SearchPaths returns the paths added through this Pd.
func (p *Pd) SearchPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.searchPaths)
}
