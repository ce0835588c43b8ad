// Package project manages the on-disk project workspace: a projects root
// with one directory per project, a small JSON state file tracking the
// current selection, and the single "active" subtitle per project.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultName is the project every workspace starts with; it cannot be
// deleted.
const DefaultName = "default"

const stateFileName = ".state.json"

var (
	ErrExists   = errors.New("project already exists")
	ErrNotFound = errors.New("project not found")
)

// Context is the resolved view of the projects root.
type Context struct {
	Root string // projects root directory
	Name string // current project name
	Dir  string // current project directory
}

type state struct {
	CurrentProject string `json:"current_project"`
}

func statePath(root string) string {
	return filepath.Join(root, stateFileName)
}

func loadState(root string) state {
	st := state{CurrentProject: DefaultName}
	data, err := os.ReadFile(statePath(root))
	if err != nil {
		return st
	}
	// A corrupt state file falls back to the default project.
	_ = json.Unmarshal(data, &st)
	if st.CurrentProject == "" {
		st.CurrentProject = DefaultName
	}
	return st
}

func saveState(root string, st state) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statePath(root), data, 0644)
}

// ensureStructure creates the standard project skeleton.
func ensureStructure(dir string) error {
	for _, sub := range []string{
		filepath.Join("raw_materials", "lyric"),
		filepath.Join("raw_materials", "song"),
		filepath.Join("raw_materials", "videos"),
		filepath.Join("output", "temp", "subtitles"),
	} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return err
		}
	}
	return nil
}

// Current bootstraps the projects root if needed and returns the current
// project context. A selection pointing at a removed directory resets to the
// default project.
func Current(root string) (Context, error) {
	if err := ensureStructure(filepath.Join(root, DefaultName)); err != nil {
		return Context{}, err
	}

	st := loadState(root)
	dir := filepath.Join(root, st.CurrentProject)
	if _, err := os.Stat(dir); err != nil {
		st.CurrentProject = DefaultName
		dir = filepath.Join(root, DefaultName)
		if err := saveState(root, st); err != nil {
			return Context{}, err
		}
	}
	return Context{Root: root, Name: st.CurrentProject, Dir: dir}, nil
}

// List returns all project names, sorted.
func List(root string) ([]string, error) {
	if _, err := Current(root); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Create makes a new project with the standard skeleton.
func Create(root, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `\/:*?"<>|`) {
		return "", fmt.Errorf("invalid project name %q", name)
	}
	if _, err := Current(root); err != nil {
		return "", err
	}
	dir := filepath.Join(root, name)
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("%w: %s", ErrExists, name)
	}
	if err := ensureStructure(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// Switch makes name the current project.
func Switch(root, name string) error {
	if _, err := Current(root); err != nil {
		return err
	}
	dir := filepath.Join(root, name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return saveState(root, state{CurrentProject: name})
}

// Delete removes a project and its contents, returning the name of the
// project that is current afterwards. The default project is protected.
func Delete(root, name string) (string, error) {
	if name == DefaultName {
		return "", fmt.Errorf("default project cannot be deleted")
	}
	ctx, err := Current(root)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if ctx.Name == name {
		if err := saveState(root, state{CurrentProject: DefaultName}); err != nil {
			return "", err
		}
		return DefaultName, nil
	}
	return ctx.Name, nil
}

// SubtitlesDir is where a project's processed subtitles live.
func SubtitlesDir(projectDir string) string {
	return filepath.Join(projectDir, "output", "temp", "subtitles")
}

func activePath(projectDir string) string {
	return filepath.Join(SubtitlesDir(projectDir), "active.srt")
}

// SetActiveSubtitle copies sourcePath over the project's single usable
// subtitle, removing any other .srt files, and returns the active path.
func SetActiveSubtitle(projectDir, sourcePath string) (string, error) {
	dir := SubtitlesDir(projectDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", err
	}

	target := activePath(projectDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".srt") {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return "", err
	}
	return target, nil
}

// ActiveSubtitle returns the project's current subtitle path, or "" when
// none exists. When several .srt files are present the newest one wins: it
// is promoted to active.srt and the rest are cleaned up.
func ActiveSubtitle(projectDir string) string {
	dir := SubtitlesDir(projectDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	type candidate struct {
		path string
		mod  int64
	}
	var srts []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".srt") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		srts = append(srts, candidate{filepath.Join(dir, e.Name()), info.ModTime().UnixNano()})
	}
	if len(srts) == 0 {
		return ""
	}
	sort.Slice(srts, func(i, j int) bool { return srts[i].mod > srts[j].mod })

	active := activePath(projectDir)
	if srts[0].path != active {
		if _, err := SetActiveSubtitle(projectDir, srts[0].path); err != nil {
			return ""
		}
		return active
	}
	for _, c := range srts[1:] {
		os.Remove(c.path)
	}
	return active
}
