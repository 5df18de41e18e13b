package project

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Draft is the client-side project structure built once from an uploaded file
// list and edited by the user before submission. Files are grouped into
// systems by their top-level directory; DDL scripts are pulled into their own
// bucket. The draft lives only for the session: created at upload time,
// mutated by reclassification, discarded on confirm or delete-all.
type Draft struct {
	ProjectName string   `json:"projectName"`
	Systems     []System `json:"systems"`
	DDL         []string `json:"ddl"`
}

// System is one named group of source files.
type System struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

var ddlExtensions = map[string]struct{}{
	".sql": {},
	".ddl": {},
}

// IsDDL reports whether a path looks like a DDL script.
func IsDDL(filePath string) bool {
	ext := strings.ToLower(path.Ext(filePath))
	_, ok := ddlExtensions[ext]
	return ok
}

// Build classifies an uploaded file list into a draft. The top-level path
// segment names the system; files at the root fall into a system named after
// the project.
func Build(projectName string, paths []string) (*Draft, error) {
	projectName = strings.TrimSpace(projectName)
	if projectName == "" {
		return nil, fmt.Errorf("project name required")
	}
	draft := &Draft{ProjectName: projectName}
	systems := make(map[string][]string)
	var order []string
	for _, raw := range paths {
		cleaned := path.Clean(strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/"))
		cleaned = strings.TrimPrefix(cleaned, "/")
		if cleaned == "" || cleaned == "." {
			continue
		}
		if IsDDL(cleaned) {
			draft.DDL = append(draft.DDL, cleaned)
			continue
		}
		system := projectName
		if idx := strings.Index(cleaned, "/"); idx > 0 {
			system = cleaned[:idx]
		}
		if _, seen := systems[system]; !seen {
			order = append(order, system)
		}
		systems[system] = append(systems[system], cleaned)
	}
	for _, name := range order {
		files := systems[name]
		sort.Strings(files)
		draft.Systems = append(draft.Systems, System{Name: name, Files: files})
	}
	sort.Strings(draft.DDL)
	return draft, nil
}

// Clone returns a deep copy safe to read and encode outside the store lock.
func (d *Draft) Clone() *Draft {
	clone := &Draft{ProjectName: d.ProjectName}
	if len(d.Systems) > 0 {
		clone.Systems = make([]System, len(d.Systems))
		for i, sys := range d.Systems {
			clone.Systems[i] = System{Name: sys.Name, Files: append([]string(nil), sys.Files...)}
		}
	}
	if len(d.DDL) > 0 {
		clone.DDL = append([]string(nil), d.DDL...)
	}
	return clone
}

// FileSet returns every file the draft still references, systems and DDL
// bucket alike.
func (d *Draft) FileSet() map[string]struct{} {
	files := make(map[string]struct{})
	for _, sys := range d.Systems {
		for _, file := range sys.Files {
			files[file] = struct{}{}
		}
	}
	for _, file := range d.DDL {
		files[file] = struct{}{}
	}
	return files
}

func (d *Draft) system(name string) (*System, error) {
	for i := range d.Systems {
		if d.Systems[i].Name == name {
			return &d.Systems[i], nil
		}
	}
	return nil, fmt.Errorf("system %q not found", name)
}

func removeFile(files []string, target string) ([]string, bool) {
	for i, file := range files {
		if file == target {
			return append(files[:i:i], files[i+1:]...), true
		}
	}
	return files, false
}

// MoveFile reclassifies one file from one system to another, creating the
// destination system when needed. This backs the drag and drop edit.
func (d *Draft) MoveFile(fromSystem, toSystem, file string) error {
	if fromSystem == toSystem {
		return nil
	}
	src, err := d.system(fromSystem)
	if err != nil {
		return err
	}
	files, found := removeFile(src.Files, file)
	if !found {
		return fmt.Errorf("file %q not in system %q", file, fromSystem)
	}
	src.Files = files
	dst, err := d.system(toSystem)
	if err != nil {
		d.Systems = append(d.Systems, System{Name: toSystem, Files: []string{file}})
	} else {
		dst.Files = append(dst.Files, file)
		sort.Strings(dst.Files)
	}
	d.prune()
	return nil
}

// MarkDDL moves a file out of its system into the DDL bucket.
func (d *Draft) MarkDDL(system, file string) error {
	src, err := d.system(system)
	if err != nil {
		return err
	}
	files, found := removeFile(src.Files, file)
	if !found {
		return fmt.Errorf("file %q not in system %q", file, system)
	}
	src.Files = files
	d.DDL = append(d.DDL, file)
	sort.Strings(d.DDL)
	d.prune()
	return nil
}

// UnmarkDDL moves a DDL script back into the named system.
func (d *Draft) UnmarkDDL(file, toSystem string) error {
	ddl, found := removeFile(d.DDL, file)
	if !found {
		return fmt.Errorf("ddl file %q not found", file)
	}
	d.DDL = ddl
	if dst, err := d.system(toSystem); err == nil {
		dst.Files = append(dst.Files, file)
		sort.Strings(dst.Files)
	} else {
		d.Systems = append(d.Systems, System{Name: toSystem, Files: []string{file}})
	}
	return nil
}

// RenameSystem renames a system, refusing collisions with an existing name.
func (d *Draft) RenameSystem(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("system name required")
	}
	if _, err := d.system(newName); err == nil {
		return fmt.Errorf("system %q already exists", newName)
	}
	src, err := d.system(oldName)
	if err != nil {
		return err
	}
	src.Name = newName
	return nil
}

// RemoveFile drops a file from the draft entirely.
func (d *Draft) RemoveFile(system, file string) error {
	src, err := d.system(system)
	if err != nil {
		return err
	}
	files, found := removeFile(src.Files, file)
	if !found {
		return fmt.Errorf("file %q not in system %q", file, system)
	}
	src.Files = files
	d.prune()
	return nil
}

// prune drops systems emptied by edits.
func (d *Draft) prune() {
	kept := d.Systems[:0]
	for _, sys := range d.Systems {
		if len(sys.Files) > 0 {
			kept = append(kept, sys)
		}
	}
	d.Systems = kept
}

// Validate checks the draft is submittable: a project name and at least one
// system with files. Violations block submission at the UI layer.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.ProjectName) == "" {
		return fmt.Errorf("project name required")
	}
	if len(d.Systems) == 0 {
		return fmt.Errorf("at least one system with files required")
	}
	for _, sys := range d.Systems {
		if strings.TrimSpace(sys.Name) == "" {
			return fmt.Errorf("system name required")
		}
		if len(sys.Files) == 0 {
			return fmt.Errorf("system %q has no files", sys.Name)
		}
	}
	return nil
}
