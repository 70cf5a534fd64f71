// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vmware/solution-deployer/deployer/template"
)

// Upload result codes.
const (
	UploadSuccess = iota
	UploadBadArchive
)

const masterFileSuffix = ".tmpl"

// SolutionLister reports which customers were deployed from a template.
type SolutionLister interface {
	CustomersByTemplate(templateID string) ([]int, error)
}

// Manager owns the template store directory.
type Manager struct {
	// Root is the template store location. Each template lives in
	// Root/<id>/ with a master file <id>.tmpl.
	Root string

	// Solutions resolves template usage; nil means usage is unknown and
	// reported empty.
	Solutions SolutionLister

	engine *template.Engine
}

func NewManager(root string) *Manager {
	return &Manager{Root: root, engine: template.NewEngine()}
}

// TemplateRootDir returns the directory one template lives in.
func (m *Manager) TemplateRootDir(templateID string) string {
	return filepath.Join(m.Root, templateID)
}

// MasterFileName returns the master file name for a template id.
func MasterFileName(templateID string) string {
	return templateID + masterFileSuffix
}

// MasterFileAt returns the master file path inside an arbitrary directory.
func MasterFileAt(dir, templateID string) string {
	return filepath.Join(dir, MasterFileName(templateID))
}

// MasterFile returns the master file path inside the store.
func (m *Manager) MasterFile(templateID string) string {
	return MasterFileAt(m.TemplateRootDir(templateID), templateID)
}

// Exists reports whether a template is present in the store.
func (m *Manager) Exists(templateID string) bool {
	_, err := os.Stat(m.MasterFile(templateID))
	return err == nil
}

// Get returns one template's metadata.
func (m *Manager) Get(templateID string) (*Metadata, error) {
	if !m.Exists(templateID) {
		return nil, errors.Errorf("no template %q in store", templateID)
	}
	return ParseMetadata(m.MasterFile(templateID))
}

// List returns the metadata of every template in the store, sorted by id.
// Directories without a readable master file are skipped.
func (m *Manager) List() ([]*Metadata, error) {
	entries, err := os.ReadDir(m.Root)
	if err != nil {
		return nil, errors.Wrap(err, "reading template store")
	}
	out := []*Metadata{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := ParseMetadata(m.MasterFile(entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Choice is an (id, display name) pair for selection lists.
type Choice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListAsChoices returns the store contents as (id, name) pairs.
func (m *Manager) ListAsChoices() ([]Choice, error) {
	metas, err := m.List()
	if err != nil {
		return nil, err
	}
	out := make([]Choice, 0, len(metas))
	for _, meta := range metas {
		out = append(out, Choice{ID: meta.ID, Name: meta.Name})
	}
	return out, nil
}

// Render expands a stored template with the given variables.
func (m *Manager) Render(templateID string, vars map[string]interface{}) (*template.Document, []string, error) {
	if !m.Exists(templateID) {
		return nil, nil, errors.Errorf("no template %q in store", templateID)
	}
	if m.engine == nil {
		m.engine = template.NewEngine()
	}
	return m.engine.Render(vars)
}

// BasicVariables is the minimal parameter set used to smoke-render a
// template during error checking.
func BasicVariables(datacenterID string) map[string]interface{} {
	return map[string]interface{}{
		"cust_num":      1,
		"cust_name":     "abc",
		"num_users":     4000,
		"datacenter_id": datacenterID,
	}
}

// CheckErrors smoke-renders the template and returns anything wrong with
// it: a render failure or leaked placeholder warnings.
func (m *Manager) CheckErrors(templateID, datacenterID string) []string {
	_, warnings, err := m.Render(templateID, BasicVariables(datacenterID))
	if err != nil {
		return []string{err.Error()}
	}
	return warnings
}

// ErrorsAsKVP returns CheckErrors as numbered key/value pairs.
func (m *Manager) ErrorsAsKVP(templateID, datacenterID string) []KeyValue {
	return ListToKVP(m.CheckErrors(templateID, datacenterID))
}

// TemplateSolutions lists the customers deployed from a template.
func (m *Manager) TemplateSolutions(templateID string) ([]int, error) {
	if m.Solutions == nil {
		return []int{}, nil
	}
	return m.Solutions.CustomersByTemplate(templateID)
}

// SupportedProducts returns the product families a template can deploy.
func (m *Manager) SupportedProducts(templateID string) ([]Product, error) {
	meta, err := m.Get(templateID)
	if err != nil {
		return nil, err
	}
	return meta.Products, nil
}

// SupportedProductTypes returns the product families as a plain type list.
func (m *Manager) SupportedProductTypes(templateID string) ([]string, error) {
	products, err := m.SupportedProducts(templateID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Type)
	}
	return out, nil
}

// ProductParameters maps each product family of a template to its
// parameters.
func (m *Manager) ProductParameters(templateID string) (map[string][]string, error) {
	products, err := m.SupportedProducts(templateID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(products))
	for _, p := range products {
		out[p.Type] = p.Parameters
	}
	return out, nil
}

// Delete removes a template from the store.
func (m *Manager) Delete(templateID string) error {
	return os.RemoveAll(m.TemplateRootDir(templateID))
}

// SaveUploaded runs the whole upload flow: stage the archive in a scratch
// directory, extract it, replace any existing template of the same id, and
// clean the scratch directory on both paths. It returns the new template id.
func (m *Manager) SaveUploaded(fileName string, content io.Reader) (string, error) {
	workDir := filepath.Join(os.TempDir(), "template-upload-"+uuid.New().String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload scratch directory")
	}
	cleanup := true
	defer func() {
		if cleanup {
			m.CleanupUploaded(workDir)
		}
	}()

	tarPath := filepath.Join(workDir, filepath.Base(fileName))
	f, err := os.Create(tarPath)
	if err != nil {
		return "", errors.Wrap(err, "staging uploaded archive")
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return "", errors.Wrap(err, "staging uploaded archive")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "staging uploaded archive")
	}

	rc, message := m.Extract(workDir, tarPath)
	if rc != UploadSuccess {
		return "", errors.Errorf("extracting uploaded archive: %s", message)
	}
	if err := os.Remove(tarPath); err != nil {
		return "", errors.Wrap(err, "removing staged archive")
	}

	templateID, err := findTemplateID(workDir)
	if err != nil {
		return "", err
	}
	if !m.Override(templateID, workDir) {
		return "", errors.Errorf("installing template %q in store", templateID)
	}
	cleanup = false
	return templateID, nil
}

// findTemplateID locates the master file in an extracted upload.
func findTemplateID(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(err, "reading extracted upload")
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), masterFileSuffix) {
			return strings.TrimSuffix(entry.Name(), masterFileSuffix), nil
		}
	}
	return "", errors.New("uploaded archive contains no master template file")
}

// Extract unpacks a tar (optionally gzipped) archive into workDir. Entry
// paths are confined to workDir.
func (m *Manager) Extract(workDir, tarPath string) (int, string) {
	f, err := os.Open(tarPath)
	if err != nil {
		return UploadBadArchive, err.Error()
	}
	defer f.Close()

	var src io.Reader = f
	var magic [2]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return UploadBadArchive, "archive is empty or unreadable"
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return UploadBadArchive, err.Error()
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return UploadBadArchive, err.Error()
		}
		defer gz.Close()
		src = gz
	}

	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return UploadSuccess, ""
		}
		if err != nil {
			return UploadBadArchive, err.Error()
		}
		name := filepath.Clean(strings.TrimPrefix(hdr.Name, "/"))
		if name == "." || strings.HasPrefix(name, "..") {
			continue
		}
		target := filepath.Join(workDir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return UploadBadArchive, err.Error()
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return UploadBadArchive, err.Error()
			}
			out, err := os.Create(target)
			if err != nil {
				return UploadBadArchive, err.Error()
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return UploadBadArchive, err.Error()
			}
			if err := out.Close(); err != nil {
				return UploadBadArchive, err.Error()
			}
		}
	}
}

// Override replaces the stored template with the extracted upload. The
// work directory is moved into the store, so it no longer exists after a
// successful override.
func (m *Manager) Override(templateID, workDir string) bool {
	target := m.TemplateRootDir(templateID)
	if err := os.RemoveAll(target); err != nil {
		return false
	}
	if err := os.MkdirAll(m.Root, 0o755); err != nil {
		return false
	}
	return os.Rename(workDir, target) == nil
}

// CleanupUploaded removes an upload scratch directory.
func (m *Manager) CleanupUploaded(workDir string) bool {
	return os.RemoveAll(workDir) == nil
}
