package adapters

import (
	"encoding/xml"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"skeditor/internal/ports"
)

// PackageXMLAdapter reads catkin package manifests. Parsed manifests are
// cached by path and invalidated when the file's modification time changes.
type PackageXMLAdapter struct {
	mu    sync.Mutex
	cache map[string]packageXMLCacheEntry
}

func NewPackageXMLAdapter() *PackageXMLAdapter {
	return &PackageXMLAdapter{cache: map[string]packageXMLCacheEntry{}}
}

type packageXML struct {
	Name    string `xml:"name"`
	Version string `xml:"version"`
}

type packageXMLCacheEntry struct {
	modTime time.Time
	name    string
}

func (a *PackageXMLAdapter) ParsePackageNames(paths []string) ([]string, error) {
	var names []string
	for _, path := range paths {
		entry, err := a.loadPackageXML(path)
		if err != nil {
			return nil, err
		}
		if entry.name != "" {
			names = append(names, entry.name)
		}
	}
	return names, nil
}

func (a *PackageXMLAdapter) loadPackageXML(path string) (packageXMLCacheEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return packageXMLCacheEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read package.xml").
			WithCause(err)
	}
	a.mu.Lock()
	if entry, ok := a.cache[path]; ok && entry.modTime.Equal(info.ModTime()) {
		a.mu.Unlock()
		return entry, nil
	}
	a.mu.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return packageXMLCacheEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read package.xml").
			WithCause(err)
	}
	var pkg packageXML
	if err := xml.Unmarshal(content, &pkg); err != nil {
		return packageXMLCacheEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse package.xml").
			WithCause(err)
	}
	entry := packageXMLCacheEntry{
		modTime: info.ModTime(),
		name:    strings.TrimSpace(pkg.Name),
	}

	a.mu.Lock()
	a.cache[path] = entry
	a.mu.Unlock()
	return entry, nil
}

var _ ports.PackageXMLPort = (*PackageXMLAdapter)(nil)
