// Package resolver picks the best locally readable media path for a clip.
//
// RAW camera formats (BRAW, R3D, ...) cannot be decoded by ffmpeg builds in
// the wild, so for those the resolver hunts for a proxy: first the proxy the
// host has already linked, then a fixed list of conventional locations. For
// everything else the nominal source path is used as-is.
package resolver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bdougie/metafootage/internal/models"
)

// rawExtensions lists container formats that need a proxy before sampling.
var rawExtensions = map[string]bool{
	".braw": true,
	".r3d":  true,
	".ari":  true,
	".dng":  true,
	".crm":  true,
}

// IsRAW reports whether path has a RAW container extension.
func IsRAW(path string) bool {
	return rawExtensions[strings.ToLower(filepath.Ext(path))]
}

// Resolution is the outcome of resolving one clip. Checked lists every proxy
// candidate that was probed, in order, so a "no proxy found" skip can name
// the locations it looked at.
type Resolution struct {
	Location models.MediaLocation
	Checked  []string
}

// NeedsProxy reports whether the clip cannot be sampled as resolved: the
// source is RAW and no readable proxy was found.
func (r Resolution) NeedsProxy() bool {
	return !r.Location.IsProxy && IsRAW(r.Location.Path)
}

// Resolver locates readable media paths. The zero value is usable; Stat is
// swapped out in tests.
type Resolver struct {
	// Stat reports whether a path exists. Defaults to an os.Stat check.
	Stat func(path string) bool
}

func New() *Resolver {
	return &Resolver{}
}

func (r *Resolver) exists(path string) bool {
	if path == "" {
		return false
	}
	if r.Stat != nil {
		return r.Stat(path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// Resolve returns the best readable path for clip. It never fails: when no
// proxy can be found for a RAW source the nominal (undecodable) path comes
// back with IsProxy=false and the caller surfaces the skip.
func (r *Resolver) Resolve(clip models.ClipRef, customRoot string) Resolution {
	source := clip.SourcePath()
	if !IsRAW(source) {
		return Resolution{Location: models.MediaLocation{Path: source}}
	}

	// Host-linked proxy wins when it is actually on disk.
	if linked := clip.LinkedProxyPath(); r.exists(linked) {
		return Resolution{Location: models.MediaLocation{Path: linked, IsProxy: true}}
	}

	res := Resolution{Location: models.MediaLocation{Path: source}}
	for _, candidate := range r.candidates(source, customRoot) {
		res.Checked = append(res.Checked, candidate)
		if r.exists(candidate) {
			res.Location = models.MediaLocation{Path: candidate, IsProxy: true}
			return res
		}
	}
	return res
}

// candidates builds the ordered proxy search list. The order is a fixed
// priority: direct files under the custom root, proxy subfolders under the
// custom root, then Proxy/Proxies folders next to the source file.
func (r *Resolver) candidates(source, customRoot string) []string {
	folder := filepath.Dir(source)
	file := filepath.Base(source)
	name := strings.TrimSuffix(file, filepath.Ext(file))

	var out []string
	if customRoot != "" && r.exists(customRoot) {
		out = append(out,
			filepath.Join(customRoot, name+".mov"),
			filepath.Join(customRoot, name+".mp4"),
			filepath.Join(customRoot, file),
			filepath.Join(customRoot, "Proxy", name+".mov"),
			filepath.Join(customRoot, "Proxies", name+".mov"),
			filepath.Join(customRoot, "Proxy", file),
		)
	}
	out = append(out,
		filepath.Join(folder, "Proxy", name+".mov"),
		filepath.Join(folder, "Proxy", name+".mp4"),
		filepath.Join(folder, "Proxies", name+".mov"),
		filepath.Join(folder, "Proxies", name+".mp4"),
	)
	return out
}
