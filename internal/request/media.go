package request

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"tgrelay/internal/result"
)

var (
	photoExt = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".bmp": {}, ".tiff": {}, ".webp": {}, ".svg": {},
	}
	videoExt = map[string]struct{}{
		".mp4": {}, ".gif": {}, ".mov": {}, ".avi": {}, ".mkv": {}, ".webm": {}, ".wmv": {},
	}
)

// FileChecker reports whether a local path names an existing regular file.
type FileChecker func(path string) bool

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// ParseHint maps a tg_media_type value to a hint. Blank means Auto.
func ParseHint(s string) (MediaKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, true
	case "text":
		return Text, true
	case "photo":
		return Photo, true
	case "video":
		return Video, true
	default:
		return Unknown, false
	}
}

// MediaRef is the media part of a send call as the host supplied it.
type MediaRef struct {
	Path    string
	Present bool // key was in the bag, even if blank
	Hint    MediaKind
}

// ResolveMedia decides the concrete kind for ref. It never hard-fails on Auto
// for a local file: missing or unclassifiable files degrade to Text with a warning.
func ResolveMedia(ref MediaRef, exists FileChecker) result.Result[MediaKind] {
	if exists == nil {
		exists = fileExists
	}
	hint := ref.Hint
	p := strings.TrimSpace(ref.Path)

	if hint == Text {
		return result.Success(Text)
	}

	if p == "" {
		if hint != Auto {
			return result.Failure[MediaKind](fmt.Sprintf("explicit media type '%s' requested, but path is empty", hint))
		}
		if ref.Present {
			return result.SuccessWarn(Text, "media path is blank, falling back to text")
		}
		return result.Success(Text)
	}

	u, isURL := parseMediaURL(p)
	if !isURL && !exists(p) {
		if hint == Auto {
			return result.SuccessWarn(Text, fmt.Sprintf("media file not found: %s, falling back to text", p))
		}
		return result.Failure[MediaKind](fmt.Sprintf("explicit media type '%s' requested, but file is missing: %s", hint, p))
	}

	var ext string
	if isURL {
		ext = path.Ext(path.Base(u.Path))
	} else {
		ext = filepath.Ext(p)
	}
	ext = strings.ToLower(ext)
	if ext == "." {
		ext = ""
	}
	_, looksPhoto := photoExt[ext]
	_, looksVideo := videoExt[ext]

	switch hint {
	case Photo:
		if !looksPhoto && !(isURL && ext == "") {
			return result.Failure[MediaKind]("file is not a photo: " + p)
		}
		return result.Success(pick(isURL, PhotoURL, Photo))
	case Video:
		if !looksVideo && !(isURL && ext == "") {
			return result.Failure[MediaKind]("file is not a video: " + p)
		}
		return result.Success(pick(isURL, VideoURL, Video))
	case Auto:
		switch {
		case looksPhoto:
			return result.Success(pick(isURL, PhotoURL, Photo))
		case looksVideo:
			return result.Success(pick(isURL, VideoURL, Video))
		case isURL:
			return result.Failure[MediaKind]("could not detect media type from URL, specify " + KeyMediaType + " explicitly")
		default:
			return result.SuccessWarn(Text, fmt.Sprintf("could not detect media type of %s, falling back to text", p))
		}
	default:
		return result.Failure[MediaKind](fmt.Sprintf("unknown media type: %s", hint))
	}
}

// parseMediaURL accepts absolute http(s) URLs only.
func parseMediaURL(s string) (*url.URL, bool) {
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u, true
	}
	return nil, false
}

// IsURL reports whether s is an absolute http(s) URL.
func IsURL(s string) bool {
	_, ok := parseMediaURL(strings.TrimSpace(s))
	return ok
}

func pick(cond bool, a, b MediaKind) MediaKind {
	if cond {
		return a
	}
	return b
}
