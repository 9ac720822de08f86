package controller

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// landing redirects to a freshly minted room.
func (c controller) landing(w http.ResponseWriter, r *http.Request) {
	roomId, err := c.generateRoomId()
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to generate room id", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// http.Redirect would make the target absolute
	w.Header().Set("Location", roomId)
	w.WriteHeader(http.StatusFound)
}

// index serves the room page for any valid room id.
func (c controller) index(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(filepath.Join(c.staticDir, "index.html"))
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to open index", "error", err)
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// ServeContent instead of ServeFile: the latter redirects */index.html
	http.ServeContent(w, r, "index.html", stat.ModTime(), f)
}

func (c controller) static(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/index.html") {
		c.index(w, r)
		return
	}

	http.FileServer(noDirFileSystem{http.Dir(c.staticDir)}).ServeHTTP(w, r)
}

// noDirFileSystem hides directories so the file server never lists or
// indexes them.
type noDirFileSystem struct {
	fs http.FileSystem
}

func (fs noDirFileSystem) Open(name string) (http.File, error) {
	f, err := fs.fs.Open(name)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if stat.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}

	return f, nil
}
