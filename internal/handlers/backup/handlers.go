package backup

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	httpx "genio/internal/http"
	"genio/internal/services/dataloader"
	"genio/internal/services/storage"
	"genio/internal/session"
	"genio/internal/version"
)

var (
	store     *storage.Storage
	loader    *dataloader.DataLoader
	cacheKind string
	log       logrus.FieldLogger = logrus.StandardLogger()
)

// Initialize sets up the backup package with required dependencies.
// cacheName is reported by the health check ("memory" or "redis").
func Initialize(s *storage.Storage, l *dataloader.DataLoader, cacheName string, logger logrus.FieldLogger) {
	store = s
	loader = l
	cacheKind = cacheName
	if logger != nil {
		log = logger
	}
}

// RegisterRoutes registers the health check and the data directory
// backup routes. Only the health check is public.
func RegisterRoutes(r chi.Router, sm *session.Manager) {
	r.Get("/api/health", HandleHealth)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireAPI(httpx.StatusError, true))
		r.Get("/api/files", HandleFiles)
		r.Get("/api/backup", HandleBackup)
		r.Post("/api/restore", HandleRestore)
	})
}

// StorageHealth is the storage part of the health check.
type StorageHealth struct {
	Encrypted bool `json:"encrypted"`
	Unlocked  bool `json:"unlocked"`
}

// Health is the /api/health body.
type Health struct {
	Status  string        `json:"status"`
	Version version.Info  `json:"version"`
	Storage StorageHealth `json:"storage"`
	Cache   string        `json:"cache"`
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{
		Status:  "ok",
		Version: version.Get(),
		Cache:   cacheKind,
	}
	if store != nil {
		h.Storage = StorageHealth{Encrypted: store.IsEncrypted(), Unlocked: store.IsUnlocked()}
		if !h.Storage.Unlocked {
			h.Status = "locked"
		}
	}
	httpx.WriteJSON(w, http.StatusOK, h)
}

// HandleFiles lists the workbooks and generated CSV files.
func HandleFiles(w http.ResponseWriter, r *http.Request) {
	infos, err := loader.GetFileInfo()
	if err != nil {
		log.WithError(err).Error("listing files")
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.StatusError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, infos)
}

// skipInBackup reports files that are never archived: the vault's own
// files and the cache directory.
func skipInBackup(rel string) bool {
	base := filepath.Base(rel)
	if base == ".encrypted" || base == ".encryption-verify" {
		return true
	}
	return strings.HasPrefix(filepath.ToSlash(rel), "cache/")
}

// HandleBackup streams the data directory as a zip. Files are decrypted
// so the archive restores on any installation.
func HandleBackup(w http.ResponseWriter, r *http.Request) {
	if !store.IsUnlocked() {
		httpx.ErrorResponse(w, storage.ErrLocked.Error(), http.StatusServiceUnavailable)
		return
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("genio_backup_%s.zip", timestamp)

	// Build the archive first so a failure can still become an error
	// response.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	count := 0
	dataDir := store.BaseDir()
	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(dataDir, path)
		if err != nil {
			return err
		}
		if skipInBackup(relPath) {
			return nil
		}

		data, err := store.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", relPath, err)
		}
		f, err := zw.Create(filepath.ToSlash(relPath))
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			return err
		}
		count++
		return nil
	})
	if err == nil {
		err = zw.Close()
	}
	if err != nil {
		log.WithError(err).Error("creating backup")
		httpx.ErrorResponse(w, "Error creating backup", http.StatusInternalServerError)
		return
	}

	log.WithField("files", count).Info("backup created")
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Write(buf.Bytes())
}

// HandleRestore writes the CSV files of an uploaded backup zip into the
// data directory.
func HandleRestore(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (max 50MB for backup files)
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		http.Error(w, "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error reading file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".zip") {
		http.Error(w, "Only ZIP backup files are allowed", http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	restored, err := restoreZip(content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loader.Invalidate()
	log.WithField("files", restored).Info("restore complete")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "restored": restored})
}

// restoreZip extracts the CSV files of content into the data directory,
// using only their base names.
func restoreZip(content []byte) (int, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, errors.New("Invalid ZIP file")
	}

	restored := 0
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(zf.Name), ".csv") {
			continue
		}
		baseName := filepath.Base(zf.Name)
		if strings.Contains(baseName, "..") {
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			log.WithError(err).WithField("entry", zf.Name).Warn("Warning: skipping zip entry")
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			log.WithError(err).WithField("entry", zf.Name).Warn("Warning: skipping zip entry")
			continue
		}

		if err := store.WriteFile(baseName, data, 0644); err != nil {
			log.WithError(err).WithField("file", baseName).Error("restoring file")
			continue
		}
		restored++
	}

	if restored == 0 {
		return 0, errors.New("No CSV files found in backup")
	}
	return restored, nil
}
