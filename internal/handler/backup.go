package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rvestal/habitat/internal/backup"
	"github.com/rvestal/habitat/internal/model"
	"github.com/rvestal/habitat/internal/store"
)

type BackupHandler struct {
	manager       *backup.Manager
	backupStore   *store.BackupStore
	settingsStore *store.SettingsStore
	logger        *slog.Logger
}

func NewBackupHandler(m *backup.Manager, bs *store.BackupStore, ss *store.SettingsStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, backupStore: bs, settingsStore: ss, logger: logger}
}

// GetSettings handles GET /api/backup/settings. The S3 secret key is
// redacted; clients resubmit it only when changing it.
func (h *BackupHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsStore.GetBackupSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	if settings["s3_secret_key"] != "" {
		settings["s3_secret_key"] = "••••••••"
	}
	settings["has_cached_key"] = strconv.FormatBool(h.manager.HasCachedKey())
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /api/backup/settings
func (h *BackupHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := validateBackupSettings(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for key, value := range req {
		if err := h.settingsStore.Set(key, value); err != nil {
			h.logger.Error("save backup setting", "key", key, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}

	settings, err := h.settingsStore.GetBackupSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}

	h.manager.UpdateS3Config(backup.S3Config{
		Bucket:    settings["s3_bucket"],
		Region:    settings["s3_region"],
		Endpoint:  settings["s3_endpoint"],
		AccessKey: settings["s3_access_key"],
		SecretKey: settings["s3_secret_key"],
	})

	if settings["s3_secret_key"] != "" {
		settings["s3_secret_key"] = "••••••••"
	}
	writeJSON(w, http.StatusOK, settings)
}

func validateBackupSettings(settings map[string]string) error {
	allowedKeys := map[string]bool{
		"backup_enabled":        true,
		"backup_hour":           true,
		"backup_retention_days": true,
		"s3_bucket":             true,
		"s3_region":             true,
		"s3_endpoint":           true,
		"s3_access_key":         true,
		"s3_secret_key":         true,
	}

	for key, value := range settings {
		if !allowedKeys[key] {
			return fmt.Errorf("unknown setting: %s", key)
		}

		switch key {
		case "backup_enabled":
			if value != "true" && value != "false" {
				return fmt.Errorf("backup_enabled must be \"true\" or \"false\"")
			}
		case "backup_hour":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > 23 {
				return fmt.Errorf("backup_hour must be 0-23")
			}
		case "backup_retention_days":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return fmt.Errorf("backup_retention_days must be positive")
			}
		}
	}
	return nil
}

type backupRunRequest struct {
	Passphrase string `json:"passphrase"`
}

// RunNow handles POST /api/backup/run
func (h *BackupHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	var req backupRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Passphrase == "" && !h.manager.HasCachedKey() {
		writeError(w, http.StatusBadRequest, "passphrase is required")
		return
	}

	id, err := h.manager.RunNow(r.Context(), req.Passphrase)
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed: "+err.Error())
		return
	}

	record, err := h.backupStore.GetByID(id)
	if err != nil || record == nil {
		writeJSON(w, http.StatusOK, map[string]int64{"id": id})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// List handles GET /api/backup/history
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntQuery(r, "limit", 20)
	if err != nil || limit < 1 || limit > 200 {
		writeError(w, http.StatusBadRequest, "limit must be 1-200")
		return
	}

	backups, err := h.backupStore.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, backups)
}

// Status handles GET /api/backup/status
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

type backupRestoreRequest struct {
	Passphrase string `json:"passphrase"`
}

// Restore handles POST /api/backup/restore/{id}. The restored snapshot
// lands next to the live database; the process must restart to pick it
// up.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req backupRestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Passphrase == "" {
		writeError(w, http.StatusBadRequest, "passphrase is required")
		return
	}

	if err := h.manager.Restore(r.Context(), id, req.Passphrase); err != nil {
		h.logger.Error("restore backup", "backup_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "restore failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "restored", "note": "restart the server to load the restored database"})
}

// Download handles GET /api/backup/download/{id}. Streams the
// encrypted snapshot as stored; decryption happens client-side with
// the passphrase.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	record, err := h.backupStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get backup")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "backup not found")
		return
	}

	body, size, err := h.manager.Download(r.Context(), id)
	if err != nil {
		h.logger.Error("download backup", "backup_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "download failed")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Filename))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Error("stream backup", "backup_id", id, "error", err)
	}
}
