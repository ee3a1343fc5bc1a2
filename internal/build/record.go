package build

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/starford/shikibuild/internal/models"
	"github.com/starford/shikibuild/internal/storage"
)

// RecordFile is the build-time record path relative to the cache dir.
const RecordFile = "build-time.json"

// RecordVersion is the current build-time record schema.
const RecordVersion = "1.0"

// ReadRecord returns the previous build start time. A missing, unreadable or
// foreign-version record yields the zero time; only the corrupt cases are
// logged.
func ReadRecord(store storage.Provider, logger *slog.Logger) time.Time {
	var rec models.BuildTimeRecord
	if err := store.ReadJSON(RecordFile, &rec); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("build: build-time record unreadable", slog.String("error", err.Error()))
		}
		return time.Time{}
	}
	if rec.Version != RecordVersion || rec.LastBuildTime <= 0 {
		logger.Warn("build: build-time record ignored",
			slog.String("version", rec.Version),
			slog.Int64("last_build_time", rec.LastBuildTime),
		)
		return time.Time{}
	}
	return time.UnixMilli(rec.LastBuildTime)
}

// WriteRecord persists start as the last build time.
func WriteRecord(store storage.Provider, start time.Time) error {
	rec := models.BuildTimeRecord{LastBuildTime: start.UnixMilli(), Version: RecordVersion}
	if err := store.WriteJSON(RecordFile, rec); err != nil {
		return fmt.Errorf("build: write record: %w", err)
	}
	return nil
}
