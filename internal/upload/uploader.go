// Package upload seeds the media identifier store. Each sign's image is
// uploaded once to a private chat; Telegram answers with a file_id that the
// publisher can reuse without sending the bytes again.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/astro-channel-bot/internal/telegram"
	"github.com/fpang/astro-channel-bot/internal/zodiac"
)

// DefaultExtensions are tried in order for each sign.
var DefaultExtensions = []string{"jpg", "jpeg", "png"}

// PhotoUploader is the transport used for uploads.
type PhotoUploader interface {
	UploadPhoto(ctx context.Context, chatID, filename string, data io.Reader, caption string) (*telegram.Message, error)
}

// Store is the identifier store the uploader writes to.
type Store interface {
	Snapshot() map[string]string
	ReplaceAll(ctx context.Context, mapping map[string]string) error
}

// Notifier receives progress lines meant for the operator.
type Notifier func(ctx context.Context, text string)

// Report summarizes one Run.
type Report struct {
	Uploaded []string
	Missing  []string
	Failed   []string
}

// Uploader uploads sign images from a directory.
type Uploader struct {
	sender     PhotoUploader
	store      Store
	dir        string
	extensions []string
}

// NewUploader creates an Uploader reading <dir>/<sign>.<ext>.
func NewUploader(sender PhotoUploader, st Store, dir string) *Uploader {
	return &Uploader{sender: sender, store: st, dir: dir, extensions: DefaultExtensions}
}

// Run uploads every sign image found in the directory to chatID and writes
// the resulting identifiers to the store in a single snapshot. Existing
// identifiers for signs that were not re-uploaded are kept. A sign whose
// image is missing or whose upload fails is reported and skipped.
func (u *Uploader) Run(ctx context.Context, chatID string, notify Notifier) (Report, error) {
	if notify == nil {
		notify = func(context.Context, string) {}
	}

	var report Report
	ids := u.store.Snapshot()

	for _, sign := range zodiac.All() {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		path, ok := u.find(sign.Key)
		if !ok {
			log.Warn().Str("sign", sign.Key).Str("dir", u.dir).Msg("No image found for sign")
			notify(ctx, fmt.Sprintf("⚠️ Файл для %s не найден!", sign.Key))
			report.Missing = append(report.Missing, sign.Key)
			continue
		}

		fileID, err := u.uploadOne(ctx, chatID, path)
		if err != nil {
			log.Error().Err(err).Str("sign", sign.Key).Str("path", path).Msg("Image upload failed")
			notify(ctx, fmt.Sprintf("⚠️ Не удалось загрузить файл для %s", sign.Key))
			report.Failed = append(report.Failed, sign.Key)
			continue
		}

		ids[sign.Key] = fileID
		report.Uploaded = append(report.Uploaded, sign.Key)
		log.Info().Str("sign", sign.Key).Str("fileId", fileID).Msg("Image uploaded")
	}

	if len(report.Uploaded) == 0 {
		return report, nil
	}
	if err := u.store.ReplaceAll(ctx, ids); err != nil {
		return report, fmt.Errorf("save file ids: %w", err)
	}
	return report, nil
}

func (u *Uploader) find(key string) (string, bool) {
	for _, ext := range u.extensions {
		path := filepath.Join(u.dir, key+"."+ext)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, true
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Debug().Err(err).Str("path", path).Msg("Stat failed")
		}
	}
	return "", false
}

func (u *Uploader) uploadOne(ctx context.Context, chatID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	msg, err := u.sender.UploadPhoto(ctx, chatID, filepath.Base(path), f, "")
	if err != nil {
		return "", err
	}
	best, ok := telegram.LargestPhoto(msg)
	if !ok || best.FileID == "" {
		return "", fmt.Errorf("upload of %s returned no photo", filepath.Base(path))
	}
	return best.FileID, nil
}
