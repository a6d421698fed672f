package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"condosync/models"
	"condosync/storage"
)

// Uploader is the object-storage sink the mirror worker writes to.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// MirrorWorker drains pending media assets: download from the provider CDN,
// hash, upload to object storage, record the mirror key. Assets are retried
// up to three times before being marked failed.
type MirrorWorker struct {
	store      *storage.PostgresStore
	httpClient *http.Client
	uploader   Uploader
	triggerCh  chan struct{}
}

func NewMirrorWorker(store *storage.PostgresStore, httpClient *http.Client, uploader Uploader) *MirrorWorker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &MirrorWorker{
		store:      store,
		httpClient: httpClient,
		uploader:   uploader,
		triggerCh:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate batch outside the ticker cadence.
func (w *MirrorWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *MirrorWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Mirror worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *MirrorWorker) processBatch(ctx context.Context, batchSize int) {
	assets, err := w.store.GetPendingMediaAssets(ctx, batchSize)
	if err != nil {
		log.Printf("Mirror worker: query error: %v", err)
		return
	}
	if len(assets) == 0 {
		return
	}

	log.Printf("Mirror worker: processing %d assets", len(assets))

	var mirrored, failed int
	for i := range assets {
		a := &assets[i]

		key, hash, err := w.mirror(ctx, a)
		if err != nil {
			failed++
			log.Printf("Mirror worker: failed %s: %v", a.SourceURL, err)

			newAttempts := a.Attempts + 1
			status := models.MirrorStatusPending
			if newAttempts >= 3 {
				status = models.MirrorStatusFailed
			}
			w.store.UpdateMediaAssetMirror(ctx, a.ID, status, nil, "", newAttempts)
			continue
		}

		if err := w.store.UpdateMediaAssetMirror(ctx, a.ID, models.MirrorStatusMirrored, &key, hash, a.Attempts); err != nil {
			log.Printf("Mirror worker: failed to update %s: %v", a.ID, err)
			failed++
			continue
		}
		mirrored++

		// Keep a gap between CDN downloads.
		time.Sleep(200 * time.Millisecond)
	}

	if mirrored > 0 || failed > 0 {
		log.Printf("Mirror worker: mirrored %d, failed %d", mirrored, failed)
	}
}

func (w *MirrorWorker) mirror(ctx context.Context, a *models.MediaAsset) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", a.SourceURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", "", fmt.Errorf("download status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
	if err != nil {
		return "", "", fmt.Errorf("read body: %w", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	ext := guessExtension(a.SourceURL, resp.Header.Get("Content-Type"))
	key := fmt.Sprintf("media/%s/%s%s", hash[:2], hash, ext)

	if w.uploader != nil {
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "image/jpeg"
		}
		if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
			return "", "", fmt.Errorf("upload: %w", err)
		}
	}

	return key, hash, nil
}

func guessExtension(url, contentType string) string {
	ext := strings.ToLower(path.Ext(url))
	if ext != "" && isImageExt(ext) {
		return ext
	}

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff":
		return true
	}
	return false
}

// NoOpUploader drains and discards uploads; used when object storage is not
// configured.
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	io.Copy(io.Discard, data)
	return nil
}
