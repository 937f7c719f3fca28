package publish

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/pagepub/internal/forge"
	"git.home.luguber.info/inful/pagepub/internal/logfields"
)

// dataURIPattern matches inline base64 payloads with a declared media type.
var dataURIPattern = regexp.MustCompile(`data:([^;,]+);base64,([A-Za-z0-9+/=]+)`)

// mimeExtensions maps declared media types to file extensions. Unknown types
// fall back to the subtype string; types without a slash fall back to "bin".
var mimeExtensions = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/gif":     "gif",
	"image/svg+xml": "svg",
	"image/webp":    "webp",
	"image/bmp":     "bmp",
	"image/ico":     "ico",
	"image/icon":    "ico",
	"image/x-icon":  "ico",

	"video/mp4":  "mp4",
	"video/webm": "webm",
	"video/ogg":  "ogv",
	"video/avi":  "avi",
	"video/mpeg": "mpg",

	"audio/mpeg": "mp3",
	"audio/mp3":  "mp3",
	"audio/ogg":  "ogg",
	"audio/wav":  "wav",
	"audio/webm": "weba",
	"audio/aac":  "aac",

	"application/pdf":        "pdf",
	"text/plain":             "txt",
	"text/css":               "css",
	"text/javascript":        "js",
	"application/javascript": "js",
}

func extensionFor(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if ext, ok := mimeExtensions[mt]; ok {
		return ext
	}
	if i := strings.LastIndex(mt, "/"); i >= 0 {
		subtype := mt[i+1:]
		if j := strings.Index(subtype, ";"); j >= 0 {
			subtype = subtype[:j]
		}
		if subtype = strings.TrimSpace(subtype); subtype != "" {
			return subtype
		}
	}
	return "bin"
}

// assetName builds the deterministic filename for the nth asset of a given
// extension within a round. The ordinal is omitted for the first asset so the
// common single-asset case stays short.
func assetName(round int, ext string, ordinal int) string {
	base := strings.ReplaceAll(ext, ".", "")
	if ordinal == 1 {
		return fmt.Sprintf("asset_round%d_%s.%s", round, base, ext)
	}
	return fmt.Sprintf("asset_round%d_%s%d.%s", round, base, ordinal, ext)
}

// extractAssets lifts embedded base64 payloads whose decoded size meets the
// threshold out of the document, persisting them to the collection root and
// rewriting the document to reference the uploaded filenames. A payload is
// only rewritten after its upload succeeds, so a failure for one asset never
// leaves a dangling reference; the failure is logged and the remaining
// payloads are still processed.
func (p *Pipeline) extractAssets(ctx context.Context, task Task, document string) string {
	matches := dataURIPattern.FindAllStringSubmatch(document, -1)
	if len(matches) == 0 {
		return document
	}

	ordinals := make(map[string]int)
	for _, m := range matches {
		full, mimeType, payload := m[0], m[1], m[2]

		// Estimate before decoding so sub-threshold payloads cost nothing.
		if len(payload)*3/4 < p.opts.AssetThreshold {
			continue
		}

		content, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			p.logger.Warn("skipping undecodable embedded payload",
				logfields.Task(task.Name),
				slog.String("media_type", mimeType),
				logfields.Error(err))
			p.metrics.IncAssetResult(false)
			continue
		}

		ext := extensionFor(mimeType)
		ordinals[ext]++
		filename := assetName(task.Round, ext, ordinals[ext])

		if err := p.uploadAsset(ctx, task.Name, filename, content); err != nil {
			p.logger.Warn("asset upload failed, leaving payload inline",
				logfields.Task(task.Name),
				logfields.Path(filename),
				logfields.Error(err))
			p.metrics.IncAssetResult(false)
			continue
		}

		document = strings.ReplaceAll(document, full, filename)
		p.metrics.IncAssetResult(true)
		p.logger.Info("extracted embedded asset",
			logfields.Task(task.Name),
			logfields.Path(filename),
			slog.Int("bytes", len(content)))
	}
	return document
}

// uploadAsset writes the asset to the collection root, updating in place when
// a previous round already created the filename.
func (p *Pipeline) uploadAsset(ctx context.Context, repo, filename string, content []byte) error {
	message := "Add asset: " + filename
	existing, err := p.forge.GetFile(ctx, p.opts.Owner, repo, filename, p.opts.Branch)
	switch {
	case err == nil:
		return p.forge.UpdateFile(ctx, p.opts.Owner, repo, filename, p.opts.Branch, message, existing.SHA, content)
	case errors.Is(err, forge.ErrNotFound):
		return p.forge.CreateFile(ctx, p.opts.Owner, repo, filename, p.opts.Branch, message, content)
	default:
		return err
	}
}
