package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagepub/internal/forge"
)

func dataURI(mimeType string, decodedLen int) string {
	payload := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{'x'}, decodedLen))
	return fmt.Sprintf("data:%s;base64,%s", mimeType, payload)
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", "png"},
		{"image/jpeg", "jpg"},
		{"IMAGE/PNG", "png"},
		{"image/svg+xml", "svg"},
		{"text/plain", "txt"},
		{"application/x-custom", "x-custom"},
		{"text/html; charset=utf-8", "html"},
		{"garbage", "bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extensionFor(tt.mime), "mime %q", tt.mime)
	}
}

func TestExtractAssetsThreshold(t *testing.T) {
	f := forge.NewFakeForge("tester")
	f.SeedRepository("site")
	p := newTestPipeline(t, f)

	small := dataURI("image/png", 9999)
	doc := "<img src=\"" + small + "\">"
	out := p.extractAssets(context.Background(), Task{Name: "site", Round: 1}, doc)
	assert.Equal(t, doc, out, "sub-threshold payload must stay inline")
	assert.Equal(t, 0, f.Calls("CreateFile"))

	large := dataURI("image/png", 10001)
	doc = "<img src=\"" + large + "\">"
	out = p.extractAssets(context.Background(), Task{Name: "site", Round: 1}, doc)
	assert.NotContains(t, out, "base64")
	assert.Contains(t, out, "asset_round1_png.png")
	assert.Len(t, f.FileContent("tester", "site", "asset_round1_png.png"), 10001)
}

func TestExtractAssetsNaming(t *testing.T) {
	f := forge.NewFakeForge("tester")
	f.SeedRepository("site")
	p := newTestPipeline(t, f)

	doc := strings.Join([]string{
		"<img src=\"" + dataURI("image/png", 12000) + "\">",
		"<img src=\"" + dataURI("image/png", 13000) + "\">",
		"<a href=\"" + dataURI("text/plain", 11000) + "\">notes</a>",
	}, "\n")

	out := p.extractAssets(context.Background(), Task{Name: "site", Round: 2}, doc)

	assert.Contains(t, out, "asset_round2_png.png")
	assert.Contains(t, out, "asset_round2_png2.png")
	assert.Contains(t, out, "asset_round2_txt.txt")

	// First-seen order: the ordinal-free name belongs to the first PNG.
	assert.Less(t, strings.Index(out, "asset_round2_png.png"), strings.Index(out, "asset_round2_png2.png"))

	assert.Len(t, f.FileContent("tester", "site", "asset_round2_png.png"), 12000)
	assert.Len(t, f.FileContent("tester", "site", "asset_round2_png2.png"), 13000)
	assert.Len(t, f.FileContent("tester", "site", "asset_round2_txt.txt"), 11000)
}

func TestExtractAssetsSkipsFailedUploads(t *testing.T) {
	f := forge.NewFakeForge("tester")
	f.SeedRepository("site")
	f.CreateFileHook = func(call int) error {
		if call == 1 {
			return forge.ErrPermissionDenied
		}
		return nil
	}
	p := newTestPipeline(t, f)

	doc := "<img src=\"" + dataURI("image/png", 12000) + "\">" +
		"<img src=\"" + dataURI("image/gif", 12000) + "\">"
	out := p.extractAssets(context.Background(), Task{Name: "site", Round: 1}, doc)

	// First upload failed: its payload stays inline, no dangling reference.
	assert.Contains(t, out, "data:image/png;base64,")
	assert.NotContains(t, out, "asset_round1_png.png")

	// Extraction continued for the second payload.
	assert.Contains(t, out, "asset_round1_gif.gif")
	assert.NotContains(t, out, "data:image/gif")
}

func TestExtractAssetsUpdatesExistingFilename(t *testing.T) {
	f := forge.NewFakeForge("tester")
	f.SeedRepository("site")
	f.SeedFile("tester", "site", "asset_round1_png.png", []byte("old"))
	p := newTestPipeline(t, f)

	out := p.extractAssets(context.Background(), Task{Name: "site", Round: 1},
		"<img src=\""+dataURI("image/png", 12000)+"\">")
	require.Contains(t, out, "asset_round1_png.png")
	assert.Equal(t, 1, f.Calls("UpdateFile"))
	assert.Len(t, f.FileContent("tester", "site", "asset_round1_png.png"), 12000)
}
