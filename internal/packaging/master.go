package packaging

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/storage"
)

// successfulByBitrate filters failed variants and orders the remainder by
// descending bitrate, the order players expect to see preferred variants.
func successfulByBitrate(variants []Variant) []Variant {
	ok := make([]Variant, 0, len(variants))
	for _, v := range variants {
		if v.Result.Success {
			ok = append(ok, v)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool {
		return ok[i].Profile.Bitrate > ok[j].Profile.Bitrate
	})
	return ok
}

// WriteHLSMaster writes the job's master.m3u8 listing every successful
// variant. With zero successful variants it writes nothing and returns
// false.
func (p *Packager) WriteHLSMaster(jobID models.ULID, variants []Variant) (string, bool) {
	ok := successfulByBitrate(variants)
	if len(ok) == 0 {
		p.logger.Warn("no successful variants, skipping HLS master",
			slog.String("job_id", jobID.String()))
		return "", false
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, v := range ok {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n",
			v.Profile.Bitrate*1000, v.Profile.Width, v.Profile.Height)
		fmt.Fprintf(&b, "%s/playlist.m3u8\n", v.Profile.Resolution)
	}

	path := p.layout.MasterManifest(jobID, models.ProtocolHLS)
	if err := writeManifest(path, b.String()); err != nil {
		p.logger.Error("writing HLS master",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
		return "", false
	}
	return path, true
}

// WriteDASHMaster writes the job's master.mpd with one representation per
// successful variant. With zero successful variants it writes nothing and
// returns false.
func (p *Packager) WriteDASHMaster(jobID models.ULID, variants []Variant, durationSeconds int) (string, bool) {
	ok := successfulByBitrate(variants)
	if len(ok) == 0 {
		p.logger.Warn("no successful variants, skipping DASH master",
			slog.String("job_id", jobID.String()))
		return "", false
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" mediaPresentationDuration="%s" profiles="urn:mpeg:dash:profile:isoff-on-demand:2011">`+"\n",
		isoDuration(durationSeconds))
	b.WriteString("  <Period>\n")
	b.WriteString(`    <AdaptationSet mimeType="video/mp4" segmentAlignment="true">` + "\n")
	for _, v := range ok {
		fmt.Fprintf(&b,
			`      <Representation id="%s" bandwidth="%d" width="%d" height="%d">`+"\n",
			v.Profile.Resolution, v.Profile.Bitrate*1000, v.Profile.Width, v.Profile.Height)
		fmt.Fprintf(&b, "        <BaseURL>%s/</BaseURL>\n", v.Profile.Resolution)
		b.WriteString("      </Representation>\n")
	}
	b.WriteString("    </AdaptationSet>\n")
	b.WriteString("  </Period>\n")
	b.WriteString("</MPD>\n")

	path := p.layout.MasterManifest(jobID, models.ProtocolDASH)
	if err := writeManifest(path, b.String()); err != nil {
		p.logger.Error("writing DASH master",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
		return "", false
	}
	return path, true
}

// isoDuration renders seconds as ISO-8601 PTnHnMnS.
func isoDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("PT%02dH%02dM%02dS", h, m, s)
}

func writeManifest(path, content string) error {
	if err := storage.EnsureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
