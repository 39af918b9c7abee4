package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

type rawFormat struct {
	FormatID   string   `json:"format_id"`
	FormatNote string   `json:"format_note"`
	Ext        string   `json:"ext"`
	Resolution string   `json:"resolution"`
	Width      *int     `json:"width"`
	Height     *int     `json:"height"`
	Filesize   *float64 `json:"filesize"`
	VCodec     string   `json:"vcodec"`
	ACodec     string   `json:"acodec"`
}

type rawInfo struct {
	Title          string      `json:"title"`
	Thumbnail      string      `json:"thumbnail"`
	Duration       *float64    `json:"duration"`
	DurationString string      `json:"duration_string"`
	Formats        []rawFormat `json:"formats"`
}

// GetInfo возвращает нормализованные метаданные видео по ссылке.
func (c *Client) GetInfo(ctx context.Context, url string) (*models.VideoInfo, error) {
	const op = "ytdlp.GetInfo"

	out, err := c.run(ctx, op, c.infoTimeout, url, "--dump-json", "--no-playlist")
	if err != nil {
		return nil, err
	}

	info, err := parseInfo(out)
	if err != nil {
		return nil, &ExtractionError{Op: op, Err: fmt.Errorf("failed to parse video info: %w", err)}
	}
	return info, nil
}

func parseInfo(data []byte) (*models.VideoInfo, error) {
	var raw rawInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	duration := raw.DurationString
	if duration == "" {
		var seconds float64
		if raw.Duration != nil {
			seconds = *raw.Duration
		}
		duration = FormatDuration(seconds)
	}

	info := &models.VideoInfo{
		Title:     raw.Title,
		Thumbnail: raw.Thumbnail,
		Duration:  duration,
		Formats:   make([]models.Format, 0, len(raw.Formats)),
	}
	for _, f := range raw.Formats {
		nf := normalizeFormat(f)
		if !usable(nf) {
			continue
		}
		info.Formats = append(info.Formats, nf)
	}
	return info, nil
}

func normalizeFormat(f rawFormat) models.Format {
	resolution := f.Resolution
	if resolution == "" && f.Width != nil && f.Height != nil {
		resolution = fmt.Sprintf("%dx%d", *f.Width, *f.Height)
	}
	var height int
	if f.Height != nil {
		height = *f.Height
	}
	var size float64
	if f.Filesize != nil {
		size = *f.Filesize
	}
	return models.Format{
		FormatID:   f.FormatID,
		FormatNote: f.FormatNote,
		Ext:        f.Ext,
		Resolution: resolution,
		Height:     height,
		Filesize:   FormatFilesize(size),
		VCodec:     f.VCodec,
		ACodec:     f.ACodec,
	}
}

// usable отбрасывает форматы без разрешения и без видеодорожки.
func usable(f models.Format) bool {
	switch strings.ToLower(f.Resolution) {
	case "", "x", "audio only":
		return false
	}
	return f.VCodec != "" && f.VCodec != "none"
}

// FormatDuration переводит секунды в HH:MM:SS, часы опускаются, если их нет.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return "Unknown"
	}
	total := int(math.Floor(seconds))
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// FormatFilesize человекочитаемый размер с двумя знаками после запятой.
func FormatFilesize(bytes float64) string {
	if bytes <= 0 {
		return "Unknown"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := bytes
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", size, units[i])
}
