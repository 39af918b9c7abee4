package ytdlp

import (
	"fmt"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// Политики выбора формата, когда клиент его не указал.
const (
	PolicyFirst = "first"
	PolicyBest  = "best"
)

// SelectFormat выбирает формат из списка согласно политике.
// first берёт первый формат в порядке инструмента, best самый высокий по разрешению.
func SelectFormat(policy string, formats []models.Format) (string, error) {
	if len(formats) == 0 {
		return "", models.ErrNoFormatAvailable
	}
	switch policy {
	case PolicyBest:
		best := formats[0]
		for _, f := range formats[1:] {
			if f.Height > best.Height {
				best = f
			}
		}
		return best.FormatID, nil
	case PolicyFirst, "":
		return formats[0].FormatID, nil
	default:
		return "", fmt.Errorf("unknown format policy %q", policy)
	}
}
