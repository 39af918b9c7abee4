package models

// Format нормализованное описание одного формата видео.
type Format struct {
	FormatID   string `json:"format_id"`
	FormatNote string `json:"format_note,omitempty"`
	Ext        string `json:"ext"`
	Resolution string `json:"resolution"`
	Height     int    `json:"height,omitempty"`
	Filesize   string `json:"filesize"`
	VCodec     string `json:"vcodec,omitempty"`
	ACodec     string `json:"acodec,omitempty"`
}

// VideoInfo метаданные видео, полученные от инструмента извлечения.
type VideoInfo struct {
	Title     string   `json:"title"`
	Thumbnail string   `json:"thumbnail"`
	Duration  string   `json:"duration"`
	Formats   []Format `json:"formats"`
}
