package speech

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"os/exec"
	"strings"
)

// Transcoder converts the audio file at in into a mono 16 kHz WAV file at out.
type Transcoder interface {
	Transcode(ctx context.Context, in, out string) error
}

// FFmpeg is a [Transcoder] that shells out to the ffmpeg binary.
type FFmpeg struct {
	// Path is the ffmpeg executable. Default: "ffmpeg" from PATH.
	Path string
}

// Transcode runs ffmpeg. Failures are returned as *[TranscodeError] carrying
// ffmpeg's stderr.
func (f FFmpeg) Transcode(ctx context.Context, in, out string) error {
	bin := f.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", in,
		"-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le", "-f", "wav",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &TranscodeError{Output: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}

// CheckFFmpeg reports whether the ffmpeg binary can be found.
func CheckFFmpeg(path string) error {
	if path == "" {
		path = "ffmpeg"
	}
	if _, err := exec.LookPath(path); err != nil {
		return errors.Join(errors.New("speech: ffmpeg not found"), err)
	}
	return nil
}

// genericExt is used when the content type is missing or unknown; ffmpeg
// probes the container itself.
const genericExt = ".bin"

var extensions = map[string]string{
	"audio/ogg":       ".ogg",
	"audio/opus":      ".opus",
	"audio/mpeg":      ".mp3",
	"audio/mp3":       ".mp3",
	"audio/mp4":       ".m4a",
	"audio/x-m4a":     ".m4a",
	"audio/aac":       ".aac",
	"audio/amr":       ".amr",
	"audio/wav":       ".wav",
	"audio/x-wav":     ".wav",
	"audio/wave":      ".wav",
	"audio/webm":      ".webm",
	"audio/3gpp":      ".3gp",
	"video/mp4":       ".mp4",
	"video/3gpp":      ".3gp",
	"application/ogg": ".ogg",
}

// extensionFor maps a declared content type (parameters allowed, e.g.
// "audio/ogg; codecs=opus") to a working file extension.
func extensionFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return genericExt
	}
	if ext, ok := extensions[mt]; ok {
		return ext
	}
	return genericExt
}
