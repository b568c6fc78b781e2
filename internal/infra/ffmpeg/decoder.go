package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"github.com/naufalaziz23/piplinee/internal/domain/port"
	"go.uber.org/zap"
)

var errSourceClosed = errors.New("video source is closed")

// Decoder opens videos with ffprobe and decodes single frames by index with
// ffmpeg.
type Decoder struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

func NewDecoder(ffmpegPath, ffprobePath string, logger *zap.Logger) *Decoder {
	return &Decoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

// CheckAvailable verifies that both binaries can be executed.
func (d *Decoder) CheckAvailable(ctx context.Context) error {
	for _, bin := range []string{d.ffmpegPath, d.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("lookup %s: %w", bin, err)
		}
		if out, err := exec.CommandContext(ctx, bin, "-version").CombinedOutput(); err != nil {
			return fmt.Errorf("%s -version: %w, output: %s", bin, err, string(out))
		}
	}
	return nil
}

func (d *Decoder) Open(ctx context.Context, videoPath string) (port.VideoSource, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, &entity.IOError{Op: "open video", Path: videoPath, Err: err}
	}

	info, err := d.probe(ctx, videoPath)
	if err != nil {
		return nil, &entity.IOError{Op: "probe video", Path: videoPath, Err: err}
	}

	d.logger.Info("video opened",
		zap.String("path", videoPath),
		zap.String("codec", info.codec),
		zap.Int("frames", info.frames),
		zap.Float64("fps", info.fps),
		zap.Float64("video_duration", info.duration),
	)

	return &videoSource{
		decoder:  d,
		path:     videoPath,
		frames:   info.frames,
		fps:      info.fps,
		duration: info.duration,
	}, nil
}

type probeInfo struct {
	codec    string
	frames   int
	fps      float64
	duration float64
}

type probeOutput struct {
	Streams []struct {
		CodecName     string `json:"codec_name"`
		NbReadPackets string `json:"nb_read_packets"`
		NbFrames      string `json:"nb_frames"`
		AvgFrameRate  string `json:"avg_frame_rate"`
		RFrameRate    string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (d *Decoder) probe(ctx context.Context, videoPath string) (*probeInfo, error) {
	cmd := exec.CommandContext(ctx, d.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=codec_name,nb_read_packets,nb_frames,avg_frame_rate,r_frame_rate:format=duration",
		"-of", "json",
		videoPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w, output: %s", err, strings.TrimSpace(stderr.String()))
	}

	var out probeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, errors.New("no video stream found")
	}

	stream := out.Streams[0]
	frames, err := parseFrameCount(stream.NbReadPackets, stream.NbFrames)
	if err != nil {
		return nil, err
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil {
		d.logger.Warn("could not get video duration", zap.Error(err))
		duration = 0
	}

	fps := parseFrameRate(stream.AvgFrameRate, stream.RFrameRate)
	if fps == 0 {
		d.logger.Warn("frame rate not reported, frames will be decoded from the start",
			zap.String("path", videoPath))
	}

	return &probeInfo{codec: stream.CodecName, frames: frames, fps: fps, duration: duration}, nil
}

// parseFrameRate returns the first usable rational rate such as "30000/1001",
// or 0 when none is reported.
func parseFrameRate(rates ...string) float64 {
	for _, r := range rates {
		num, den, ok := strings.Cut(strings.TrimSpace(r), "/")
		if !ok {
			den = "1"
		}
		n, err1 := strconv.ParseFloat(num, 64)
		dv, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || n <= 0 || dv <= 0 {
			continue
		}
		return n / dv
	}
	return 0
}

// parseFrameCount prefers the counted packets and falls back to the container
// frame count when packet counting is unavailable.
func parseFrameCount(counted, declared string) (int, error) {
	for _, v := range []string{counted, declared} {
		v = strings.TrimSpace(v)
		if v == "" || v == "N/A" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("parse frame count %q: %w", v, err)
		}
		if n < 0 {
			return 0, fmt.Errorf("negative frame count %d", n)
		}
		return n, nil
	}
	return 0, errors.New("frame count not reported")
}

type videoSource struct {
	decoder  *Decoder
	path     string
	frames   int
	fps      float64
	duration float64
	pos      int
	closed   bool
}

func (s *videoSource) FrameCount() int   { return s.frames }
func (s *videoSource) Duration() float64 { return s.duration }
func (s *videoSource) Position() int     { return s.pos }

// ReadFrameAt decodes the frame with zero-based index. With a known frame
// rate the input is seeked to just before the frame, so the cost does not
// grow with the index; a variable rate video may then yield the nearest
// decodable frame after it. Without a rate, or when the seek lands past the
// end, frames are counted from the start.
func (s *videoSource) ReadFrameAt(ctx context.Context, index int) (image.Image, error) {
	if s.closed {
		return nil, &entity.DecodeError{Index: index, Err: errSourceClosed}
	}
	if index < 0 || index >= s.frames {
		return nil, &entity.DecodeError{Index: index, Err: fmt.Errorf("index out of range [0,%d)", s.frames)}
	}

	var (
		img image.Image
		err error
	)
	if s.fps > 0 {
		img, err = s.decode(ctx, index, seekArgs(s.path, index, s.fps))
		if errors.Is(err, errNoFrame) && ctx.Err() == nil {
			img, err = s.decode(ctx, index, countArgs(s.path, index))
		}
	} else {
		img, err = s.decode(ctx, index, countArgs(s.path, index))
	}
	if err != nil {
		return nil, err
	}

	s.pos = index + 1
	return img, nil
}

var errNoFrame = errors.New("no frame produced")

// seekArgs seeks half a frame before index. Accurate seeking drops every
// frame before that point, so the first frame left is the one asked for.
func seekArgs(path string, index int, fps float64) []string {
	at := 0.0
	if index > 0 {
		at = (float64(index) - 0.5) / fps
	}
	return []string{
		"-ss", strconv.FormatFloat(at, 'f', 6, 64),
		"-i", path,
		"-frames:v", "1",
	}
}

// countArgs selects the frame by counting decoded frames from the start.
func countArgs(path string, index int) []string {
	return []string{
		"-i", path,
		"-vf", fmt.Sprintf("select=eq(n\\,%d)", index),
		"-frames:v", "1",
	}
}

func (s *videoSource) decode(ctx context.Context, index int, inputArgs []string) (image.Image, error) {
	args := append([]string{"-v", "error"}, inputArgs...)
	args = append(args, "-f", "image2pipe", "-c:v", "png", "-")

	cmd := exec.CommandContext(ctx, s.decoder.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &entity.DecodeError{
			Index: index,
			Err:   fmt.Errorf("ffmpeg: %w, output: %s", err, strings.TrimSpace(stderr.String())),
		}
	}
	if len(output) == 0 {
		return nil, &entity.DecodeError{Index: index, Err: errNoFrame}
	}

	img, err := png.Decode(bytes.NewReader(output))
	if err != nil {
		return nil, &entity.DecodeError{Index: index, Err: fmt.Errorf("decode png: %w", err)}
	}
	return img, nil
}

func (s *videoSource) Close() error {
	s.closed = true
	return nil
}
