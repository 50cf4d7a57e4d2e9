// Package timelapse turns a day's (or night's) worth of still images
// into a video, by running ffmpeg over them.
package timelapse

import(
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var(
	// ErrEncoder means ffmpeg exited nonzero. Any output it left behind
	// has been removed.
	ErrEncoder = errors.New("timelapse: encoder failed")

	// ErrNoFrames means there was nothing to encode; ffmpeg was not run.
	ErrNoFrames = errors.New("timelapse: no frames")
)

// A Generator knows how to run the encoder.
type Generator struct {
	FFmpegPath  string
	FrameRate   int
	Bitrate     string   // e.g. "2500k"
	Codec       string   // e.g. "libx264"
	VFScale     string   // optional -vf scale= argument
	FileType    string   // extension of the input images, no dot

	// Progress, if set, is called after each input file is linked.
	Progress    func(done, total int)
}

func NewGenerator() *Generator {
	return &Generator{
		FFmpegPath: "ffmpeg",
		FrameRate:  25,
		Bitrate:    "2500k",
		Codec:      "libx264",
		FileType:   "jpg",
	}
}

type stamped struct {
	name   string
	mtime  time.Time
}

// orderFiles drops the empty ones, and sorts the rest by modification
// time.
func orderFiles(files []string) []string {
	s := []stamped{}
	for _, f := range files {
		st, err := os.Stat(f)
		if err != nil {
			log.Printf("Timelapse skipping %s: %v\n", f, err)
			continue
		}
		if st.Size() == 0 {
			continue
		}
		s = append(s, stamped{f, st.ModTime()})
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].mtime.Before(s[j].mtime) })

	ret := make([]string, len(s))
	for i := range s {
		ret[i] = s[i].name
	}
	return ret
}

// Args is the ffmpeg command line, reading numbered frames from dir.
func (g *Generator)Args(dir, videoFile string) []string {
	args := []string{
		"-y",
		"-loglevel", "level+warning",
		"-f", "image2",
		"-r", fmt.Sprintf("%d", g.FrameRate),
		"-i", filepath.Join(dir, "%05d."+g.FileType),
		"-vcodec", g.Codec,
		"-b:v", g.Bitrate,
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
	}
	if g.VFScale != "" {
		args = append(args, "-vf", "scale="+g.VFScale)
	}
	return append(args, videoFile)
}

// Generate encodes the files into videoFile. The files are linked into
// a scratch dir with sequential names, since that is how image2 wants
// them.
func (g *Generator)Generate(ctx context.Context, videoFile string, files []string) error {
	tStart := time.Now()

	files = orderFiles(files)
	if len(files) == 0 {
		return fmt.Errorf("%w: for %s", ErrNoFrames, videoFile)
	}

	dir, err := os.MkdirTemp("", "allsky-timelapse-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	for i, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		link := filepath.Join(dir, fmt.Sprintf("%05d.%s", i, g.FileType))
		if err := os.Symlink(abs, link); err != nil {
			return fmt.Errorf("link %s: %v", f, err)
		}
		if g.Progress != nil {
			g.Progress(i+1, len(files))
		}
	}

	if err := os.MkdirAll(filepath.Dir(videoFile), 0755); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, g.FFmpegPath, g.Args(dir, videoFile)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
			if line != "" {
				log.Printf("ffmpeg: %s\n", line)
			}
		}
		if _, statErr := os.Stat(videoFile); statErr == nil {
			log.Printf("ffmpeg created broken video file, cleaning up\n")
			os.Remove(videoFile)
		}
		return fmt.Errorf("%w: %s: %v", ErrEncoder, videoFile, err)
	}

	log.Printf("Timelapse %s from %d images in %0.2f s\n", videoFile, len(files), time.Since(tStart).Seconds())
	return nil
}

// VideoName is where the timelapse for a day (or night) lives:
// <root>/<YYYYMMDD>/allsky-timelapse_ccd<id>_<YYYYMMDD>_<night|day>.mp4
func VideoName(root string, dayRef time.Time, cameraID int, night bool) string {
	ts := dayRef.Format("20060102")
	tod := "day"
	if night { tod = "night" }
	return filepath.Join(root, ts, fmt.Sprintf("allsky-timelapse_ccd%d_%s_%s.mp4", cameraID, ts, tod))
}

// FindImages walks a day folder and returns every image of the given
// type under it.
func FindImages(dir, ext string) ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), "."+ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
