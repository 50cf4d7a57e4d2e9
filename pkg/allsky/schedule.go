package allsky

import(
	"context"
	"fmt"
	"log"
	"time"

	"github.com/abworrall/allsky/pkg/output"
	"github.com/abworrall/allsky/pkg/timelapse"
)

// A TimelapseJob is one night's (or day's) worth of images to encode.
// At is any time that files into the right folder.
type TimelapseJob struct {
	At     time.Time
	Night  bool
}

func (j TimelapseJob)String() string {
	return fmt.Sprintf("timelapse[%s %s]", output.DayRef(j.At, j.Night).Format("20060102"), output.TimeOfDay(j.Night))
}

// A TimelapseScheduler notices the day/night transitions, and says
// when the period that just ended should become a timelapse.
type TimelapseScheduler struct {
	Config     Config
	armed      bool    // images have been kept since the last transition
}

// Observe is called periodically with the current night flag, and
// whether it just changed. It returns a job at the end of a period
// that produced timelapse images.
func (s *TimelapseScheduler)Observe(now time.Time, night, changed bool) (TimelapseJob, bool) {
	job, ok := TimelapseJob{}, false

	// the period that just ended is the opposite of the current one
	if changed && s.armed && s.Config.TimelapseEnable {
		job, ok = TimelapseJob{At: now, Night: !night}, true
	}

	if night {
		s.armed = true
	} else if s.Config.DaytimeCapture && s.Config.DaytimeTimelapse {
		s.armed = true
	}
	if !night && !s.Config.DaytimeCapture {
		log.Printf("Daytime capture is disabled\n")
		s.armed = false
	}

	return job, ok
}

// Generator builds the encoder the config asks for.
func (c Config)Generator() *timelapse.Generator {
	g := timelapse.NewGenerator()
	g.FFmpegPath = c.FFmpegPath
	g.FrameRate = c.FFmpegFrameRate
	g.Bitrate = c.FFmpegBitrate
	g.Codec = c.FFmpegCodec
	g.VFScale = c.FFmpegVFScale
	g.FileType = c.ImageFileType
	return g
}

// RunTimelapse encodes the job's images into its video file.
func RunTimelapse(ctx context.Context, c Config, g *timelapse.Generator, job TimelapseJob) (string, error) {
	dir := output.DayFolder(c.ImageFolder, job.At, job.Night)
	video := timelapse.VideoName(c.ImageFolder, output.DayRef(job.At, job.Night), c.CameraID, job.Night)
	log.Printf("Generating %s from %s\n", job, dir)

	files, err := timelapse.FindImages(dir, c.ImageFileType)
	if err != nil {
		return "", err
	}
	if err := g.Generate(ctx, video, files); err != nil {
		return "", err
	}
	return video, nil
}
