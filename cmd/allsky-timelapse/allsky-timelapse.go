package main

import(
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/maruel/interrupt"
	"github.com/theckman/yacspin"

	"github.com/abworrall/allsky/pkg/allsky"
)

var(
	fConfig string
	fDay string
	fNight bool
	fQuiet bool
)

func init() {
	flag.StringVar(&fConfig, "config", "allsky.yml", "YAML config file")
	flag.StringVar(&fDay, "day", "", "which day to encode, YYYYMMDD (default yesterday)")
	flag.BoolVar(&fNight, "night", true, "encode the night that starts on -day, rather than the day itself")
	flag.BoolVar(&fQuiet, "q", false, "no spinner")
	flag.Parse()
}

// jobFor picks a time that files into the folder for the day (or the
// night starting on it).
func jobFor(day string, night bool) (allsky.TimelapseJob, error) {
	d := time.Now().AddDate(0, 0, -1)
	if day != "" {
		var err error
		if d, err = time.ParseInLocation("20060102", day, time.Local); err != nil {
			return allsky.TimelapseJob{}, fmt.Errorf("bad -day %q: %v", day, err)
		}
	}
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.Local)
	if night {
		return allsky.TimelapseJob{At: d.Add(24 * time.Hour), Night: true}, nil
	}
	return allsky.TimelapseJob{At: d.Add(12 * time.Hour)}, nil
}

func main() {
	c, err := allsky.LoadConfig(fConfig)
	if err != nil {
		log.Fatal(err)
	}
	job, err := jobFor(fDay, fNight)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupt.HandleCtrlC()
	go func() {
		<-interrupt.Channel
		cancel()
	}()

	g := c.Generator()
	var spinner *yacspin.Spinner
	if !fQuiet {
		spinner, err = yacspin.New(yacspin.Config{
			Frequency:         100 * time.Millisecond,
			CharSet:           yacspin.CharSets[14],
			Suffix:            " " + job.String(),
			SuffixAutoColon:   true,
			Message:           "collecting frames",
			StopCharacter:     "✓",
			StopFailCharacter: "✗",
		})
		if err != nil {
			log.Fatal(err)
		}
		g.Progress = func(done, total int) {
			spinner.Message(fmt.Sprintf("linked %d/%d frames", done, total))
			if done == total {
				spinner.Message("encoding")
			}
		}
		spinner.Start()
	}

	video, err := allsky.RunTimelapse(ctx, c, g, job)
	if spinner != nil {
		if err != nil {
			spinner.StopFailMessage(err.Error())
			spinner.StopFail()
		} else {
			spinner.StopMessage(video)
			spinner.Stop()
		}
	}
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s\n", video)
}
