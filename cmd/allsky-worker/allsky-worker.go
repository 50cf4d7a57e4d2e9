package main

import(
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/maruel/interrupt"

	"github.com/abworrall/allsky/pkg/allsky"
	"github.com/abworrall/allsky/pkg/calibrate"
	"github.com/abworrall/allsky/pkg/dispatch"
)

var(
	// Version is injected via ldflags at build time
	Version = "dev"

	fConfig string
	fRestartDelay time.Duration
	fSkyInterval time.Duration
	fMaxWait time.Duration
)

func init() {
	flag.StringVar(&fConfig, "config", "allsky.yml", "YAML config file; defaults are used if missing")
	flag.DurationVar(&fRestartDelay, "restart", 5*time.Second, "how long to wait before restarting a dead worker")
	flag.DurationVar(&fSkyInterval, "sky", time.Minute, "how often to recheck day/night")
	flag.DurationVar(&fMaxWait, "maxwait", 30*time.Second, "how long to wait for an incoming file to be fully written")
	flag.Parse()
}

func usage() {
	str := `allsky-worker processes all-sky camera frames, and keeps the exposure on target.

Usage:
	allsky-worker [flags] <command> [files...]

Commands:
	run       watch INCOMING_DIR (and process any files named on the command line)
	help
	mkconf    write the default config to the -config file
	conf      print the config in effect
	version`
	fmt.Println(str)
	flag.PrintDefaults()
}

func main() {
	cmd := "help"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	switch cmd {
	case "run":
		run(flag.Args()[1:])
	case "mkconf":
		mkconf()
	case "conf":
		fmt.Print(loadConfig().AsYaml())
	case "version":
		fmt.Printf("allsky-worker version %v\n", Version)
	default:
		usage()
	}
}

func loadConfig() allsky.Config {
	c, err := allsky.LoadConfig(fConfig)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func mkconf() {
	if err := os.WriteFile(fConfig, []byte(allsky.NewConfig().AsYaml()), 0644); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote default config to %s\n", fConfig)
}

// finder returns nil (not a typed nil) when there is nothing to calibrate with.
func finder(c allsky.Config) calibrate.Finder {
	var(
		cat *calibrate.Catalog
		err error
	)
	switch {
	case c.CalibrationCatalog != "":
		cat, err = calibrate.LoadCatalog(c.CalibrationCatalog)
	case c.CalibrationDir != "":
		cat, err = calibrate.ScanDir(c.CalibrationDir, c.CameraID)
	default:
		return nil
	}
	if err != nil {
		log.Printf("Calibration disabled: %v\n", err)
		return nil
	}
	log.Printf("Calibration catalog has %d frames\n", cat.Len())
	return cat
}

func dispatcher(c allsky.Config, q *dispatch.Queue) (*dispatch.Dispatcher, func()) {
	d := &dispatch.Dispatcher{
		Queue:     q,
		Spool:     &dispatch.Spool{Dir: c.Spool.Dir, Format: c.SpoolFormat},
		BaseTopic: c.MQTT.BaseTopic,
		QoS:       byte(c.MQTT.QoS),
	}
	if !c.MQTT.Enable {
		return d, func() {}
	}

	pub, err := dispatch.NewMQTTPublisher(dispatch.MQTTConfig{
		Host:     c.MQTT.Host,
		Port:     c.MQTT.Port,
		User:     c.MQTT.User,
		Password: c.MQTT.Password,
		ClientID: c.MQTT.ClientID,
	})
	if err != nil {
		log.Printf("MQTT publishing disabled: %v\n", err)
		return d, func() {}
	}
	d.Publisher = pub
	return d, pub.Close
}

func run(files []string) {
	c := loadConfig()
	log.Printf("allsky-worker %s starting, camera %d\n", Version, c.CameraID)

	tel := allsky.NewTelemetry(allsky.Snapshot{
		Exposure:  c.ExposureDef,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
	})
	allsky.UpdateSky(c, tel, time.Now())
	log.Printf("Initial state: %s\n", tel.Snapshot())

	q := dispatch.NewQueue(c.Spool.QueueSize)
	d, closePublisher := dispatcher(c, q)
	defer closePublisher()

	p, err := allsky.NewProcessor(c, tel, finder(c), q)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupt.HandleCtrlC()
	go func() {
		<-interrupt.Channel
		log.Printf("Interrupted, shutting down\n")
		cancel()
	}()

	dispatched := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(dispatched)
	}()

	msgs := make(chan allsky.Message, 16)
	if c.IncomingDir != "" {
		in := &allsky.Ingester{
			Dir:       c.IncomingDir,
			CameraID:  c.CameraID,
			Telemetry: tel,
			Out:       msgs,
			MaxWait:   fMaxWait,
		}
		go func() {
			if err := in.Run(ctx); err != nil {
				log.Printf("Ingester: %v\n", err)
				cancel()
			}
		}()
	}

	supervised := make(chan struct{})
	go func() {
		allsky.Supervise(ctx, msgs, p, fRestartDelay)
		close(supervised)
	}()

	// Files on the command line are a one-shot batch
	if len(files) > 0 {
		go func() {
			for _, f := range files {
				st, err := os.Stat(f)
				if err != nil {
					log.Printf("Skipping %s: %v\n", f, err)
					continue
				}
				msgs <- allsky.Message{
					FilePath:     f,
					Exposure:     tel.Exposure(),
					ExposureTime: st.ModTime(),
					CameraID:     c.CameraID,
				}
			}
			if c.IncomingDir == "" {
				msgs <- allsky.StopMessage()
			}
		}()
	}

	sched := &allsky.TimelapseScheduler{Config: c}
	sched.Observe(time.Now(), tel.Night(), false)
	ticker := time.NewTicker(fSkyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			waitFor(supervised, 10*time.Second)
			return

		case <-supervised:
			// nothing else will enqueue; let the dispatcher drain what is left
			log.Printf("Worker stopped\n")
			q.Close()
			waitFor(dispatched, 30*time.Second)
			return

		case now := <-ticker.C:
			changed := allsky.UpdateSky(c, tel, now)
			if changed {
				log.Printf("Day/night changed: %s\n", tel.Snapshot())
			}
			if job, ok := sched.Observe(now, tel.Night(), changed); ok {
				go func() {
					video, err := allsky.RunTimelapse(ctx, c, c.Generator(), job)
					if err != nil {
						log.Printf("%s failed: %v\n", job, err)
						return
					}
					log.Printf("%s written to %s\n", job, video)
				}()
			}
		}
	}
}

func waitFor(ch <-chan struct{}, d time.Duration) {
	select {
	case <-ch:
	case <-time.After(d):
		log.Printf("Gave up waiting after %s\n", d)
	}
}
