package allsky

import(
	"bytes"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path"
	"text/template"
	"time"

	"github.com/abworrall/allsky/pkg/calibrate"
	"github.com/abworrall/allsky/pkg/detect"
	"github.com/abworrall/allsky/pkg/dispatch"
	"github.com/abworrall/allsky/pkg/emath"
	"github.com/abworrall/allsky/pkg/ephem"
	"github.com/abworrall/allsky/pkg/exposure"
	"github.com/abworrall/allsky/pkg/frame"
	"github.com/abworrall/allsky/pkg/output"
	"github.com/abworrall/allsky/pkg/photometry"
	"github.com/abworrall/allsky/pkg/process"
	"github.com/abworrall/allsky/pkg/stack"
)

// A Processor runs the per frame pipeline, and owns the state that
// lives across frames: the stacking window, the exposure controller,
// and the masks.
type Processor struct {
	Config       Config
	Telemetry    *Telemetry
	Exposure     *exposure.Controller
	Calibrator   *calibrate.Engine        // nil means never calibrate
	SQM          *photometry.SQMCalculator
	Window       *stack.Window
	Saver        *output.Saver
	Annotator    *process.Annotator
	Catalog      *output.ImageCatalog
	Queue        *dispatch.Queue          // nil means nothing is dispatched
	DetectMask   *image.Gray
	TempDir      string                   // where metadata files are written before upload

	remoteImageFolder  *template.Template
	remoteImageName    *template.Template
	remoteMetaFolder   *template.Template
	remoteMetaName     *template.Template

	// Last is what the most recent frame produced
	Last         Outcome
}

// Outcome summarises one processed frame.
type Outcome struct {
	Frame      *frame.Frame
	Exposure   exposure.Result
	Status     output.Status
	Saved      output.Saved
	Uploaded   bool
}

// RemoteName is what the remote file and folder templates can refer
// to.
type RemoteName struct {
	Timestamp  time.Time
	Ext        string
}

func NewProcessor(c Config, tel *Telemetry, finder calibrate.Finder, q *dispatch.Queue) (*Processor, error) {
	p := &Processor{
		Config:    c,
		Telemetry: tel,
		Queue:     q,
		Window:    stack.NewWindow(c.StackCount),
		Catalog:   output.NewImageCatalog(c.ImageCatalog),
		TempDir:   os.TempDir(),
		Exposure:  exposure.NewController(exposure.Config{
			TargetADU:   c.TargetADU,
			Dev:         c.TargetADUDev,
			DevDay:      c.TargetADUDevDay,
			ExposureMin: c.ExposureMin,
			ExposureMax: c.ExposureMax,
		}, tel),
		SQM:       photometry.NewSQMCalculator(photometry.SQMConfig{
			ROI:         c.SQMROI,
			Binning:     c.CCD.Night.Binning,
			ExposureMax: c.ExposureMax,
			NightGain:   c.CCD.Night.Gain,
		}),
		Saver:     &output.Saver{
			ImageFolder:      c.ImageFolder,
			FileType:         c.ImageFileType,
			Compression:      c.Compression,
			DaytimeTimelapse: c.DaytimeTimelapse,
			ExportFolder:     c.ExportFolder,
			ExportType:       c.ExportRaw,
			FilenameTemplate: output.DefaultFilenameTemplate,
		},
	}

	if finder != nil {
		p.Calibrator = calibrate.NewEngine(finder)
	}

	if c.DetectMask != "" {
		mask, err := photometry.LoadMask(c.DetectMask)
		if err != nil {
			log.Printf("Detection mask not used: %v\n", err)
		} else {
			p.DetectMask = mask
		}
	}

	lt, err := process.NewLabelTemplate(c.LabelTemplate)
	if err != nil {
		return nil, err
	}
	if p.Annotator, err = process.NewAnnotator(c.TextProperties(), c.OrbProperties(), lt, c.ExtraText); err != nil {
		return nil, err
	}

	ft := c.FileTransfer
	for _, t := range []struct{ dst **template.Template; name, text string }{
		{&p.remoteImageFolder, "REMOTE_IMAGE_FOLDER", ft.RemoteImageFolder},
		{&p.remoteImageName, "REMOTE_IMAGE_NAME", ft.RemoteImageName},
		{&p.remoteMetaFolder, "REMOTE_METADATA_FOLDER", ft.RemoteMetadataFolder},
		{&p.remoteMetaName, "REMOTE_METADATA_NAME", ft.RemoteMetadataName},
	} {
		if *t.dst, err = template.New(t.name).Parse(t.text); err != nil {
			return nil, fmt.Errorf("%s: %v", t.name, err)
		}
	}

	return p, nil
}

func (p *Processor)metadata(m Message, snap Snapshot) frame.Metadata {
	return frame.Metadata{
		Exposure:     m.Exposure,
		ExposureTime: m.ExposureTime,
		Elapsed:      m.Elapsed,
		CameraID:     m.CameraID,
		Gain:         snap.Gain,
		Binning:      snap.Binning,
		Temp:         snap.Temp,
		Latitude:     snap.Latitude,
		Longitude:    snap.Longitude,
		CFAPattern:   p.Config.CFAPattern,
		ExtraHeaders: p.Config.ExtraHeaders(),
		RemoveSource: true,
	}
}

// Process takes one captured file all the way through to the finished
// image and its dispatch records. count is the number of messages the
// worker has seen, which paces the uploads.
func (p *Processor)Process(m Message, count int) error {
	c := p.Config
	snap := p.Telemetry.Snapshot()
	night := snap.Night
	if m.FilenameTemplate != "" {
		p.Saver.FilenameTemplate = m.FilenameTemplate
	}

	f, err := frame.Load(m.FilePath, p.metadata(m, snap))
	if err != nil {
		return err
	}
	log.Printf("Loaded %s\n", f)

	// The camera's own sensor reading wins over whatever we last heard
	if temp, ok := f.Header.Float("CCD-TEMP"); ok {
		p.Telemetry.SetTemp(temp)
		snap.Temp = temp
	}

	f = p.calibrate(f, snap)
	p.Window.Add(f, night)

	if c.SaveFITS {
		if _, err := p.Saver.SaveFITS(f, night); err != nil {
			return err
		}
	}

	f.HasSQM = true
	if c.FocusMode {
		f.SQM = 0
	} else {
		f.SQM = p.SQM.Calculate(f.Buffer, f.Exposure, snap.Gain)
	}

	buf := f.Buffer
	if night && c.StackCount > 1 && !c.FocusMode {
		buf = stack.Stack(p.Window.Frames(), stack.Options{
			Method:   c.StackMethod,
			Align:    c.StackAlign,
			Split:    c.StackSplit,
			FlipH:    c.FlipH,
			Register: stack.DefaultRegisterOptions,
		})
	}
	buf = process.DebayerFrame(buf, f.BayerPattern, c.Grayscale(night))
	log.Printf("Image: %d x %d\n", buf.Width, buf.Height)

	if c.ExportRaw != "" {
		if _, err := p.Saver.ExportRaw(buf, f.BitPix, f.BitDepth, f.ExposureTime, f.CameraID, night); err != nil {
			log.Printf("Raw export failed: %v\n", err)
		}
	}

	img := process.To8Bit(buf, f.BitPix, f.BitDepth)
	img = process.Rotate(img, c.Rotation)
	img = process.Flip(img, c.FlipV, c.FlipH)

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	aduMask := photometry.ADUMask(w, h, p.DetectMask, c.ADUROI, snap.Binning)
	adu := photometry.MeasureADU(img, aduMask)
	res := p.Exposure.Update(adu, m.Exposure)
	log.Printf("Brightness: %0.2f, %s\n", adu, p.Exposure)

	if !c.FocusMode {
		img = p.detect(f, img, night)
	}

	if len(c.CropROI) >= 4 {
		img = process.Crop(img, c.CropROI, snap.Binning)
	}
	if !c.FocusMode {
		img = p.finish(img, night)
	}

	astro := ephem.Observer{Lat: snap.Latitude, Lon: snap.Longitude}.Astrometry(f.ExposureTime)
	if c.ImageLabel || c.FocusMode {
		img = p.Annotator.Draw(img, p.annotation(f, snap, astro))
	}

	status := p.status(f, snap, res, adu)
	if c.StatusFile != "" {
		if err := output.WriteJSON(c.StatusFile, status); err != nil {
			log.Printf("Status file: %v\n", err)
		}
	}

	saved, err := p.Saver.WriteImage(img, f.ExposureTime, f.CameraID, night, c.FocusMode)
	if err != nil {
		return err
	}
	if saved.Timelapse != "" {
		if err := p.Catalog.Add(p.record(f, saved.Timelapse, snap, astro, adu)); err != nil {
			log.Printf("Image catalog: %v\n", err)
		}
	}

	p.Last = Outcome{Frame: f, Exposure: res, Status: status, Saved: saved}
	p.dispatch(f, saved.Latest, snap, astro, status, count)
	return nil
}

// finish is the cosmetic end of the pipeline; focus mode skips it so
// the camera operator sees the frame as captured.
func (p *Processor)finish(img image.Image, night bool) image.Image {
	c := p.Config
	img = process.ApplySCNR(img, c.SCNR)
	if wb := c.WhiteBalance(); wb != [3]float64{1, 1, 1} {
		img = process.WhiteBalance(img, emath.Vec3(wb))
	}
	if c.AutoWB {
		img = process.AutoWhiteBalance(img)
	}
	if c.Contrast(night) {
		img = process.CLAHE(img)
	}
	if c.Scale != 100 {
		img = process.Scale(img, c.Scale)
	}
	return img
}

// calibrate returns the frame uncalibrated if there's nothing to
// calibrate it with.
func (p *Processor)calibrate(f *frame.Frame, snap Snapshot) *frame.Frame {
	if p.Calibrator == nil {
		return f
	}
	q := calibrate.Query{
		CameraID: f.CameraID,
		BitDepth: f.BitPix, // masters are filed by storage depth, not by the range this frame reached
		Gain:     snap.Gain,
		Binning:  snap.Binning,
		Exposure: f.Exposure,
		Temp:     snap.Temp,
	}
	cal, err := p.Calibrator.Calibrate(f, q)
	if err != nil {
		if errors.Is(err, calibrate.ErrNotFound) {
			log.Printf("%v\n", err)
		} else {
			log.Printf("Calibration failed: %v\n", err)
		}
		return f
	}
	return cal
}

// detect finds stars and trails at night, and draws them if asked.
func (p *Processor)detect(f *frame.Frame, img image.Image, night bool) image.Image {
	c := p.Config
	if !night || (!c.DetectMeteors && !c.DetectStars) {
		return img
	}

	mask := p.DetectMask
	if mask != nil && !mask.Bounds().Eq(img.Bounds()) {
		log.Printf("Detection mask is %v, image is %v; not masking\n", mask.Bounds(), img.Bounds())
		mask = nil
	}

	fg := emath.NewFloatGridFromImage(img)
	if c.DetectMeteors {
		tStart := time.Now()
		f.Lines = detect.FindLines(fg, mask, detect.DefaultLineOptions)
		log.Printf("Detected %d lines in %0.4f s\n", len(f.Lines), time.Since(tStart).Seconds())
	}
	if c.DetectStars {
		tStart := time.Now()
		f.Stars = detect.FindStars(fg, mask, detect.DefaultStarOptions)
		log.Printf("Detected %d stars in %0.4f s\n", len(f.Stars), time.Since(tStart).Seconds())
	}

	if c.DetectDraw {
		img = detect.Draw(img, f.Stars, f.Lines)
	}
	return img
}

func (p *Processor)annotation(f *frame.Frame, snap Snapshot, astro ephem.Astrometry) process.Annotation {
	temp, unit := p.Config.TempUnit.Convert(snap.Temp)
	method, count := "Off", 0
	if snap.Night && p.Config.StackCount > 1 {
		method, count = p.Config.StackMethod.String(), p.Config.StackCount
	}

	return process.Annotation{
		Label: process.LabelData{
			Timestamp:    f.ExposureTime,
			Exposure:     f.Exposure,
			Gain:         snap.Gain,
			Temp:         temp,
			TempUnit:     unit,
			SQM:          f.SQM,
			Stars:        len(f.Stars),
			Detections:   len(f.Lines) > 0,
			SunAlt:       astro.SunAlt,
			MoonAlt:      astro.MoonAlt,
			MoonPhase:    astro.MoonPhase,
			SunMoonSep:   astro.SunMoonSep,
			Latitude:     snap.Latitude,
			Longitude:    snap.Longitude,
			SiderealTime: astro.SiderealTime,
			StackMethod:  method,
			StackCount:   count,
		},
		Astro:    astro,
		Night:    snap.Night,
		MoonMode: snap.MoonMode,
		Focus:    p.Config.FocusMode,
	}
}

func (p *Processor)status(f *frame.Frame, snap Snapshot, res exposure.Result, adu float64) output.Status {
	s := output.NewStatus(p.Config.CCDName, f.ExposureTime)
	s.Night = snap.Night
	s.Temp = snap.Temp
	s.Gain = snap.Gain
	s.Exposure = f.Exposure
	s.SetStable(p.Exposure.TargetFound)
	s.TargetADU = p.Config.TargetADU
	s.CurrentADUTarget = p.Exposure.CurrentTarget
	s.CurrentADU = adu
	s.ADUAverage = res.Average
	s.SQM = f.SQM
	s.Stars = len(f.Stars)
	s.Latitude = snap.Latitude
	s.Longitude = snap.Longitude
	return s
}

func (p *Processor)record(f *frame.Frame, filename string, snap Snapshot, astro ephem.Astrometry, adu float64) output.ImageRecord {
	return output.ImageRecord{
		Filename:   filename,
		CameraID:   f.CameraID,
		Time:       f.ExposureTime,
		Exposure:   f.Exposure,
		Elapsed:    f.Elapsed,
		Gain:       snap.Gain,
		Binning:    snap.Binning,
		Temp:       snap.Temp,
		ADU:        adu,
		Stable:     p.Exposure.TargetFound,
		MoonMode:   snap.MoonMode,
		MoonPhase:  astro.MoonPhase,
		Night:      snap.Night,
		ADUROI:     p.Config.ADUROI,
		Calibrated: f.Calibrated,
		SQM:        f.SQM,
		Stars:      len(f.Stars),
		Detections: len(f.Lines),
	}
}

func render(t *template.Template, rn RemoteName) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, rn); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RemotePath joins the rendered folder and file name templates.
func RemotePath(folder, name *template.Template, rn RemoteName) (string, error) {
	dir, err := render(folder, rn)
	if err != nil {
		return "", err
	}
	file, err := render(name, rn)
	if err != nil {
		return "", err
	}
	return path.Join(dir, file), nil
}

func (p *Processor)enqueue(t dispatch.Task) bool {
	if err := p.Queue.Enqueue(t); err != nil {
		log.Printf("Dispatch: %v\n", err)
		return false
	}
	return true
}

// dispatch publishes the frame's telemetry, and every UPLOAD_IMAGE
// frames asks for the image (and metadata) to be uploaded.
func (p *Processor)dispatch(f *frame.Frame, latest string, snap Snapshot, astro ephem.Astrometry, status output.Status, count int) {
	if p.Queue == nil {
		return
	}
	c := p.Config

	if c.MQTT.Enable {
		log.Printf("Publishing data to MQ broker\n")
		p.enqueue(dispatch.NewPublishTask(latest, dispatch.PublishData{
			Exposure:     f.Exposure,
			Gain:         snap.Gain,
			Bin:          snap.Binning,
			Temp:         snap.Temp,
			SunAlt:       astro.SunAlt,
			MoonAlt:      astro.MoonAlt,
			MoonPhase:    astro.MoonPhase,
			MoonMode:     snap.MoonMode,
			Night:        snap.Night,
			SQM:          f.SQM,
			Stars:        len(f.Stars),
			Latitude:     snap.Latitude,
			Longitude:    snap.Longitude,
			SiderealTime: astro.SiderealTime,
		}))
	}

	every := c.FileTransfer.UploadImage
	if every <= 0 {
		if c.FileTransfer.UploadMetadata {
			log.Printf("Metadata uploading disabled when image upload is disabled\n")
		}
		return
	}
	if count % every != 0 {
		next := every - count % every
		log.Printf("Next image upload in %d images (%d s)\n", next, int(c.ExposurePeriod * float64(next)))
		return
	}

	rn := RemoteName{Timestamp: f.ExposureTime, Ext: c.ImageFileType}
	remote, err := RemotePath(p.remoteImageFolder, p.remoteImageName, rn)
	if err != nil {
		log.Printf("Remote image name: %v\n", err)
		return
	}
	p.Last.Uploaded = p.enqueue(dispatch.NewUploadTask(latest, remote, false))

	if !c.FileTransfer.UploadMetadata {
		return
	}

	md := output.MetadataFromStatus(status)
	md.SQMData = p.Catalog.SQMStats(f.CameraID, f.ExposureTime)
	md.StarsData = p.Catalog.StarsStats(f.CameraID, f.ExposureTime)
	md.SiderealTime = astro.SiderealTime

	local, err := output.WriteMetadataTemp(p.TempDir, md)
	if err != nil {
		log.Printf("Metadata: %v\n", err)
		return
	}
	remote, err = RemotePath(p.remoteMetaFolder, p.remoteMetaName, rn)
	if err != nil {
		log.Printf("Remote metadata name: %v\n", err)
		os.Remove(local)
		return
	}
	if !p.enqueue(dispatch.NewUploadTask(local, remote, true)) {
		os.Remove(local)
	}
}
