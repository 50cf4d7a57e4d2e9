package allsky

import(
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"log"
	"strings"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"gopkg.in/yaml.v2"

	"github.com/abworrall/allsky/pkg/dispatch"
	"github.com/abworrall/allsky/pkg/process"
	"github.com/abworrall/allsky/pkg/stack"
)

type CCDMode struct {
	Gain     int  `koanf:"GAIN" yaml:"GAIN"`
	Binning  int  `koanf:"BINNING" yaml:"BINNING"`
}

type CCDConfig struct {
	Night  CCDMode  `koanf:"NIGHT" yaml:"NIGHT"`
	Day    CCDMode  `koanf:"DAY" yaml:"DAY"`
}

type TextConfig struct {
	FontColor    []int    `koanf:"FONT_COLOR" yaml:"FONT_COLOR"`
	FontX        int      `koanf:"FONT_X" yaml:"FONT_X"`
	FontY        int      `koanf:"FONT_Y" yaml:"FONT_Y"`
	FontHeight   int      `koanf:"FONT_HEIGHT" yaml:"FONT_HEIGHT"`
	FontSize     float64  `koanf:"FONT_SIZE" yaml:"FONT_SIZE"`
	FontOutline  bool     `koanf:"FONT_OUTLINE" yaml:"FONT_OUTLINE"`
}

type OrbConfig struct {
	Mode       string  `koanf:"MODE" yaml:"MODE"`
	Radius     int     `koanf:"RADIUS" yaml:"RADIUS"`
	SunColor   []int   `koanf:"SUN_COLOR" yaml:"SUN_COLOR"`
	MoonColor  []int   `koanf:"MOON_COLOR" yaml:"MOON_COLOR"`
}

type FileTransferConfig struct {
	UploadImage           int     `koanf:"UPLOAD_IMAGE" yaml:"UPLOAD_IMAGE"`
	UploadMetadata        bool    `koanf:"UPLOAD_METADATA" yaml:"UPLOAD_METADATA"`
	RemoteImageFolder     string  `koanf:"REMOTE_IMAGE_FOLDER" yaml:"REMOTE_IMAGE_FOLDER"`
	RemoteImageName       string  `koanf:"REMOTE_IMAGE_NAME" yaml:"REMOTE_IMAGE_NAME"`
	RemoteMetadataFolder  string  `koanf:"REMOTE_METADATA_FOLDER" yaml:"REMOTE_METADATA_FOLDER"`
	RemoteMetadataName    string  `koanf:"REMOTE_METADATA_NAME" yaml:"REMOTE_METADATA_NAME"`
}

type MQTTConfig struct {
	Enable     bool    `koanf:"ENABLE" yaml:"ENABLE"`
	Host       string  `koanf:"HOST" yaml:"HOST"`
	Port       int     `koanf:"PORT" yaml:"PORT"`
	User       string  `koanf:"USER" yaml:"USER"`
	Password   string  `koanf:"PASSWORD" yaml:"PASSWORD"`
	BaseTopic  string  `koanf:"BASE_TOPIC" yaml:"BASE_TOPIC"`
	QoS        int     `koanf:"QOS" yaml:"QOS"`
	ClientID   string  `koanf:"CLIENT_ID" yaml:"CLIENT_ID"`
}

type SpoolConfig struct {
	Dir        string  `koanf:"DIR" yaml:"DIR"`
	Format     string  `koanf:"FORMAT" yaml:"FORMAT"`
	QueueSize  int     `koanf:"QUEUE_SIZE" yaml:"QUEUE_SIZE"`
}

// Config holds every knob. The keys follow the all-sky naming that
// existing config files use.
type Config struct {
	CCDName                 string      `koanf:"CCD_NAME" yaml:"CCD_NAME"`
	CameraID                int         `koanf:"CAMERA_ID" yaml:"CAMERA_ID"`
	ExposureMin             float64     `koanf:"CCD_EXPOSURE_MIN" yaml:"CCD_EXPOSURE_MIN"`
	ExposureMax             float64     `koanf:"CCD_EXPOSURE_MAX" yaml:"CCD_EXPOSURE_MAX"`
	ExposureDef             float64     `koanf:"CCD_EXPOSURE_DEF" yaml:"CCD_EXPOSURE_DEF"`
	CCD                     CCDConfig   `koanf:"CCD_CONFIG" yaml:"CCD_CONFIG"`
	CFAPattern              string      `koanf:"CFA_PATTERN" yaml:"CFA_PATTERN"`
	FITSHeaders             [][]string  `koanf:"FITSHEADERS" yaml:"FITSHEADERS"`

	TargetADU               float64     `koanf:"TARGET_ADU" yaml:"TARGET_ADU"`
	TargetADUDev            float64     `koanf:"TARGET_ADU_DEV" yaml:"TARGET_ADU_DEV"`
	TargetADUDevDay         float64     `koanf:"TARGET_ADU_DEV_DAY" yaml:"TARGET_ADU_DEV_DAY"`
	ADUROI                  []int       `koanf:"ADU_ROI" yaml:"ADU_ROI"`
	DetectMask              string      `koanf:"DETECT_MASK" yaml:"DETECT_MASK"`
	SQMROI                  []int       `koanf:"SQM_ROI" yaml:"SQM_ROI"`
	ExposurePeriod          float64     `koanf:"EXPOSURE_PERIOD" yaml:"EXPOSURE_PERIOD"`
	ExposurePeriodDay       float64     `koanf:"EXPOSURE_PERIOD_DAY" yaml:"EXPOSURE_PERIOD_DAY"`

	Latitude                float64     `koanf:"LOCATION_LATITUDE" yaml:"LOCATION_LATITUDE"`
	Longitude               float64     `koanf:"LOCATION_LONGITUDE" yaml:"LOCATION_LONGITUDE"`
	NightSunAlt             float64     `koanf:"NIGHT_SUN_ALT_DEG" yaml:"NIGHT_SUN_ALT_DEG"`
	MoonModeAlt             float64     `koanf:"NIGHT_MOONMODE_ALT_DEG" yaml:"NIGHT_MOONMODE_ALT_DEG"`
	MoonModePhase           float64     `koanf:"NIGHT_MOONMODE_PHASE" yaml:"NIGHT_MOONMODE_PHASE"`

	StackCount              int         `koanf:"IMAGE_STACK_COUNT" yaml:"IMAGE_STACK_COUNT"`
	StackMethodName         string      `koanf:"IMAGE_STACK_METHOD" yaml:"IMAGE_STACK_METHOD"`
	StackAlign              bool        `koanf:"IMAGE_STACK_ALIGN" yaml:"IMAGE_STACK_ALIGN"`
	StackSplit              bool        `koanf:"IMAGE_STACK_SPLIT" yaml:"IMAGE_STACK_SPLIT"`
	RotateName              string      `koanf:"IMAGE_ROTATE" yaml:"IMAGE_ROTATE"`
	FlipV                   bool        `koanf:"IMAGE_FLIP_V" yaml:"IMAGE_FLIP_V"`
	FlipH                   bool        `koanf:"IMAGE_FLIP_H" yaml:"IMAGE_FLIP_H"`
	CropROI                 []int       `koanf:"IMAGE_CROP_ROI" yaml:"IMAGE_CROP_ROI"`
	Scale                   int         `koanf:"IMAGE_SCALE" yaml:"IMAGE_SCALE"`
	DetectStars             bool        `koanf:"DETECT_STARS" yaml:"DETECT_STARS"`
	DetectMeteors           bool        `koanf:"DETECT_METEORS" yaml:"DETECT_METEORS"`
	DetectDraw              bool        `koanf:"DETECT_DRAW" yaml:"DETECT_DRAW"`
	SCNRName                string      `koanf:"SCNR_ALGORITHM" yaml:"SCNR_ALGORITHM"`
	WBRFactor               float64     `koanf:"WBR_FACTOR" yaml:"WBR_FACTOR"`
	WBGFactor               float64     `koanf:"WBG_FACTOR" yaml:"WBG_FACTOR"`
	WBBFactor               float64     `koanf:"WBB_FACTOR" yaml:"WBB_FACTOR"`
	AutoWB                  bool        `koanf:"AUTO_WB" yaml:"AUTO_WB"`
	NightContrast           bool        `koanf:"NIGHT_CONTRAST_ENHANCE" yaml:"NIGHT_CONTRAST_ENHANCE"`
	DayContrast             bool        `koanf:"DAYTIME_CONTRAST_ENHANCE" yaml:"DAYTIME_CONTRAST_ENHANCE"`
	NightGrayscale          bool        `koanf:"NIGHT_GRAYSCALE" yaml:"NIGHT_GRAYSCALE"`
	DayGrayscale            bool        `koanf:"DAYTIME_GRAYSCALE" yaml:"DAYTIME_GRAYSCALE"`
	FocusMode               bool        `koanf:"FOCUS_MODE" yaml:"FOCUS_MODE"`
	FocusDelay              float64     `koanf:"FOCUS_DELAY" yaml:"FOCUS_DELAY"`

	ImageLabel              bool        `koanf:"IMAGE_LABEL" yaml:"IMAGE_LABEL"`
	LabelTemplate           string      `koanf:"IMAGE_LABEL_TEMPLATE" yaml:"IMAGE_LABEL_TEMPLATE"`
	ExtraText               string      `koanf:"IMAGE_EXTRA_TEXT" yaml:"IMAGE_EXTRA_TEXT"`
	TempDisplay             string      `koanf:"TEMP_DISPLAY" yaml:"TEMP_DISPLAY"`
	Text                    TextConfig  `koanf:"TEXT_PROPERTIES" yaml:"TEXT_PROPERTIES"`
	Orb                     OrbConfig   `koanf:"ORB_PROPERTIES" yaml:"ORB_PROPERTIES"`

	ImageFolder             string          `koanf:"IMAGE_FOLDER" yaml:"IMAGE_FOLDER"`
	ImageFileType           string          `koanf:"IMAGE_FILE_TYPE" yaml:"IMAGE_FILE_TYPE"`
	Compression             map[string]int  `koanf:"IMAGE_FILE_COMPRESSION" yaml:"IMAGE_FILE_COMPRESSION"`
	ExportRaw               string          `koanf:"IMAGE_EXPORT_RAW" yaml:"IMAGE_EXPORT_RAW"`
	ExportFolder            string          `koanf:"IMAGE_EXPORT_FOLDER" yaml:"IMAGE_EXPORT_FOLDER"`
	SaveFITS                bool            `koanf:"IMAGE_SAVE_FITS" yaml:"IMAGE_SAVE_FITS"`
	DaytimeCapture          bool            `koanf:"DAYTIME_CAPTURE" yaml:"DAYTIME_CAPTURE"`
	DaytimeTimelapse        bool            `koanf:"DAYTIME_TIMELAPSE" yaml:"DAYTIME_TIMELAPSE"`
	StatusFile              string          `koanf:"STATUS_FILE" yaml:"STATUS_FILE"`
	ImageCatalog            string          `koanf:"IMAGE_CATALOG" yaml:"IMAGE_CATALOG"`

	FileTransfer            FileTransferConfig  `koanf:"FILETRANSFER" yaml:"FILETRANSFER"`
	MQTT                    MQTTConfig          `koanf:"MQTTPUBLISH" yaml:"MQTTPUBLISH"`
	Spool                   SpoolConfig         `koanf:"SPOOL" yaml:"SPOOL"`

	TimelapseEnable         bool        `koanf:"TIMELAPSE_ENABLE" yaml:"TIMELAPSE_ENABLE"`
	FFmpegPath              string      `koanf:"FFMPEG_PATH" yaml:"FFMPEG_PATH"`
	FFmpegFrameRate         int         `koanf:"FFMPEG_FRAMERATE" yaml:"FFMPEG_FRAMERATE"`
	FFmpegBitrate           string      `koanf:"FFMPEG_BITRATE" yaml:"FFMPEG_BITRATE"`
	FFmpegCodec             string      `koanf:"FFMPEG_CODEC" yaml:"FFMPEG_CODEC"`
	FFmpegVFScale           string      `koanf:"FFMPEG_VFSCALE" yaml:"FFMPEG_VFSCALE"`

	CalibrationCatalog      string      `koanf:"CALIBRATION_CATALOG" yaml:"CALIBRATION_CATALOG"`
	CalibrationDir          string      `koanf:"CALIBRATION_DIR" yaml:"CALIBRATION_DIR"`

	IncomingDir             string      `koanf:"INCOMING_DIR" yaml:"INCOMING_DIR"`

	// Values we figure out in Finalize, for the rest of the app
	StackMethod             stack.Method       `koanf:"-" yaml:"-"`
	Rotation                process.Rotation   `koanf:"-" yaml:"-"`
	SCNR                    process.SCNR       `koanf:"-" yaml:"-"`
	OrbMode                 process.OrbMode    `koanf:"-" yaml:"-"`
	TempUnit                process.TempUnit   `koanf:"-" yaml:"-"`
	SpoolFormat             dispatch.Format    `koanf:"-" yaml:"-"`
}

func NewConfig() Config {
	return Config{
		CCDName:           "allsky",
		CameraID:          1,
		ExposureMin:       0.000032,
		ExposureMax:       15,
		ExposureDef:       0.0001,
		CCD:               CCDConfig{Night: CCDMode{100, 1}, Day: CCDMode{0, 1}},
		FITSHeaders:       [][]string{},

		TargetADU:         75,
		TargetADUDev:      10,
		TargetADUDevDay:   20,
		ADUROI:            []int{},
		SQMROI:            []int{},
		ExposurePeriod:    15,
		ExposurePeriodDay: 15,

		Latitude:          33,
		Longitude:         -84,
		NightSunAlt:       -6,
		MoonModeAlt:       0,
		MoonModePhase:     33,

		StackCount:        1,
		StackMethodName:   "average",
		CropROI:           []int{},
		Scale:             100,
		DetectStars:       true,
		WBRFactor:         1.0,
		WBGFactor:         1.0,
		WBBFactor:         1.0,
		FocusDelay:        4,

		ImageLabel:        true,
		LabelTemplate:     process.DefaultLabelTemplate,
		TempDisplay:       "c",
		Text:              TextConfig{
			FontColor:   []int{200, 200, 200},
			FontX:       15,
			FontY:       30,
			FontHeight:  30,
			FontSize:    20,
			FontOutline: true,
		},
		Orb:               OrbConfig{
			Mode:      "ha",
			Radius:    9,
			SunColor:  []int{255, 255, 255},
			MoonColor: []int{128, 128, 128},
		},

		ImageFolder:       "/var/www/html/allsky/images",
		ImageFileType:     "jpg",
		Compression:       map[string]int{"jpg": 90, "png": 5, "tif": 5},
		DaytimeCapture:    true,
		DaytimeTimelapse:  true,
		StatusFile:        "/var/lib/allsky/allsky_status.json",

		FileTransfer:      FileTransferConfig{
			RemoteImageFolder:    "/home/allsky/upload/allsky",
			RemoteImageName:      "latest.{{.Ext}}",
			RemoteMetadataFolder: "/home/allsky/upload/allsky",
			RemoteMetadataName:   "latest_metadata.json",
		},
		MQTT:              MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "allsky",
			ClientID:  "allsky",
		},
		Spool:             SpoolConfig{
			Dir:       "/var/lib/allsky/spool",
			Format:    "json",
			QueueSize: dispatch.DefaultQueueSize,
		},

		TimelapseEnable:   true,
		FFmpegPath:        "ffmpeg",
		FFmpegFrameRate:   25,
		FFmpegBitrate:     "2500k",
		FFmpegCodec:       "libx264",
	}
}

// LoadConfig starts from the defaults and overlays the YAML file, if
// there is one.
func LoadConfig(filename string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(NewConfig(), "koanf"), nil); err != nil {
		return Config{}, err
	}
	if filename != "" {
		if err := k.Load(file.Provider(filename), kyaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("load config '%s': %v", filename, err)
			}
			log.Printf("No config file %s, using defaults\n", filename)
		}
	}

	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %v", err)
	}
	c.Finalize()
	return c, nil
}

// Finalize parses the named algorithms into their enums. Unknown names
// are logged, and the identity fallback is used.
func (c *Config)Finalize() {
	var err error
	if c.StackMethod, err = stack.ParseMethod(c.StackMethodName); err != nil {
		log.Printf("Config: %v\n", err)
	}
	if c.Rotation, err = process.ParseRotation(c.RotateName); err != nil {
		log.Printf("Config: %v\n", err)
	}
	if c.SCNR, err = process.ParseSCNR(c.SCNRName); err != nil {
		log.Printf("Config: %v\n", err)
	}
	if c.OrbMode, err = process.ParseOrbMode(c.Orb.Mode); err != nil {
		log.Printf("Config: %v\n", err)
	}
	if c.TempUnit, err = process.ParseTempUnit(c.TempDisplay); err != nil {
		log.Printf("Config: %v\n", err)
	}
	if c.SpoolFormat, err = dispatch.ParseFormat(c.Spool.Format); err != nil {
		log.Printf("Config: %v\n", err)
	}

	// A partial IMAGE_FILE_COMPRESSION replaces the default map wholesale
	if c.Compression == nil {
		c.Compression = map[string]int{}
	}
	for ext, level := range NewConfig().Compression {
		if _, exists := c.Compression[ext]; !exists {
			c.Compression[ext] = level
		}
	}

	c.ImageFileType = strings.ToLower(c.ImageFileType)
	if c.StackCount < 1 { c.StackCount = 1 }
	if c.Scale <= 0 { c.Scale = 100 }
}

func (c Config)AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

// ExtraHeaders are the configured FITS key/value pairs.
func (c Config)ExtraHeaders() [][2]string {
	ret := [][2]string{}
	for _, kv := range c.FITSHeaders {
		if len(kv) != 2 {
			log.Printf("Config: ignoring FITSHEADERS entry %v\n", kv)
			continue
		}
		ret = append(ret, [2]string{kv[0], kv[1]})
	}
	return ret
}

func (c Config)Mode(night bool) CCDMode {
	if night { return c.CCD.Night }
	return c.CCD.Day
}

func (c Config)Grayscale(night bool) bool {
	if night { return c.NightGrayscale }
	return c.DayGrayscale
}

func (c Config)Contrast(night bool) bool {
	if night { return c.NightContrast }
	return c.DayContrast
}

func (c Config)WhiteBalance() [3]float64 {
	return [3]float64{c.WBRFactor, c.WBGFactor, c.WBBFactor}
}

func rgba(v []int, def color.RGBA) color.RGBA {
	if len(v) < 3 { return def }
	return color.RGBA{uint8(v[0]), uint8(v[1]), uint8(v[2]), 0xff}
}

func (c Config)TextProperties() process.TextProperties {
	return process.TextProperties{
		Color:      rgba(c.Text.FontColor, color.RGBA{200, 200, 200, 0xff}),
		X:          c.Text.FontX,
		Y:          c.Text.FontY,
		LineHeight: c.Text.FontHeight,
		Size:       c.Text.FontSize,
		Outline:    c.Text.FontOutline,
	}
}

func (c Config)OrbProperties() process.OrbProperties {
	return process.OrbProperties{
		Mode:      c.OrbMode,
		Radius:    c.Orb.Radius,
		SunColor:  rgba(c.Orb.SunColor, color.RGBA{255, 255, 255, 0xff}),
		MoonColor: rgba(c.Orb.MoonColor, color.RGBA{128, 128, 128, 0xff}),
	}
}
