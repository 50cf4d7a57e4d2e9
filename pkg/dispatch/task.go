// Package dispatch hands finished artifacts to the outside world:
// upload requests are spooled for the file transfer side, publish
// requests go to an MQTT broker.
package dispatch

import(
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Action string
const(
	ActionUpload  Action = "upload"
	ActionPublish Action = "publish"
)

// A Task is one request for an external collaborator.
type Task struct {
	ID           string        `json:"id"`
	Action       Action        `json:"action"`
	LocalFile    string        `json:"local_file"`
	RemoteFile   string        `json:"remote_file,omitempty"`
	RemoveLocal  bool          `json:"remove_local,omitempty"`
	Payload      *PublishData  `json:"payload,omitempty"`
	Created      time.Time     `json:"created"`
}

func (t Task)String() string {
	return fmt.Sprintf("%s[%s %s->%s]", t.Action, t.ID, t.LocalFile, t.RemoteFile)
}

func NewUploadTask(local, remote string, removeLocal bool) Task {
	return Task{
		ID:          uuid.NewString(),
		Action:      ActionUpload,
		LocalFile:   local,
		RemoteFile:  remote,
		RemoveLocal: removeLocal,
		Created:     time.Now(),
	}
}

func NewPublishTask(local string, data PublishData) Task {
	return Task{
		ID:        uuid.NewString(),
		Action:    ActionPublish,
		LocalFile: local,
		Payload:   &data,
		Created:   time.Now(),
	}
}

// PublishData is the per frame telemetry sent to the broker.
type PublishData struct {
	Exposure      float64  `json:"exposure"`
	Gain          int      `json:"gain"`
	Bin           int      `json:"bin"`
	Temp          float64  `json:"temp"`
	SunAlt        float64  `json:"sunalt"`
	MoonAlt       float64  `json:"moonalt"`
	MoonPhase     float64  `json:"moonphase"`
	MoonMode      bool     `json:"moonmode"`
	Night         bool     `json:"night"`
	SQM           float64  `json:"sqm"`
	Stars         int      `json:"stars"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	SiderealTime  string   `json:"sidereal_time"`
}

// Fields flattens the data into (subtopic, value) pairs, rounded the
// way they are displayed.
func (p PublishData)Fields() [][2]string {
	return [][2]string{
		{"exposure", fmt.Sprintf("%.6f", p.Exposure)},
		{"gain", fmt.Sprintf("%d", p.Gain)},
		{"bin", fmt.Sprintf("%d", p.Bin)},
		{"temp", fmt.Sprintf("%.1f", p.Temp)},
		{"sunalt", fmt.Sprintf("%.1f", p.SunAlt)},
		{"moonalt", fmt.Sprintf("%.1f", p.MoonAlt)},
		{"moonphase", fmt.Sprintf("%.1f", p.MoonPhase)},
		{"moonmode", fmt.Sprintf("%t", p.MoonMode)},
		{"night", fmt.Sprintf("%t", p.Night)},
		{"sqm", fmt.Sprintf("%.1f", p.SQM)},
		{"stars", fmt.Sprintf("%d", p.Stars)},
		{"latitude", fmt.Sprintf("%.3f", p.Latitude)},
		{"longitude", fmt.Sprintf("%.3f", p.Longitude)},
		{"sidereal_time", p.SiderealTime},
	}
}
