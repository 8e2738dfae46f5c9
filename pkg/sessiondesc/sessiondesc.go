// Package sessiondesc loads a YAML session descriptor into a runnable
// session.Sheet (§12). Project XML loading is out of this engine's
// scope, so the descriptor's field names mirror the clip XML attribute
// contract (§6) verbatim, keeping a future XML loader a mechanical
// substitution for this one.
package sessiondesc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/drgolem/rtengine/pkg/clip"
	"github.com/drgolem/rtengine/pkg/fadecurve"
	"github.com/drgolem/rtengine/pkg/idgen"
	"github.com/drgolem/rtengine/pkg/readsource"
	"github.com/drgolem/rtengine/pkg/session"
	"github.com/drgolem/rtengine/pkg/timeref"
	"github.com/drgolem/rtengine/pkg/track"
)

// Document is the root of a session descriptor file.
type Document struct {
	Sheet SheetDesc `yaml:"sheet"`
}

// SheetDesc describes one sheet's tracks and buses.
type SheetDesc struct {
	Name   string      `yaml:"name"`
	Tracks []TrackDesc `yaml:"tracks"`
	Buses  []BusDesc   `yaml:"buses"`
}

// BusDesc describes a named routing bus.
type BusDesc struct {
	ID string `yaml:"id"`
}

// TrackDesc mirrors one track's attributes.
type TrackDesc struct {
	Name      string     `yaml:"name"`
	ID        string     `yaml:"id"`
	IsBus     bool       `yaml:"isbus"`
	Mute      bool       `yaml:"mute"`
	Solo      bool       `yaml:"solo"`
	Inputs    []string   `yaml:"inputs"`
	PostSends []string   `yaml:"postsends"`
	Clips     []ClipDesc `yaml:"clips"`
}

// ClipDesc mirrors §6's clip XML attribute contract: trackstart,
// sourcestart, length, gain, mute, fadein/fadeout with
// range/mode/bend/strength/raster.
type ClipDesc struct {
	Name        string    `yaml:"clipname"`
	Source      string    `yaml:"source"`
	TrackStart  int64     `yaml:"trackstart"`
	SourceStart int64     `yaml:"sourcestart"`
	Length      int64     `yaml:"length"`
	Gain        float64   `yaml:"gain"`
	Mute        bool      `yaml:"mute"`
	Take        int       `yaml:"take"`
	Locked      bool      `yaml:"locked"`
	FadeIn      *FadeDesc `yaml:"fadein"`
	FadeOut     *FadeDesc `yaml:"fadeout"`
}

// FadeDesc mirrors a fade region's XML attributes (§6).
type FadeDesc struct {
	Range    int64   `yaml:"range"`
	Mode     string  `yaml:"mode"` // linear, fast, sshape, long
	Bend     float64 `yaml:"bend"`
	Strength float64 `yaml:"strength"`
	Raster   bool    `yaml:"raster"`
}

// Load parses a YAML session descriptor from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sessiondesc: read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sessiondesc: parse %s: %w", path, err)
	}
	return &doc, nil
}

// sourceOpener is implemented by whatever owns opening/caching
// ReadSources by path, so Build never decides file lifetime itself.
type sourceOpener func(path string) (*readsource.ReadSource, error)

// Build constructs a session.Sheet from doc, opening each clip's source
// through open. cycleFrames sizes every track's and bus's process
// buffer.
func Build(doc *Document, cycleFrames int, open sourceOpener) (*session.Sheet, error) {
	sheet := session.NewSheet(doc.Sheet.Name)

	for _, b := range doc.Sheet.Buses {
		sheet.AddBus(b.ID, cycleFrames)
	}

	for _, td := range doc.Sheet.Tracks {
		id := td.ID
		if id == "" {
			id = idgen.NewTrackID()
		}
		t := track.New(id, td.Name, cycleFrames)
		t.IsBus = td.IsBus
		t.Mute = td.Mute
		t.Solo = td.Solo
		t.Inputs = td.Inputs
		t.PostSends = td.PostSends

		for _, cd := range td.Clips {
			src, err := open(cd.Source)
			if err != nil {
				return nil, fmt.Errorf("sessiondesc: track %q clip %q: %w", td.Name, cd.Name, err)
			}
			if cd.SourceStart < 0 {
				return nil, fmt.Errorf("sessiondesc: track %q clip %q: sourcestart %d is negative", td.Name, cd.Name, cd.SourceStart)
			}
			if srcLen := src.Length(); srcLen != timeref.Invalid {
				if end := timeref.New(cd.SourceStart + cd.Length); end > srcLen {
					return nil, fmt.Errorf("sessiondesc: track %q clip %q: sourcestart+length %d exceeds source length %d", td.Name, cd.Name, cd.SourceStart+cd.Length, int64(srcLen))
				}
			}

			c := clip.New(cd.Name, src, timeref.New(cd.TrackStart), timeref.New(cd.Length), timeref.New(cd.SourceStart))
			c.Gain = cd.Gain
			c.Mute = cd.Mute

			if cd.FadeIn != nil {
				c.FadeIn = buildFade(fadecurve.FadeIn, cd.FadeIn, timeref.New(cd.TrackStart))
			}
			if cd.FadeOut != nil {
				fadeStart := timeref.New(cd.TrackStart + cd.Length - cd.FadeOut.Range)
				c.FadeOut = buildFade(fadecurve.FadeOut, cd.FadeOut, fadeStart)
			}

			t.Clips = append(t.Clips, c)
		}

		sheet.AddTrack(t)
	}

	return sheet, nil
}

func buildFade(kind fadecurve.Kind, fd *FadeDesc, rangeStart timeref.TimeRef) *fadecurve.FadeCurve {
	shape := shapeFromMode(fd.Mode)
	fc := fadecurve.New(kind, shape, rangeStart, timeref.New(fd.Range))
	if fd.Mode == "custom" {
		fc.SetBendStrength(fd.Bend, fd.Strength)
	}
	if fd.Raster {
		fc.SetRaster(true, timeref.New(fd.Range))
	}
	return fc
}

func shapeFromMode(mode string) fadecurve.Shape {
	switch mode {
	case "fast":
		return fadecurve.ShapeFast
	case "sshape":
		return fadecurve.ShapeSShape
	case "long":
		return fadecurve.ShapeLong
	default:
		return fadecurve.ShapeLinear
	}
}
