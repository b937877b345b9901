package formulas

import (
	"strings"

	"github.com/tillerstead/tillerpro/internal/units"
)

// GroutType is the grout chemistry.
type GroutType string

const (
	GroutCement GroutType = "cement"
	GroutEpoxy  GroutType = "epoxy"
)

// DefaultTileThicknessMM applies when no tile thickness is given.
const DefaultTileThicknessMM = 8.0

// NormalizeGroutType maps sanded, unsanded and other cement names to cement.
func NormalizeGroutType(s string) GroutType {
	if strings.Contains(strings.ToLower(s), "epoxy") {
		return GroutEpoxy
	}
	return GroutCement
}

// Density in lb per cubic inch and bag size in lb.
func (t GroutType) props() (density, bagLb float64) {
	if t == GroutEpoxy {
		return 1.7, 5.5
	}
	return 1.6, 25
}

// GroutInput holds the grout calculator inputs. Tile dimensions and joint
// width are in inches.
type GroutInput struct {
	Area        float64   `json:"area"`
	Width       float64   `json:"width"`
	Length      float64   `json:"length"`
	ThicknessMM float64   `json:"thicknessMm"`
	JointWidth  float64   `json:"jointWidth"`
	Type        GroutType `json:"type"`
	Mosaic      bool      `json:"mosaic"`
}

// GroutResult is the grout calculator output.
type GroutResult struct {
	Type       GroutType `json:"type"`
	VolumeCuIn float64   `json:"volumeCuIn"`
	Pounds     float64   `json:"pounds"`
	BagSizeLb  float64   `json:"bagSizeLb"`
	BagsNeeded int       `json:"bagsNeeded"`
	IsMosaic   bool      `json:"isMosaic"`
}

// Grout estimates grout weight from joint volume.
func Grout(in GroutInput) (GroutResult, error) {
	if err := require("grout",
		field{"area", in.Area},
		field{"width", in.Width},
		field{"length", in.Length},
		field{"jointWidth", in.JointWidth},
	); err != nil {
		return GroutResult{}, err
	}

	thicknessMM := in.ThicknessMM
	if thicknessMM <= 0 {
		thicknessMM = DefaultTileThicknessMM
	}
	typ := NormalizeGroutType(string(in.Type))
	density, bagLb := typ.props()

	perimeter := in.Width + in.Length
	tileArea := in.Width * in.Length
	volume := (perimeter / tileArea) * in.JointWidth * units.MMToIn(thicknessMM) * in.Area * units.SqInPerSqFt

	pounds := volume * density
	if in.Mosaic {
		pounds *= 1.1
	}

	return GroutResult{
		Type:       typ,
		VolumeCuIn: volume,
		Pounds:     pounds,
		BagSizeLb:  bagLb,
		BagsNeeded: units.CeilCount(pounds / bagLb),
		IsMosaic:   in.Mosaic,
	}, nil
}
