package analysis

import "github.com/tkarvo/gammalyze/internal/spectrum"

// Document is the canonical JSON form of an analysis request, accepted both
// by the HTTP API and by the analyze command. Counts are raw channel counts;
// calibration and mode are optional overrides.
type Document struct {
	Counts      []int                 `json:"counts"`
	Calibration *spectrum.Calibration `json:"calibration,omitempty"`
	Mode        string                `json:"mode,omitempty"`
}

// Cal returns the explicit calibration or the zero value, which the engine
// replaces with the configured default.
func (d *Document) Cal() spectrum.Calibration {
	if d.Calibration == nil {
		return spectrum.Calibration{}
	}
	return *d.Calibration
}
