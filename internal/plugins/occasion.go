package plugins

import (
	"fmt"
	"strings"
)

// Occasion is a pipeline stage at which file type plugins run.
type Occasion int

// Occasions in pipeline order.
const (
	OccasionImport Occasion = iota
	OccasionPreprocess
	OccasionPostprocess
	OccasionPostImport
	OccasionPostConvert
	OccasionPostDelete
	occasionCount
)

var occasionNames = [occasionCount]string{
	"import", "preprocess", "postprocess", "postimport", "postconvert", "postdelete",
}

func (o Occasion) String() string {
	if o < 0 || o >= occasionCount {
		return fmt.Sprintf("Occasion(%d)", int(o))
	}

	return occasionNames[o]
}

// ParseOccasion maps an occasion name to its value.
func ParseOccasion(s string) (Occasion, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range occasionNames {
		if name == s {
			return Occasion(i), nil
		}
	}

	return 0, fmt.Errorf("unknown occasion %q", s)
}

// Occasions holds the on_* flags of a file type plugin.
type Occasions struct {
	Import      bool
	Preprocess  bool
	Postprocess bool
	PostImport  bool
	PostConvert bool
	PostDelete  bool
}

// Has reports whether the flag for occ is set.
func (o Occasions) Has(occ Occasion) bool {
	switch occ {
	case OccasionImport:
		return o.Import
	case OccasionPreprocess:
		return o.Preprocess
	case OccasionPostprocess:
		return o.Postprocess
	case OccasionPostImport:
		return o.PostImport
	case OccasionPostConvert:
		return o.PostConvert
	case OccasionPostDelete:
		return o.PostDelete
	default:
		return false
	}
}

// Set turns on the flag for occ.
func (o *Occasions) Set(occ Occasion) {
	switch occ {
	case OccasionImport:
		o.Import = true
	case OccasionPreprocess:
		o.Preprocess = true
	case OccasionPostprocess:
		o.Postprocess = true
	case OccasionPostImport:
		o.PostImport = true
	case OccasionPostConvert:
		o.PostConvert = true
	case OccasionPostDelete:
		o.PostDelete = true
	}
}

// String lists the set occasions, comma separated.
func (o Occasions) String() string {
	var names []string
	for occ := range occasionCount {
		if o.Has(occ) {
			names = append(names, occ.String())
		}
	}

	return strings.Join(names, ",")
}
