package domain

import (
	"fmt"
	"strings"
)

// Gender selects the model demographic rendered in the photo.
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
	GenderGirl   Gender = "girl"
	GenderBoy    Gender = "boy"
)

// Genders lists the demographics in the order the controls present them.
var Genders = []Gender{GenderFemale, GenderMale, GenderGirl, GenderBoy}

var genderLabels = map[Gender]string{
	GenderFemale: "女性",
	GenderMale:   "男性",
	GenderGirl:   "女童",
	GenderBoy:    "男童",
}

// Label is the wording used inside the generation prompt.
func (g Gender) Label() string {
	if label, ok := genderLabels[g]; ok {
		return label
	}
	return genderLabels[GenderFemale]
}

// ParseGender accepts either the identifier or the prompt label.
func ParseGender(v string) (Gender, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return GenderFemale, nil
	}
	lower := Gender(strings.ToLower(v))
	if _, ok := genderLabels[lower]; ok {
		return lower, nil
	}
	for g, label := range genderLabels {
		if label == v {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown gender %q", v)
}

// Params are the user-controlled generation settings. They are read when a
// request is issued, not when an item is queued.
type Params struct {
	Gender  Gender
	Remarks string
}

// DefaultParams mirrors the initial control state.
func DefaultParams() Params {
	return Params{Gender: GenderFemale}
}
