package engine

import (
	"strings"
	"time"
)

// First names whose ending contradicts the usual Portuguese pattern.
var (
	maleExceptions = map[string]struct{}{
		"LUCA": {}, "JOSHUA": {}, "NIKITA": {}, "JOSUA": {}, "BATISTA": {},
	}
	femaleExceptions = map[string]struct{}{
		"RACHEL": {}, "RAQUEL": {}, "ISABEL": {}, "MARILENE": {}, "ALINE": {}, "BEATRIZ": {},
		"ESTHER": {}, "IRENE": {}, "LIZ": {}, "INES": {}, "MIRIAM": {}, "RUTH": {}, "JAQUELINE": {},
		"CRISTIANE": {}, "DAIANE": {}, "ELIANE": {}, "SIMONE": {}, "DENISE": {}, "ALICE": {},
	}
)

// InferGender guesses "F"/"M" from the first name, "" when unsure. Registry
// data always overrides it.
func InferGender(name string) string {
	first := FirstToken(foldText(NormalizeName(name)))
	if first == "" || IsWalkIn(name) {
		return ""
	}
	if _, ok := femaleExceptions[first]; ok {
		return "F"
	}
	if _, ok := maleExceptions[first]; ok {
		return "M"
	}
	switch {
	case strings.HasSuffix(first, "A"):
		return "F"
	case strings.HasSuffix(first, "O"):
		return "M"
	}
	return ""
}

// ageAt returns full years between birth and ref.
func ageAt(birth, ref time.Time) int {
	years := ref.Year() - birth.Year()
	if ref.Month() < birth.Month() || (ref.Month() == birth.Month() && ref.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
