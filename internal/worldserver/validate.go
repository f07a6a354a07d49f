package worldserver

import (
	"regexp"
	"strings"

	"github.com/ionforge/wildcore/internal/worldpackets"
)

// nameRe matches spec.md §4.8's character-name rule: starts with a
// letter, then letters/digits/apostrophe/space.
var nameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9' ]*$`)

// validateName checks length, charset, and the "no double spaces,
// trimmed" rule spec.md §4.8 and §8 both call out (the boundary
// example is the two-space name "  ").
func validateName(name string) bool {
	if name != strings.TrimSpace(name) {
		return false
	}
	n := len([]rune(name))
	if n < 3 || n > 24 {
		return false
	}
	if !nameRe.MatchString(name) {
		return false
	}
	if strings.Contains(name, "  ") {
		return false
	}
	return true
}

// maxLabels/maxBones/boneExtent bound the customization arrays spec.md
// §4.8 names: up to 100 labels with matching values, up to 200 bone
// values each within [-10, +10].
const (
	maxLabels  = 100
	maxBones   = 200
	boneExtent = 10
)

func validateCustomization(p worldpackets.ClientCharacterCreate) bool {
	if len(p.Labels) != len(p.Values) {
		return false
	}
	if len(p.Labels) > maxLabels {
		return false
	}
	if len(p.Bones) > maxBones {
		return false
	}
	for _, b := range p.Bones {
		if b < -boneExtent || b > boneExtent {
			return false
		}
	}
	return true
}
