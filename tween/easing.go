package tween

import (
	"sort"

	"github.com/tanema/gween/ease"
)

// Easing is the shape of an interpolation between two values.
type Easing = ease.TweenFunc

// Default easing names used when a curve does not name one.
const (
	DefaultAttackEasing = "Linear"
	DefaultDecayEasing  = "OutExpo"
)

var easings = map[string]Easing{
	"Linear": ease.Linear,

	"InQuad":    ease.InQuad,
	"OutQuad":   ease.OutQuad,
	"InOutQuad": ease.InOutQuad,

	"InCubic":    ease.InCubic,
	"OutCubic":   ease.OutCubic,
	"InOutCubic": ease.InOutCubic,

	"InQuart":    ease.InQuart,
	"OutQuart":   ease.OutQuart,
	"InOutQuart": ease.InOutQuart,

	"InQuint":    ease.InQuint,
	"OutQuint":   ease.OutQuint,
	"InOutQuint": ease.InOutQuint,

	"InSine":    ease.InSine,
	"OutSine":   ease.OutSine,
	"InOutSine": ease.InOutSine,

	"InExpo":    ease.InExpo,
	"OutExpo":   ease.OutExpo,
	"InOutExpo": ease.InOutExpo,

	"InCirc":    ease.InCirc,
	"OutCirc":   ease.OutCirc,
	"InOutCirc": ease.InOutCirc,

	"InBack":    ease.InBack,
	"OutBack":   ease.OutBack,
	"InOutBack": ease.InOutBack,

	"InBounce":    ease.InBounce,
	"OutBounce":   ease.OutBounce,
	"InOutBounce": ease.InOutBounce,

	"InElastic":    ease.InElastic,
	"OutElastic":   ease.OutElastic,
	"InOutElastic": ease.InOutElastic,
}

// LookupEasing returns the easing registered under name.
func LookupEasing(name string) (Easing, bool) {
	e, ok := easings[name]
	return e, ok
}

// EasingOrLinear is LookupEasing with a Linear fallback for unknown names.
func EasingOrLinear(name string) Easing {
	if e, ok := easings[name]; ok {
		return e
	}
	return ease.Linear
}

// EasingNames lists every registered easing, sorted.
func EasingNames() []string {
	names := make([]string, 0, len(easings))
	for n := range easings {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
